package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savingscredit/internal/config"
	"savingscredit/internal/db"
	"savingscredit/internal/handlers"
	"savingscredit/internal/logger"
	"savingscredit/internal/notifications"
	"savingscredit/internal/services"
	"savingscredit/internal/store"
	"savingscredit/internal/websocket"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	txRunner := db.NewTxRunner(database)
	users := store.NewUserStore(database)
	accounts := store.NewSavingsStore(database)
	ledger := store.NewLedgerStore(txRunner)
	transactions := store.NewTransactionStore(database)
	credits := store.NewCreditStore(database)
	repayments := store.NewRepaymentStore(database, txRunner)
	notificationStore := store.NewNotificationStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)

	hub := websocket.NewHub(log)
	dispatcher := notifications.NewDispatcher(notificationStore, hub, log, cfg.NotifyQueueSize, cfg.NotifyWorkers)
	dispatcher.Start()

	savings := services.NewSavingsService(services.SavingsDeps{
		TxRunner:        txRunner,
		Accounts:        accounts,
		Ledger:          ledger,
		Transactions:    transactions,
		Audit:           audit,
		Notifier:        dispatcher,
		Hub:             hub,
		Log:             log,
		DefaultCurrency: cfg.DefaultCurrency,
	})
	credit := services.NewCreditService(services.CreditDeps{
		TxRunner:   txRunner,
		Requests:   credits,
		Repayments: repayments,
		Audit:      audit,
		Notifier:   dispatcher,
		Log:        log,
	})

	handler := handlers.New(handlers.Deps{
		Config:        cfg,
		Log:           log,
		TxRunner:      txRunner,
		Users:         users,
		Accounts:      accounts,
		Admin:         admin,
		Audit:         audit,
		Savings:       savings,
		Credit:        credit,
		Notifications: services.NewNotificationService(notificationStore, dispatcher),
		Hub:           hub,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", server.Addr).Info("savings & credit API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	// Drain queued notifications after HTTP traffic has stopped.
	dispatcher.Close()
}
