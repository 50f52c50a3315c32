package handlers

import (
	"net/http"
	"strings"

	"savingscredit/internal/config"
	"savingscredit/internal/db"
	"savingscredit/internal/middleware"
	"savingscredit/internal/store"
	"savingscredit/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg           config.Config
	log           logrus.FieldLogger
	txRunner      db.TxRunner
	users         UserStore
	accounts      AccountDirectory
	admin         AdminStore
	audit         AuditStore
	savings       SavingsService
	credit        CreditService
	notifications NotificationService
	hub           *websocket.Hub
	upgrader      gorillaws.Upgrader
}

type Deps struct {
	Config        config.Config
	Log           logrus.FieldLogger
	TxRunner      db.TxRunner
	Users         UserStore
	Accounts      AccountDirectory
	Admin         AdminStore
	Audit         AuditStore
	Savings       SavingsService
	Credit        CreditService
	Notifications NotificationService
	Hub           *websocket.Hub
}

func New(deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		cfg:           deps.Config,
		log:           log,
		txRunner:      deps.TxRunner,
		users:         deps.Users,
		accounts:      deps.Accounts,
		admin:         deps.Admin,
		audit:         deps.Audit,
		savings:       deps.Savings,
		credit:        deps.Credit,
		notifications: deps.Notifications,
		hub:           deps.Hub,
		upgrader:      websocket.NewUpgrader(deps.Config.AllowedOrigins),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{Logger: h.log, NoColor: true}))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authn := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authn).Get("/me", h.Me)
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authn)
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Patch("/password", h.ChangePassword)
	})

	router.Route("/savings", func(r chi.Router) {
		r.Use(authn)
		r.Post("/create", h.CreateAccount)
		r.Get("/account", h.GetAccount)
		r.Put("/account", h.UpdateAccount)
		r.Delete("/account", h.DeleteAccount)
		r.Get("/balance", h.GetBalance)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/freeze", h.FreezeAccount)
		r.Post("/unfreeze", h.UnfreezeAccount)
		r.Get("/self-check", h.SelfCheck)
	})

	router.Route("/credit", func(r chi.Router) {
		r.Use(authn)
		r.Post("/request", h.RequestCredit)
		r.Get("/requests", h.ListCreditRequests)
		r.Get("/requests/{id}", h.GetCreditRequest)
		r.Post("/repay/{id}", h.MakeRepayment)
		r.Get("/repayments/{id}", h.ListRepayments)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authn)
		r.Get("/", h.ListNotifications)
		r.Post("/", h.CreateNotification)
		r.Patch("/{id}/read", h.MarkNotificationRead)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authn)
		r.With(middleware.RequireAdmin(h.admin, store.RoleReviewCredit)).Post("/credit/{id}/approve", h.ApproveCredit)
		r.With(middleware.RequireAdmin(h.admin, store.RoleReviewCredit)).Post("/credit/{id}/reject", h.RejectCredit)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewAccounts)).Get("/accounts", h.AdminListAccounts)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewAccounts)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewAccounts)).Get("/reconcile", h.Reconcile)
		r.With(middleware.RequireSuperAdmin(h.admin)).Post("/roles/grant", h.GrantRole)
		r.With(middleware.RequireSuperAdmin(h.admin)).Post("/promote", h.PromoteAdmin)
	})

	router.With(authn).Get("/ws/notifications", h.WSNotifications)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
