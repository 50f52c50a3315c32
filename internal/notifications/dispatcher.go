// Package notifications is the fire-and-forget side channel that follows a
// committed balance change. Messages are queued, persisted and pushed to any
// open websocket by a small worker pool.
package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"savingscredit/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull      = errors.New("notification queue is full")
	ErrClosed         = errors.New("notification dispatcher is closed")
	ErrInvalidMessage = errors.New("missing required notification fields")
)

const deliverTimeout = 5 * time.Second

type Message struct {
	UserID  string
	Type    string
	Title   string
	Message string
}

func (m Message) validate() error {
	if m.UserID == "" || m.Title == "" || m.Message == "" {
		return ErrInvalidMessage
	}
	switch m.Type {
	case models.NotificationEmail, models.NotificationSMS, models.NotificationInApp:
		return nil
	default:
		return ErrInvalidMessage
	}
}

type Store interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
}

type Pusher interface {
	BroadcastNotification(userID string, notification any)
}

type Dispatcher struct {
	store   Store
	pusher  Pusher
	log     logrus.FieldLogger
	queue   chan Message
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(store Store, pusher Pusher, log logrus.FieldLogger, queueSize, workers int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		store:   store,
		pusher:  pusher,
		log:     log,
		queue:   make(chan Message, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. Workers exit once Close has drained the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Notify enqueues msg without blocking. A full queue drops the message.
func (d *Dispatcher) Notify(_ context.Context, msg Message) error {
	if msg.Type == "" {
		msg.Type = models.NotificationInApp
	}
	if err := msg.validate(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.log.WithFields(logrus.Fields{"user_id": msg.UserID, "title": msg.Title}).Warn("notification dropped: queue full")
		return ErrQueueFull
	}
}

// Deliver persists msg and pushes it to connected clients synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) (models.Notification, error) {
	if msg.Type == "" {
		msg.Type = models.NotificationInApp
	}
	if err := msg.validate(); err != nil {
		return models.Notification{}, err
	}
	record, err := d.store.Create(ctx, models.Notification{
		ID:      uuid.NewString(),
		UserID:  msg.UserID,
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Message,
	})
	if err != nil {
		return models.Notification{}, err
	}
	if d.pusher != nil {
		d.pusher.BroadcastNotification(msg.UserID, record)
	}
	if msg.Type != models.NotificationInApp {
		// No email or SMS transport is wired; the record and push still happen.
		d.log.WithFields(logrus.Fields{"user_id": msg.UserID, "type": msg.Type}).Debug("notification: external delivery skipped")
	}
	return record, nil
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if _, err := d.Deliver(ctx, msg); err != nil {
			d.log.WithError(err).WithField("user_id", msg.UserID).Warn("notification delivery failed")
		}
		cancel()
	}
}
