package handlers

import (
	"net/http"
	"strconv"

	"savingscredit/internal/notifications"
	"savingscredit/internal/validator"
	"savingscredit/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type createNotificationRequest struct {
	UserID  string `json:"userId"`
	Type    string `json:"type" validate:"required,oneof=email sms in_app"`
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
}

// CreateNotification targets the caller unless an admin names another user.
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	target := userID
	if req.UserID != "" && req.UserID != userID {
		status, err := h.admin.Status(r.Context(), userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to verify admin")
			return
		}
		if !status.IsAdmin {
			respondError(w, http.StatusForbidden, "admin_required")
			return
		}
		target = req.UserID
	}
	record, err := h.notifications.Create(r.Context(), notifications.Message{
		UserID:  target,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Notification queued", viewNotification(record))
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			respondError(w, http.StatusBadRequest, "unread must be true or false")
			return
		}
	}
	result, err := h.notifications.List(r.Context(), userID, unreadOnly, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, result, viewNotification)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if _, err := h.notifications.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Marked as read", nil)
}

func (h *Handler) WSNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, userID)
}
