package handlers

import (
	"net/http"
	"strings"

	"savingscredit/internal/auth"
	"savingscredit/internal/db"
	"savingscredit/internal/store"
	"savingscredit/internal/validator"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondData(w, http.StatusOK, "", viewUser(user))
}

type updateProfileRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,min=7,max=20"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), userID, store.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.PhoneNumber,
		Email:     req.Email,
	})
	if err != nil {
		switch {
		case store.IsNotFound(err):
			respondError(w, http.StatusNotFound, "User not found")
		case db.IsUniqueViolation(err):
			respondError(w, http.StatusConflict, "Email or phone number is already in use")
		default:
			h.log.WithError(err).WithField("user_id", userID).Error("update profile failed")
			respondError(w, http.StatusInternalServerError, "unable to update profile")
		}
		return
	}
	respondData(w, http.StatusOK, "Profile updated successfully", viewUser(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to change password")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	if err := h.users.UpdatePassword(r.Context(), userID, hash); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("update password failed")
		respondError(w, http.StatusInternalServerError, "unable to change password")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx db.Tx) error {
		return h.audit.Log(r.Context(), tx, userID, store.AuditPasswordChanged, "user", userID, nil)
	}); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("password change audit failed")
	}
	respondData(w, http.StatusOK, "Password changed successfully", nil)
}
