package handlers

import (
	"net/http"
	"strings"

	"savingscredit/internal/auth"
	"savingscredit/internal/db"
	"savingscredit/internal/models"
	"savingscredit/internal/store"
	"savingscredit/internal/validator"

	"github.com/google/uuid"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	userID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx db.Tx) error {
		if err := h.users.Create(r.Context(), tx, userID, req.Username, req.Email, passwordHash); err != nil {
			return err
		}
		hasAdmin, err := h.admin.HasAnyAdmin(r.Context())
		if err != nil {
			return err
		}
		if !hasAdmin {
			if err := h.admin.CreateAdmin(r.Context(), tx, userID, true, nil); err != nil {
				return err
			}
		}
		return h.audit.Log(r.Context(), tx, userID, store.AuditUserRegistered, "user", userID, map[string]any{
			"ip":          r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"super_admin": !hasAdmin,
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "username or email already exists")
			return
		}
		h.log.WithError(err).Error("registration failed")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("load registered user")
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.respondWithToken(w, http.StatusCreated, "User registered successfully", user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.WithError(err).Error("login lookup failed")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx db.Tx) error {
		return h.audit.Log(r.Context(), tx, user.ID, store.AuditUserLogin, "user", user.ID, map[string]string{
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
	}); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Error("login audit failed")
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.respondWithToken(w, http.StatusOK, "Login successful", user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, message string, user models.User) {
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondData(w, status, message, authResponse{Token: token, User: viewUser(user)})
}

type meResponse struct {
	userView
	IsAdmin      bool     `json:"isAdmin"`
	IsSuperAdmin bool     `json:"isSuperAdmin"`
	Roles        []string `json:"roles"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
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
	status, err := h.admin.Status(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	var roles []string
	if status.IsAdmin {
		if roles, err = h.admin.Roles(r.Context(), userID); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to load user")
			return
		}
	}
	if roles == nil {
		roles = []string{}
	}
	respondData(w, http.StatusOK, "", meResponse{
		userView:     viewUser(user),
		IsAdmin:      status.IsAdmin,
		IsSuperAdmin: status.IsSuper,
		Roles:        roles,
	})
}
