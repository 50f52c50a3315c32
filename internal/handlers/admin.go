package handlers

import (
	"context"
	"net/http"
	"strings"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
	"savingscredit/internal/services"
	"savingscredit/internal/store"
	"savingscredit/internal/validator"

	"github.com/go-chi/chi/v5"
)

type promoteRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// PromoteAdmin accepts a username or an email. RequireSuperAdmin guards the route.
func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req promoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := h.resolveUser(r.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		if store.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to resolve user")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx db.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, target.ID, false, &userID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, store.AuditAdminPromoted, "admin", target.ID, map[string]string{
			"target_user_id": target.ID,
		})
	})
	if err != nil {
		h.log.WithError(err).WithField("target_user_id", target.ID).Error("promote admin failed")
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	respondData(w, http.StatusCreated, "Admin promoted", map[string]string{"userId": target.ID})
}

func (h *Handler) resolveUser(ctx context.Context, identifier string) (models.User, error) {
	if strings.Contains(identifier, "@") {
		return h.users.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return h.users.GetByUsername(ctx, identifier)
}

type grantRoleRequest struct {
	AdminUserID string `json:"adminUserId" validate:"required"`
	Role        string `json:"role" validate:"required,oneof=CanReviewCredit CanViewAccounts"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := h.admin.Status(r.Context(), req.AdminUserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify target admin")
		return
	}
	if !target.IsAdmin {
		respondError(w, http.StatusBadRequest, "target is not an admin")
		return
	}
	if target.IsSuper {
		respondError(w, http.StatusBadRequest, "cannot assign roles to super admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx db.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.AdminUserID, req.Role); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, store.AuditRoleGranted, "admin_role", req.AdminUserID, map[string]string{
			"role": req.Role,
		})
	})
	if err != nil {
		h.log.WithError(err).WithField("admin_user_id", req.AdminUserID).Error("grant role failed")
		respondError(w, http.StatusInternalServerError, "unable to grant role")
		return
	}
	respondData(w, http.StatusCreated, "Role granted", nil)
}

func (h *Handler) ApproveCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	request, err := h.credit.ApproveCredit(r.Context(), chi.URLParam(r, "id"), adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Credit request approved", viewCredit(request))
}

type rejectCreditRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) RejectCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req rejectCreditRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, err := h.credit.RejectCredit(r.Context(), chi.URLParam(r, "id"), adminID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Credit request rejected", viewCredit(request))
}

func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.accounts.ListAllWithUsers(r.Context(), page.Limit, page.Offset())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	total, err := h.accounts.CountAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, services.NewPage(rows, total, page), viewAdminAccount)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.audit.List(r.Context(), page.Limit, page.Offset())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	total, err := h.audit.Count(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, services.NewPage(rows, total, page), func(row store.AuditLog) store.AuditLog { return row })
}

// Reconcile lists only the accounts whose balance drifted from the log.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.accounts.Reconcile(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	checks := make([]ledgerCheckView, 0, len(rows))
	for _, row := range rows {
		checks = append(checks, viewLedgerCheck(row))
	}
	respondData(w, http.StatusOK, "", checks)
}
