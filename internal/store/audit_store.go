package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AuditAccountFrozen   = "savings.freeze"
	AuditAccountUnfrozen = "savings.unfreeze"
	AuditAccountDeleted  = "savings.delete"
	AuditCreditApproved  = "credit.approve"
	AuditCreditRejected  = "credit.reject"
	AuditRoleGranted     = "admin.grant_role"
	AuditAdminPromoted   = "admin.promote"
	AuditUserRegistered  = "user.register"
	AuditUserLogin       = "user.login"
	AuditPasswordChanged = "user.password"
)

type AuditStore struct {
	db DB
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log records one state change. data is marshalled to JSON; nil stores "{}".
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID string, data any) error {
	payload := "{}"
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), actor, action, entityType, entityID, payload)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]AuditLog, error) {
	rows := []AuditLog{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AuditStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM audit_logs`)
	return count, err
}
