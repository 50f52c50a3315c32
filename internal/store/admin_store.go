package store

import (
	"context"
	"database/sql"
	"errors"
)

const (
	RoleReviewCredit = "CanReviewCredit"
	RoleViewAccounts = "CanViewAccounts"
)

type AdminStore struct {
	db DB
}

type AdminStatus struct {
	IsAdmin bool
	IsSuper bool
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) Status(ctx context.Context, userID string) (AdminStatus, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `
		SELECT is_super
		FROM admins
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminStatus{}, nil
		}
		return AdminStatus{}, err
	}
	return AdminStatus{IsAdmin: true, IsSuper: isSuper}, nil
}

func (s *AdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM admin_roles
		WHERE admin_user_id = $1 AND role = $2
	`, userID, role)
	return count > 0, err
}

func (s *AdminStore) Roles(ctx context.Context, userID string) ([]string, error) {
	roles := []string{}
	err := s.db.SelectContext(ctx, &roles, `
		SELECT role FROM admin_roles WHERE admin_user_id = $1 ORDER BY role
	`, userID)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *AdminStore) CreateAdmin(ctx context.Context, tx Execer, userID string, isSuper bool, createdBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (user_id, is_super, created_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, isSuper, createdBy)
	return err
}

func (s *AdminStore) GrantRole(ctx context.Context, tx Execer, adminUserID, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_roles (admin_user_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, adminUserID, role)
	return err
}

func (s *AdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM admins`)
	return count > 0, err
}
