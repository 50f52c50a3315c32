package store

import (
	"context"

	"savingscredit/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, created_at, updated_at`

type UserStore struct {
	db DB
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Email     *string
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.ExecContext(ctx, query, id, username, email, passwordHash)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	var row models.User
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		return models.User{}, err
	}
	return row, nil
}

// UpdateProfile leaves nil fields unchanged.
func (s *UserStore) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    phone = COALESCE($4, phone),
		    email = COALESCE($5, email),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, input.FirstName, input.LastName, input.Phone, input.Email)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	return err
}
