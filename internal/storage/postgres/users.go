package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

// UpsertUser inserts a user or refreshes its profile fields.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = models.NormalizeEmail(user.Email)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, display_name, etransfer_email, etransfer_phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   display_name = EXCLUDED.display_name,
		   etransfer_email = EXCLUDED.etransfer_email,
		   etransfer_phone = EXCLUDED.etransfer_phone,
		   updated_at = EXCLUDED.updated_at`,
		user.ID, user.Email, user.DisplayName, user.ETransferEmail, user.ETransferPhone, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUserByID returns storage.ErrNotFound when the user has no profile.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, display_name, etransfer_email, etransfer_phone, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.ETransferEmail, &user.ETransferPhone,
		&user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
