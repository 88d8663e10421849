// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers, so snapshot transactions never
	// interleave and the pragma below applies to every statement.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGroup persists a new group with its initial roster.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, invite_token_hash, invite_expires_at, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.InviteTokenHash, group.InviteExpiresAt, group.Version, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertRoster(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including confirmed and pending members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group *models.Group
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		group, err = getGroup(ctx, tx, groupID)
		return err
	})
	return group, err
}

func getGroup(ctx context.Context, tx *sql.Tx, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, invite_token_hash, invite_expires_at, version, created_at
		 FROM groups WHERE id = ?`,
		groupID,
	).Scan(&group.ID, &group.Name, &group.InviteTokenHash, &group.InviteExpiresAt, &group.Version, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	// Get confirmed members with their profiles
	rows, err := tx.QueryContext(ctx,
		`SELECT u.id, u.display_name, u.email, u.etransfer_email, u.etransfer_phone
		 FROM group_members gm JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = ? ORDER BY gm.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.ETransferEmail, &m.ETransferPhone); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}
	rows.Close()

	// Get pending members
	pendingRows, err := tx.QueryContext(ctx,
		"SELECT email, name FROM group_pending WHERE group_id = ? ORDER BY position",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending members: %w", err)
	}
	defer pendingRows.Close()

	for pendingRows.Next() {
		var p models.PendingMember
		if err := pendingRows.Scan(&p.Email, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan pending member: %w", err)
		}
		group.Pending = append(group.Pending, p)
	}
	if err := pendingRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending members: %w", err)
	}

	return group, nil
}

// ListGroupsByMember returns every group userID is a confirmed member of.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	ids, err := s.queryIDs(ctx,
		`SELECT g.id FROM groups g JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = ? ORDER BY g.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by member: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ListGroupIDsByPendingEmail returns the groups where email is pending.
func (s *SQLiteStore) ListGroupIDsByPendingEmail(ctx context.Context, email string) ([]string, error) {
	ids, err := s.queryIDs(ctx,
		"SELECT group_id FROM group_pending WHERE email = ? ORDER BY group_id",
		models.NormalizeEmail(email),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by pending email: %w", err)
	}
	return ids, nil
}

// SaveSnapshot writes the group roster, its full expense set and its
// settlements in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, group *models.Group, expenses []models.Expense, settlements []models.Settlement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET name = ?, invite_token_hash = ?, invite_expires_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		group.Name, group.InviteTokenHash, group.InviteExpiresAt, group.ID, group.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated group: %w", err)
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", group.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
		}
		return fmt.Errorf("group %s at version %d: %w", group.ID, group.Version, storage.ErrConcurrencyConflict)
	}

	// Replace roster
	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM group_pending WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to clear pending members: %w", err)
	}
	if err := insertRoster(ctx, tx, group); err != nil {
		return err
	}

	if err := replaceExpenses(ctx, tx, group.ID, expenses); err != nil {
		return err
	}
	if err := recordSettlements(ctx, tx, group.ID, settlements); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	group.Version++
	return nil
}

// DeleteGroup removes a group; foreign keys cascade to everything it owns.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted group: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

func insertRoster(ctx context.Context, tx *sql.Tx, group *models.Group) error {
	for i, m := range group.Members {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id, position) VALUES (?, ?, ?)",
			group.ID, m.ID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}
	for i, p := range group.Pending {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_pending (group_id, email, name, position) VALUES (?, ?, ?, ?)",
			group.ID, models.NormalizeEmail(p.Email), p.Name, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert pending member: %w", err)
		}
	}
	return nil
}

// readTx runs fn in a transaction so reads spanning several statements see
// one committed state. fn must only use tx: the store has a single
// connection.
func (s *SQLiteStore) readTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
