// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/splitsquad/backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned when a snapshot write loses a race
	// against another write to the same group. The whole operation can be
	// retried from a fresh snapshot.
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// Store defines the interface for SplitSquad storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	GroupStore
	UserStore
	SettlementStore

	// Close releases any resources held by the store.
	Close() error
}

// GroupStore persists groups and their expenses as one unit.
type GroupStore interface {
	// CreateGroup persists a new group with its initial roster.
	// ID, CreatedAt and Version are populated by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup loads a group with its confirmed and pending members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsByMember returns the groups userID is a confirmed member of.
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)

	// ListGroupIDsByPendingEmail returns the groups where email is pending.
	ListGroupIDsByPendingEmail(ctx context.Context, email string) ([]string, error)

	// ListExpensesByGroup loads every expense of a group, oldest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	// GetExpense loads a single expense.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// SaveSnapshot atomically writes the group, replaces its expense set and
	// records its settlements. Expenses missing from the slice are deleted,
	// the rest are upserted (new ones get an ID and CreatedAt). Settlements
	// are append-only: new ones are inserted, existing ones only have their
	// participant references updated, and stored ones missing from the slice
	// are left alone. group.Version must match the stored version, otherwise
	// ErrConcurrencyConflict is returned and nothing is written. On success
	// group.Version is incremented.
	SaveSnapshot(ctx context.Context, group *models.Group, expenses []models.Expense, settlements []models.Settlement) error

	// DeleteGroup removes a group with its roster, expenses and settlements.
	DeleteGroup(ctx context.Context, groupID string) error
}

// UserStore persists user profiles.
type UserStore interface {
	// UpsertUser creates the user or updates its profile fields.
	UpsertUser(ctx context.Context, user *models.User) error

	// GetUserByID returns ErrNotFound when the user has no profile yet.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// SettlementStore reads recorded payments. They are written with the
// group snapshot.
type SettlementStore interface {
	// ListSettlementsByGroup returns a group's settlements, newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)
}
