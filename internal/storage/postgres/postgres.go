// Package postgres provides a PostgreSQL-backed implementation of the storage.Store interface.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ storage.Store = (*PostgresStore)(nil)

// PostgresStore implements storage.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to dsn and brings the schema up to date.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// conflictOr maps serialization failures to storage.ErrConcurrencyConflict.
func conflictOr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
		return fmt.Errorf("%s: %w", op, storage.ErrConcurrencyConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) serializable(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictOr(err, "commit tx")
	}
	return nil
}

// CreateGroup persists a new group with its initial roster.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Version = 1

	return s.serializable(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (id, name, invite_token_hash, invite_expires_at, version, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			group.ID, group.Name, group.InviteTokenHash, group.InviteExpiresAt, group.Version, group.CreatedAt,
		)
		if err != nil {
			return conflictOr(err, "insert group")
		}
		return insertRoster(ctx, tx, group)
	})
}

// GetGroup loads a group with its confirmed and pending members.
func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, invite_token_hash, invite_expires_at, version, created_at
		 FROM groups WHERE id = $1`,
		groupID,
	).Scan(&group.ID, &group.Name, &group.InviteTokenHash, &group.InviteExpiresAt, &group.Version, &group.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.display_name, u.email, u.etransfer_email, u.etransfer_phone
		 FROM group_members gm JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = $1 ORDER BY gm.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	group.Members, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Member, error) {
		var m models.Member
		err := row.Scan(&m.ID, &m.Name, &m.Email, &m.ETransferEmail, &m.ETransferPhone)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan group members: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT email, name FROM group_pending WHERE group_id = $1 ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending members: %w", err)
	}
	group.Pending, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PendingMember, error) {
		var p models.PendingMember
		err := row.Scan(&p.Email, &p.Name)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending members: %w", err)
	}

	if len(group.Members) == 0 {
		group.Members = nil
	}
	if len(group.Pending) == 0 {
		group.Pending = nil
	}
	return group, nil
}

// ListGroupsByMember returns every group userID is a confirmed member of.
func (s *PostgresStore) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.id FROM groups g JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = $1 ORDER BY g.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups by member: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan group ids: %w", err)
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
func (s *PostgresStore) ListGroupIDsByPendingEmail(ctx context.Context, email string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT group_id FROM group_pending WHERE email = $1 ORDER BY group_id`,
		models.NormalizeEmail(email),
	)
	if err != nil {
		return nil, fmt.Errorf("list groups by pending email: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan group ids: %w", err)
	}
	return ids, nil
}

// SaveSnapshot writes the roster, the full expense set and the settlements
// under a serializable transaction guarded by the group version.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, group *models.Group, expenses []models.Expense, settlements []models.Settlement) error {
	err := s.serializable(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE groups SET name = $1, invite_token_hash = $2, invite_expires_at = $3, version = version + 1
			 WHERE id = $4 AND version = $5`,
			group.Name, group.InviteTokenHash, group.InviteExpiresAt, group.ID, group.Version,
		)
		if err != nil {
			return conflictOr(err, "update group")
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, group.ID).Scan(&exists)
			if err != nil {
				return conflictOr(err, "check group")
			}
			if !exists {
				return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
			}
			return fmt.Errorf("group %s at version %d: %w", group.ID, group.Version, storage.ErrConcurrencyConflict)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, group.ID); err != nil {
			return conflictOr(err, "clear group members")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_pending WHERE group_id = $1`, group.ID); err != nil {
			return conflictOr(err, "clear pending members")
		}
		if err := insertRoster(ctx, tx, group); err != nil {
			return err
		}
		if err := replaceExpenses(ctx, tx, group.ID, expenses); err != nil {
			return err
		}
		return recordSettlements(ctx, tx, group.ID, settlements)
	})
	if err != nil {
		return err
	}
	group.Version++
	return nil
}

// DeleteGroup removes a group; foreign keys cascade to everything it owns.
func (s *PostgresStore) DeleteGroup(ctx context.Context, groupID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

func insertRoster(ctx context.Context, tx pgx.Tx, group *models.Group) error {
	batch := &pgx.Batch{}
	for i, m := range group.Members {
		batch.Queue(`INSERT INTO group_members (group_id, user_id, position) VALUES ($1, $2, $3)`,
			group.ID, m.ID, i)
	}
	for i, p := range group.Pending {
		batch.Queue(`INSERT INTO group_pending (group_id, email, name, position) VALUES ($1, $2, $3, $4)`,
			group.ID, models.NormalizeEmail(p.Email), p.Name, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return conflictOr(err, "insert roster")
	}
	return nil
}
