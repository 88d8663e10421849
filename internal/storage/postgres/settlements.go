package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

// recordSettlements inserts new settlements and rewrites the participant
// references of stored ones. Amounts of recorded payments never change.
func recordSettlements(ctx context.Context, tx pgx.Tx, groupID string, settlements []models.Settlement) error {
	if len(settlements) == 0 {
		return nil
	}

	now := time.Now().Unix()
	batch := &pgx.Batch{}
	for i := range settlements {
		st := &settlements[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.CreatedAt == 0 {
			st.CreatedAt = now
		}
		st.GroupID = groupID

		var note *string
		if st.Note != "" {
			note = &st.Note
		}

		batch.Queue(
			`INSERT INTO settlements (id, group_id, from_ref, to_ref, amount, created_at, created_by, note)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET from_ref = EXCLUDED.from_ref, to_ref = EXCLUDED.to_ref`,
			st.ID, groupID, st.From.String(), st.To.String(),
			st.Amount.String(), st.CreatedAt, st.CreatedBy, note,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return conflictOr(err, "record settlements")
	}
	return nil
}

// ListSettlementsByGroup returns a group's settlements, newest first.
func (s *PostgresStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_id, from_ref, to_ref, amount::text, created_at, created_by, note
		 FROM settlements WHERE group_id = $1 ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}

	settlements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Settlement, error) {
		var (
			st       models.Settlement
			from, to string
			amount   string
			note     *string
		)
		if err := row.Scan(&st.ID, &st.GroupID, &from, &to, &amount, &st.CreatedAt, &st.CreatedBy, &note); err != nil {
			return nil, err
		}
		var err error
		if st.From, err = models.ParseRef(from); err != nil {
			return nil, err
		}
		if st.To, err = models.ParseRef(to); err != nil {
			return nil, err
		}
		if st.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if note != nil {
			st.Note = *note
		}
		return &st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan settlements: %w", err)
	}
	if len(settlements) == 0 {
		return nil, nil
	}
	return settlements, nil
}
