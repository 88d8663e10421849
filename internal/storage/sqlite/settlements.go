package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitsquad/backend/internal/models"
)

// recordSettlements inserts new settlements and rewrites the participant
// references of stored ones. Amounts of recorded payments never change.
func recordSettlements(ctx context.Context, tx *sql.Tx, groupID string, settlements []models.Settlement) error {
	now := time.Now().Unix()
	for i := range settlements {
		st := &settlements[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.CreatedAt == 0 {
			st.CreatedAt = now
		}
		st.GroupID = groupID

		var note interface{} = nil
		if st.Note != "" {
			note = st.Note
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO settlements (id, group_id, from_ref, to_ref, amount, created_at, created_by, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET from_ref = excluded.from_ref, to_ref = excluded.to_ref`,
			st.ID, groupID, st.From.String(), st.To.String(),
			st.Amount.String(), st.CreatedAt, st.CreatedBy, note,
		)
		if err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
	}
	return nil
}

// ListSettlementsByGroup retrieves all settlements for a group.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_ref, to_ref, amount, created_at, created_by, note
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		var from, to string
		var note sql.NullString

		if err := rows.Scan(&settlement.ID, &settlement.GroupID, &from, &to,
			&settlement.Amount, &settlement.CreatedAt, &settlement.CreatedBy, &note); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}

		if settlement.From, err = models.ParseRef(from); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", settlement.ID, err)
		}
		if settlement.To, err = models.ParseRef(to); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", settlement.ID, err)
		}
		if note.Valid {
			settlement.Note = note.String
		}

		settlements = append(settlements, settlement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}
