package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

const expenseColumns = `e.id, e.group_id, e.description, e.amount::text, e.payer, e.date, e.split_policy, e.image_url, e.created_by, e.created_at,
	COALESCE(array_agg(ep.participant ORDER BY ep.position) FILTER (WHERE ep.participant IS NOT NULL), '{}')`

// ListExpensesByGroup loads every expense of a group with its split-with set.
func (s *PostgresStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e LEFT JOIN expense_participants ep ON ep.expense_id = e.id
		 WHERE e.group_id = $1
		 GROUP BY e.id
		 ORDER BY e.date, e.created_at, e.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, scanExpense)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, nil
	}
	return expenses, nil
}

// GetExpense loads a single expense.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+expenseColumns+`
		 FROM expenses e LEFT JOIN expense_participants ep ON ep.expense_id = e.id
		 WHERE e.id = $1
		 GROUP BY e.id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanExpense)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanExpense(row pgx.CollectableRow) (models.Expense, error) {
	var (
		e            models.Expense
		amount       string
		payer        string
		policy       string
		date         int64
		participants []string
	)
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &amount, &payer, &date, &policy,
		&e.ImageURL, &e.CreatedBy, &e.CreatedAt, &participants)
	if err != nil {
		return e, fmt.Errorf("scan expense: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("expense %s amount: %w", e.ID, err)
	}
	if e.Payer, err = models.ParseRef(payer); err != nil {
		return e, fmt.Errorf("expense %s payer: %w", e.ID, err)
	}
	for _, raw := range participants {
		ref, err := models.ParseRef(raw)
		if err != nil {
			return e, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.SplitWith = append(e.SplitWith, ref)
	}
	e.Policy = models.SplitPolicy(policy)
	e.Date = time.Unix(date, 0).UTC()
	return e, nil
}

// replaceExpenses makes the stored expense set of groupID equal to expenses.
func replaceExpenses(ctx context.Context, tx pgx.Tx, groupID string, expenses []models.Expense) error {
	now := time.Now().Unix()
	keep := make([]string, 0, len(expenses))
	batch := &pgx.Batch{}

	for i := range expenses {
		e := &expenses[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt == 0 {
			e.CreatedAt = now
		}
		e.GroupID = groupID
		keep = append(keep, e.ID)

		batch.Queue(
			`INSERT INTO expenses (id, group_id, description, amount, payer, date, split_policy, image_url, created_by, created_at)
			 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			   description = EXCLUDED.description,
			   amount = EXCLUDED.amount,
			   payer = EXCLUDED.payer,
			   date = EXCLUDED.date,
			   split_policy = EXCLUDED.split_policy,
			   image_url = EXCLUDED.image_url`,
			e.ID, groupID, e.Description, e.Amount.String(), e.Payer.String(), e.Date.Unix(),
			string(e.Policy), e.ImageURL, e.CreatedBy, e.CreatedAt,
		)
		batch.Queue(`DELETE FROM expense_participants WHERE expense_id = $1`, e.ID)
		for pos, ref := range models.DedupeRefs(e.SplitWith) {
			batch.Queue(`INSERT INTO expense_participants (expense_id, participant, position) VALUES ($1, $2, $3)`,
				e.ID, ref.String(), pos)
		}
	}
	batch.Queue(`DELETE FROM expenses WHERE group_id = $1 AND NOT (id = ANY($2))`, groupID, keep)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return conflictOr(err, "replace expenses")
	}
	return nil
}
