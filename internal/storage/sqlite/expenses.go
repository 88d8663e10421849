package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

const expenseColumns = `id, group_id, description, amount, payer, date, split_policy, image_url, created_by, created_at`

// ListExpensesByGroup retrieves all expenses of a group with their split-with sets.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	var expenses []models.Expense
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		expenses, err = listExpenses(ctx, tx, groupID)
		return err
	})
	return expenses, err
}

func listExpenses(ctx context.Context, tx *sql.Tx, groupID string) ([]models.Expense, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY date, created_at, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	index := make(map[string]int)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	rows.Close()

	// Get split-with sets for the whole group at once
	partRows, err := tx.QueryContext(ctx,
		`SELECT ep.expense_id, ep.participant
		 FROM expense_participants ep JOIN expenses e ON e.id = ep.expense_id
		 WHERE e.group_id = ? ORDER BY ep.expense_id, ep.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		var expenseID, raw string
		if err := partRows.Scan(&expenseID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan expense participant: %w", err)
		}
		ref, err := models.ParseRef(raw)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", expenseID, err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].SplitWith = append(expenses[i].SplitWith, ref)
		}
	}
	if err := partRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense participants: %w", err)
	}

	return expenses, nil
}

// GetExpense retrieves a single expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var e models.Expense
	err := s.readTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", expenseID)
		var err error
		e, err = scanExpense(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT participant FROM expense_participants WHERE expense_id = ? ORDER BY position",
			expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to get expense participants: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("failed to scan expense participant: %w", err)
			}
			ref, err := models.ParseRef(raw)
			if err != nil {
				return fmt.Errorf("expense %s: %w", expenseID, err)
			}
			e.SplitWith = append(e.SplitWith, ref)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate expense participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (models.Expense, error) {
	var (
		e      models.Expense
		payer  string
		policy string
		date   int64
	)
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &payer, &date, &policy,
		&e.ImageURL, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan expense: %w", err)
	}
	if e.Payer, err = models.ParseRef(payer); err != nil {
		return e, fmt.Errorf("expense %s payer: %w", e.ID, err)
	}
	e.Policy = models.SplitPolicy(policy)
	e.Date = time.Unix(date, 0).UTC()
	return e, nil
}

// replaceExpenses makes the stored expense set of groupID equal to expenses.
func replaceExpenses(ctx context.Context, tx *sql.Tx, groupID string, expenses []models.Expense) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM expenses WHERE group_id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to list stored expenses: %w", err)
	}
	stored := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan stored expense: %w", err)
		}
		stored[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate stored expenses: %w", err)
	}

	now := time.Now().Unix()
	for i := range expenses {
		e := &expenses[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt == 0 {
			e.CreatedAt = now
		}
		e.GroupID = groupID
		delete(stored, e.ID)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   description = excluded.description,
			   amount = excluded.amount,
			   payer = excluded.payer,
			   date = excluded.date,
			   split_policy = excluded.split_policy,
			   image_url = excluded.image_url`,
			e.ID, groupID, e.Description, e.Amount.String(), e.Payer.String(), e.Date.Unix(),
			string(e.Policy), e.ImageURL, e.CreatedBy, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert expense: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM expense_participants WHERE expense_id = ?", e.ID); err != nil {
			return fmt.Errorf("failed to clear expense participants: %w", err)
		}
		for pos, ref := range models.DedupeRefs(e.SplitWith) {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO expense_participants (expense_id, participant, position) VALUES (?, ?, ?)",
				e.ID, ref.String(), pos,
			)
			if err != nil {
				return fmt.Errorf("failed to insert expense participant: %w", err)
			}
		}
	}

	for id := range stored {
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
	}
	return nil
}
