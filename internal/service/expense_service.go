package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"connectrpc.com/connect"

	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/internal/storage"
	"github.com/splitsquad/backend/internal/validation"
	"github.com/splitsquad/backend/pkg/api"
)

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	*core
}

// NewExpenseService creates an ExpenseService.
func NewExpenseService(cfg Config) *ExpenseService {
	return &ExpenseService{core: newCore(cfg)}
}

// fromInput builds an expense from caller input; a missing date means today.
func (s *ExpenseService) fromInput(in api.ExpenseInput) models.Expense {
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	return models.Expense{
		Description: in.Description,
		Amount:      in.Amount,
		Payer:       in.Payer,
		Date:        date.UTC(),
		Policy:      in.Policy,
		SplitWith:   in.SplitWith,
		ImageURL:    in.ImageURL,
	}
}

func indexOfExpense(expenses []models.Expense, id string) int {
	return slices.IndexFunc(expenses, func(e models.Expense) bool { return e.ID == id })
}

// CreateExpense validates an expense against the current roster and stores it.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("CreateExpense request received",
		"group_id", groupID,
		"description", req.Msg.Description,
		"amount", req.Msg.Amount.String(),
		"policy", req.Msg.Policy,
	)

	draft := s.fromInput(req.Msg.ExpenseInput)
	draft.GroupID = groupID
	draft.CreatedBy = who.userID

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		expense, err := validation.ValidateExpense(draft, cur.Group)
		if err != nil {
			return cur, err
		}
		next := cur.Clone()
		next.Expenses = append(next.Expenses, expense)
		return next, nil
	})
	if err != nil {
		return nil, fail("CreateExpense", err, "group_id", groupID)
	}

	// SaveSnapshot assigned the new expense its ID.
	created := snap.Expenses[len(snap.Expenses)-1]

	slog.Info("CreateExpense successful", "group_id", groupID, "expense_id", created.ID)
	s.publish(ctx, events.ExpenseCreated, groupID, created.ID, who.userID)

	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toExpense(created, snap.Group)}), nil
}

// UpdateExpense replaces the editable fields of an expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	expenseID := req.Msg.ExpenseID
	slog.Info("UpdateExpense request received", "expense_id", expenseID)

	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", expenseID)
	}
	groupID := existing.GroupID
	draft := s.fromInput(req.Msg.ExpenseInput)

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		i := indexOfExpense(cur.Expenses, expenseID)
		if i < 0 {
			return cur, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}

		updated := draft
		updated.ID = expenseID
		updated.GroupID = groupID
		updated.CreatedBy = cur.Expenses[i].CreatedBy
		updated.CreatedAt = cur.Expenses[i].CreatedAt

		expense, err := validation.ValidateExpense(updated, cur.Group)
		if err != nil {
			return cur, err
		}
		next := cur.Clone()
		next.Expenses[i] = expense
		return next, nil
	})
	if err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", expenseID)
	}

	updated := snap.Expenses[indexOfExpense(snap.Expenses, expenseID)]

	slog.Info("UpdateExpense successful", "group_id", groupID, "expense_id", expenseID)
	s.publish(ctx, events.ExpenseUpdated, groupID, expenseID, who.userID)

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toExpense(updated, snap.Group)}), nil
}

// DeleteExpense removes an expense from its group.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	expenseID := req.Msg.ExpenseID
	slog.Info("DeleteExpense request received", "expense_id", expenseID)

	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, fail("DeleteExpense", err, "expense_id", expenseID)
	}
	groupID := existing.GroupID

	_, err = s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		i := indexOfExpense(cur.Expenses, expenseID)
		if i < 0 {
			return cur, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}
		next := cur.Clone()
		next.Expenses = slices.Delete(next.Expenses, i, i+1)
		return next, nil
	})
	if err != nil {
		return nil, fail("DeleteExpense", err, "expense_id", expenseID)
	}

	slog.Info("DeleteExpense successful", "group_id", groupID, "expense_id", expenseID)
	s.publish(ctx, events.ExpenseDeleted, groupID, expenseID, who.userID)

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// ListExpenses returns the expenses of a group with participant names resolved.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("ListExpenses request received", "group_id", groupID)

	snap, err := s.loadAsMember(ctx, groupID, who.userID)
	if err != nil {
		return nil, fail("ListExpenses", err, "group_id", groupID)
	}

	out := make([]api.Expense, len(snap.Expenses))
	for i, e := range snap.Expenses {
		out[i] = toExpense(e, snap.Group)
	}

	slog.Info("ListExpenses successful", "group_id", groupID, "count", len(out))

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}
