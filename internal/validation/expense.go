// Package validation gates expense writes before they reach the balance engine.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError describes why a write was rejected.
type ValidationError struct {
	Field  string
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func unknown(field string, ref models.ParticipantRef) error {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("%s is not in the group", ref),
		Err:    roster.ErrUnknownParticipant,
	}
}

// maxAmountPlaces is the precision of the currency.
const maxAmountPlaces = 2

// ValidateExpense checks e against the current roster of g and returns the
// normalized expense to store.
//
// Rules:
//   - description is non-empty after trimming
//   - amount is positive with at most two decimals
//   - payer resolves to a current participant
//   - "subset" needs a non-empty split-with of current participants
//   - "all" ignores the caller's split-with and takes everyone in the roster
func ValidateExpense(e models.Expense, g models.Group) (models.Expense, error) {
	out := e.Clone()

	out.Description = strings.TrimSpace(out.Description)
	if out.Description == "" {
		return models.Expense{}, invalid("description", "must not be empty")
	}

	if !out.Amount.IsPositive() {
		return models.Expense{}, invalid("amount", "must be greater than zero")
	}
	if !out.Amount.Equal(out.Amount.Truncate(maxAmountPlaces)) {
		return models.Expense{}, invalid("amount", "must have at most two decimal places")
	}

	if out.Payer.IsZero() {
		return models.Expense{}, invalid("payer", "is required")
	}
	if !roster.Contains(g, out.Payer) {
		return models.Expense{}, unknown("payer", out.Payer)
	}

	switch out.Policy {
	case models.SplitAll:
		out.SplitWith = roster.Everyone(g)
		if len(out.SplitWith) == 0 {
			return models.Expense{}, invalid("split_with", "group has no participants")
		}
	case models.SplitSubset:
		out.SplitWith = models.DedupeRefs(out.SplitWith)
		if len(out.SplitWith) == 0 {
			return models.Expense{}, invalid("split_with", "select at least one participant")
		}
		for _, ref := range out.SplitWith {
			if !roster.Contains(g, ref) {
				return models.Expense{}, unknown("split_with", ref)
			}
		}
	default:
		return models.Expense{}, invalid("split_policy", fmt.Sprintf("unknown policy %q", out.Policy))
	}

	return out, nil
}
