package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitPolicy decides who shares an expense.
type SplitPolicy string

const (
	// SplitAll splits with every current participant. The split-with set is
	// recomputed whenever the roster changes.
	SplitAll SplitPolicy = "all"

	// SplitSubset splits with an explicit list fixed when the expense is
	// written; roster changes never touch it.
	SplitSubset SplitPolicy = "subset"
)

// Valid reports whether p is a known policy.
func (p SplitPolicy) Valid() bool {
	return p == SplitAll || p == SplitSubset
}

// Expense is a shared cost recorded in a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	Description string

	// Amount is the positive total, in currency units with two decimals.
	Amount decimal.Decimal

	// Payer is who fronted the money.
	Payer ParticipantRef

	// Date is when the expense happened (caller supplied).
	Date time.Time

	Policy SplitPolicy

	// SplitWith lists the participants sharing the cost. Never empty once validated.
	SplitWith []ParticipantRef

	// ImageURL is an optional proof-of-payment reference, opaque to the core.
	ImageURL string

	// CreatedBy is the user ID who recorded the expense.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// Clone returns a copy of e that shares no slices with it.
func (e Expense) Clone() Expense {
	c := e
	c.SplitWith = append([]ParticipantRef(nil), e.SplitWith...)
	return c
}

// CloneExpenses copies every expense in expenses.
func CloneExpenses(expenses []Expense) []Expense {
	out := make([]Expense, len(expenses))
	for i, e := range expenses {
		out[i] = e.Clone()
	}
	return out
}
