// Package calculator computes group balances, settlement plans and
// pairwise debts from a roster and its expense history.
//
// All functions are pure: they read the snapshot they are given and return
// fresh values, so they are safe to call concurrently.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

// Balance is one participant's position across all expenses and settlements.
type Balance struct {
	Ref models.ParticipantRef

	// Net is Exact rounded to cents. Positive = owed money, negative = owes money.
	Net decimal.Decimal

	// Exact is the unrounded net balance. The settlement planner works on it.
	Exact decimal.Decimal

	// TotalPaid is what the participant fronted or paid back (rounded).
	TotalPaid decimal.Decimal

	// TotalOwed is the participant's share of costs plus payments received (rounded).
	TotalOwed decimal.Decimal
}

// NewBalance returns a Balance whose exact and rounded amounts are both amount.
func NewBalance(ref models.ParticipantRef, amount decimal.Decimal) Balance {
	return Balance{Ref: ref, Net: RoundCents(amount), Exact: amount}
}

// BalanceSheet is the ordered result of ComputeBalances.
type BalanceSheet struct {
	Balances []Balance
}

// Get returns the balance for ref.
func (s BalanceSheet) Get(ref models.ParticipantRef) (Balance, bool) {
	for _, b := range s.Balances {
		if b.Ref == ref {
			return b, true
		}
	}
	return Balance{}, false
}

// Net returns the rounded balance of every participant keyed by reference.
func (s BalanceSheet) Net() map[models.ParticipantRef]decimal.Decimal {
	out := make(map[models.ParticipantRef]decimal.Decimal, len(s.Balances))
	for _, b := range s.Balances {
		out[b.Ref] = b.Net
	}
	return out
}

// Sum returns the sum of the rounded balances. It is zero up to rounding.
func (s BalanceSheet) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.Balances {
		sum = sum.Add(b.Net)
	}
	return sum
}

// ComputeBalances returns the net balance of every participant.
//
// Algorithm, per expense with deduplicated split-with S and share = amount/|S|:
//   - every p in S owes share
//   - the payer is credited the full amount, so a payer inside S nets
//     amount - share and a payer outside S nets the whole amount
//
// A settlement from a to b credits a and debits b by its amount.
// Expenses with an empty split-with carry no cost and are skipped.
//
// The result lists roster members, then pending invitees, then references
// that only survive in history (e.g. removed members), keyed by their raw
// reference. Rounding is applied once per participant total.
func ComputeBalances(g models.Group, expenses []models.Expense, settlements []models.Settlement) BalanceSheet {
	order := newParticipantOrder(g)
	paid := make(map[int]decimal.Decimal)
	owed := make(map[int]decimal.Decimal)

	accumulate := func(m map[int]decimal.Decimal, ref models.ParticipantRef, amount decimal.Decimal) {
		i := order.add(ref)
		m[i] = m[i].Add(amount)
	}

	for _, e := range expenses {
		participants, share := splitOf(e)
		if len(participants) == 0 || e.Payer.IsZero() {
			continue
		}

		// Payer fronted the full amount
		accumulate(paid, e.Payer, e.Amount)

		// Each participant owes their share
		for _, p := range participants {
			accumulate(owed, p, share)
		}
	}

	for _, s := range settlements {
		if s.From.IsZero() || s.To.IsZero() {
			continue
		}
		accumulate(paid, s.From, s.Amount)
		accumulate(owed, s.To, s.Amount)
	}

	sheet := BalanceSheet{Balances: make([]Balance, len(order.refs))}
	for i, ref := range order.refs {
		exact := paid[i].Sub(owed[i])
		sheet.Balances[i] = Balance{
			Ref:       ref,
			Net:       RoundCents(exact),
			Exact:     exact,
			TotalPaid: RoundCents(paid[i]),
			TotalOwed: RoundCents(owed[i]),
		}
	}
	return sheet
}
