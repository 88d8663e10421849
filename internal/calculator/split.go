package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

var (
	// cent is the smallest amount the planners act on.
	cent = decimal.New(1, -2)
)

// EqualShare returns amount divided evenly among n participants at full
// precision. The share is never rounded; rounding happens on totals only.
func EqualShare(amount decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(n)))
}

// RoundCents rounds d to two decimals, half away from zero: 0.005 becomes
// 0.01 and -0.005 becomes -0.01, so a credit and the matching debt round to
// the same magnitude.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// splitOf returns the deduplicated split-with set of e and its per-person share.
// Duplicates would otherwise charge the same participant twice.
func splitOf(e models.Expense) ([]models.ParticipantRef, decimal.Decimal) {
	participants := models.DedupeRefs(e.SplitWith)
	return participants, EqualShare(e.Amount, len(participants))
}

// participantOrder lists everyone a computation reports on: confirmed members
// and pending invitees in roster order, then references that only appear in
// history, in order of first appearance.
type participantOrder struct {
	refs  []models.ParticipantRef
	index map[models.ParticipantRef]int
}

func newParticipantOrder(g models.Group) *participantOrder {
	o := &participantOrder{index: make(map[models.ParticipantRef]int)}
	for _, m := range g.Members {
		o.add(m.Ref())
	}
	for _, p := range g.Pending {
		o.add(p.Ref())
	}
	return o
}

func (o *participantOrder) add(ref models.ParticipantRef) int {
	if i, ok := o.index[ref]; ok {
		return i
	}
	o.index[ref] = len(o.refs)
	o.refs = append(o.refs, ref)
	return len(o.refs) - 1
}
