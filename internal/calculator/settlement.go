package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

// ErrInternalConsistency is returned when balances do not net to zero, which
// means the balance computation or the stored data is broken.
var ErrInternalConsistency = errors.New("internal consistency error")

// Transfer is one suggested payment.
type Transfer struct {
	From   models.ParticipantRef // Person who owes
	To     models.ParticipantRef // Person who is owed
	Amount decimal.Decimal
}

type party struct {
	ref       models.ParticipantRef
	remaining decimal.Decimal // always positive
}

// PlanSettlement turns balances into a list of transfers that settles everyone.
//
// Creditors and debtors keep the order they have in balances. A two-pointer
// sweep matches the first unsettled debtor with the first unsettled creditor
// for min(debt, credit); amounts of a cent or less are not emitted, and a
// party counts as settled once less than a cent remains. This needs at most
// n-1 transfers but is not guaranteed to be the global minimum.
//
// The planner works on the unrounded Exact amounts. If one side runs out
// while the other still holds a cent or more, the input did not sum to zero
// and ErrInternalConsistency is returned.
func PlanSettlement(balances []Balance) ([]Transfer, error) {
	var creditors, debtors []*party
	for _, b := range balances {
		switch b.Exact.Sign() {
		case 1:
			creditors = append(creditors, &party{ref: b.Ref, remaining: b.Exact})
		case -1:
			debtors = append(debtors, &party{ref: b.Ref, remaining: b.Exact.Neg()})
		}
	}

	i, j := 0, 0
	var transfers []Transfer
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := debtors[i], creditors[j]

		payAmount := decimal.Min(debtor.remaining, creditor.remaining)
		if payAmount.GreaterThan(cent) {
			transfers = append(transfers, Transfer{
				From:   debtor.ref,
				To:     creditor.ref,
				Amount: RoundCents(payAmount),
			})
		}

		debtor.remaining = debtor.remaining.Sub(payAmount)
		creditor.remaining = creditor.remaining.Sub(payAmount)

		i = skipSettled(debtors, i)
		j = skipSettled(creditors, j)
	}

	if err := checkResidual(debtors[i:], "debtor"); err != nil {
		return nil, err
	}
	if err := checkResidual(creditors[j:], "creditor"); err != nil {
		return nil, err
	}

	return transfers, nil
}

// skipSettled returns the first index at or after from whose party still
// holds a cent or more.
func skipSettled(parties []*party, from int) int {
	for from < len(parties) && parties[from].remaining.LessThan(cent) {
		from++
	}
	return from
}

func checkResidual(rest []*party, side string) error {
	for _, p := range rest {
		if p.remaining.GreaterThanOrEqual(cent) {
			return fmt.Errorf("%w: %s %s left with %s after settlement",
				ErrInternalConsistency, side, p.ref, p.remaining.StringFixed(2))
		}
	}
	return nil
}
