package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

// DebtEdge represents a netted debt from one person to another.
type DebtEdge struct {
	From   models.ParticipantRef // Person who owes
	To     models.ParticipantRef // Person who is owed
	Amount decimal.Decimal
}

// ComputePairwiseDebts returns who owes whom based on actual obligations,
// not an optimized transfer graph.
//
// For every expense each participant other than the payer owes the payer
// their share. A settlement from a to b reduces what a owes b. Debts between
// each pair are then netted and only pairs with more than a cent outstanding
// are returned, ordered like ComputeBalances orders participants.
func ComputePairwiseDebts(g models.Group, expenses []models.Expense, settlements []models.Settlement) []DebtEdge {
	order := newParticipantOrder(g)

	// debts[debtor][creditor] = amount
	debts := make(map[int]map[int]decimal.Decimal)
	owe := func(debtor, creditor models.ParticipantRef, amount decimal.Decimal) {
		d, c := order.add(debtor), order.add(creditor)
		if d == c {
			return
		}
		if _, exists := debts[d]; !exists {
			debts[d] = make(map[int]decimal.Decimal)
		}
		debts[d][c] = debts[d][c].Add(amount)
	}

	for _, e := range expenses {
		participants, share := splitOf(e)
		if len(participants) == 0 || e.Payer.IsZero() {
			continue
		}
		order.add(e.Payer)
		for _, p := range participants {
			owe(p, e.Payer, share)
		}
	}

	for _, s := range settlements {
		if s.From.IsZero() || s.To.IsZero() {
			continue
		}
		// Paying b back is the same as b owing a that much
		owe(s.To, s.From, s.Amount)
	}

	var edges []DebtEdge
	n := len(order.refs)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			net := debts[a][b].Sub(debts[b][a])
			switch {
			case net.GreaterThan(cent):
				edges = append(edges, DebtEdge{From: order.refs[a], To: order.refs[b], Amount: RoundCents(net)})
			case net.Neg().GreaterThan(cent):
				edges = append(edges, DebtEdge{From: order.refs[b], To: order.refs[a], Amount: RoundCents(net.Neg())})
			}
		}
	}
	return edges
}

// DebtsInvolving returns the edges in which ref is the debtor or the creditor.
func DebtsInvolving(edges []DebtEdge, ref models.ParticipantRef) []DebtEdge {
	var out []DebtEdge
	for _, e := range edges {
		if e.From == ref || e.To == ref {
			out = append(out, e)
		}
	}
	return out
}
