package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitsquad/backend/internal/models"
)

func TestPlanSettlement(t *testing.T) {
	refA, refB, refC, refD := models.MemberRef("A"), models.MemberRef("B"), models.MemberRef("C"), models.MemberRef("D")

	tests := []struct {
		name     string
		balances []Balance
		want     []Transfer
		wantErr  bool
	}{
		{
			name:     "one debtor one creditor",
			balances: []Balance{NewBalance(ref1, dec("50")), NewBalance(ref2, dec("-50"))},
			want:     []Transfer{{From: ref2, To: ref1, Amount: dec("50")}},
		},
		{
			name: "stable order, no sorting by amount",
			balances: []Balance{
				NewBalance(refA, dec("10")),
				NewBalance(refB, dec("-30")),
				NewBalance(refC, dec("40")),
				NewBalance(refD, dec("-20")),
			},
			want: []Transfer{
				{From: refB, To: refA, Amount: dec("10")},
				{From: refB, To: refC, Amount: dec("20")},
				{From: refD, To: refC, Amount: dec("20")},
			},
		},
		{
			name:     "everyone settled",
			balances: []Balance{NewBalance(refA, decimal.Zero), NewBalance(refB, decimal.Zero)},
			want:     nil,
		},
		{
			name:     "dust is not emitted",
			balances: []Balance{NewBalance(refA, dec("0.005")), NewBalance(refB, dec("-0.005"))},
			want:     nil,
		},
		{
			name: "dust debtors absorb a dust creditor",
			balances: []Balance{
				NewBalance(refA, dec("0.027")),
				NewBalance(refB, dec("-0.009")),
				NewBalance(refC, dec("-0.009")),
				NewBalance(refD, dec("-0.009")),
			},
			want: nil,
		},
		{
			name:     "non-zero sum is an internal consistency error",
			balances: []Balance{NewBalance(refA, dec("50")), NewBalance(refB, dec("-20"))},
			wantErr:  true,
		},
		{
			name:     "only debtors",
			balances: []Balance{NewBalance(refA, dec("-5"))},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanSettlement(tt.balances)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInternalConsistency))
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].From, got[i].From, "transfer %d from", i)
				assert.Equal(t, tt.want[i].To, got[i].To, "transfer %d to", i)
				assert.True(t, tt.want[i].Amount.Equal(got[i].Amount), "transfer %d: got %s, want %s", i, got[i].Amount, tt.want[i].Amount)
			}
		})
	}
}

func TestPlanSettlement_SettlesComputedBalances(t *testing.T) {
	g := group(member("1", "A"), member("2", "B"), member("3", "C"))
	g.Pending = []models.PendingMember{{Email: "p@example.com"}}
	pending := models.PendingRef("p@example.com")

	expenses := []models.Expense{
		expense("100", ref1, models.SplitAll, ref1, ref2, ref3, pending),
		expense("33.33", ref2, models.SplitSubset, ref1, ref3),
		expense("10", pending, models.SplitSubset, ref1, ref2, ref3),
		expense("0.07", ref3, models.SplitSubset, ref1, ref2, ref3, pending),
	}
	sheet := ComputeBalances(g, expenses, nil)

	transfers, err := PlanSettlement(sheet.Balances)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(transfers), len(sheet.Balances)-1)

	remaining := sheet.Net()
	for _, tr := range transfers {
		assert.True(t, tr.Amount.GreaterThan(cent))
		remaining[tr.From] = remaining[tr.From].Add(tr.Amount)
		remaining[tr.To] = remaining[tr.To].Sub(tr.Amount)
	}
	for ref, bal := range remaining {
		assert.True(t, bal.Abs().LessThanOrEqual(cent), "%s left with %s", ref, bal)
	}
}

func TestPlanSettlement_Thirds(t *testing.T) {
	g := group(member("1", "A"), member("2", "B"), member("3", "C"))
	sheet := ComputeBalances(g, []models.Expense{expense("100", ref1, models.SplitAll, ref1, ref2, ref3)}, nil)

	// Rounded balances are 66.67 / -33.33 / -33.33; the planner must not
	// trip over the rounding cent.
	transfers, err := PlanSettlement(sheet.Balances)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	for _, tr := range transfers {
		assert.Equal(t, ref1, tr.To)
		assert.True(t, tr.Amount.Equal(dec("33.33")))
	}
}
