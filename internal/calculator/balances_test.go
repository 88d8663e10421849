package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitsquad/backend/internal/models"
)

func TestComputeBalances(t *testing.T) {
	alice, bob, carol := member("1", "Alice"), member("2", "Bob"), member("3", "Carol")

	tests := []struct {
		name        string
		group       models.Group
		expenses    []models.Expense
		settlements []models.Settlement
		want        map[models.ParticipantRef]string
	}{
		{
			name:     "two members split everything",
			group:    group(alice, bob),
			expenses: []models.Expense{expense("100", ref1, models.SplitAll, ref1, ref2)},
			want:     map[models.ParticipantRef]string{ref1: "50", ref2: "-50"},
		},
		{
			name:     "subset with three",
			group:    group(alice, bob, carol),
			expenses: []models.Expense{expense("90", ref1, models.SplitSubset, ref1, ref2, ref3)},
			want:     map[models.ParticipantRef]string{ref1: "60", ref2: "-30", ref3: "-30"},
		},
		{
			name:     "payer outside split-with is owed the full amount",
			group:    group(alice, bob, carol),
			expenses: []models.Expense{expense("40", ref1, models.SplitSubset, ref2, ref3)},
			want:     map[models.ParticipantRef]string{ref1: "40", ref2: "-20", ref3: "-20"},
		},
		{
			name:     "duplicate split-with entries count once",
			group:    group(alice, bob),
			expenses: []models.Expense{expense("100", ref1, models.SplitSubset, ref1, ref2, ref2)},
			want:     map[models.ParticipantRef]string{ref1: "50", ref2: "-50"},
		},
		{
			name:  "thirds round only at the end",
			group: group(alice, bob, carol),
			expenses: []models.Expense{
				expense("100", ref1, models.SplitAll, ref1, ref2, ref3),
				expense("100", ref1, models.SplitAll, ref1, ref2, ref3),
				expense("100", ref1, models.SplitAll, ref1, ref2, ref3),
			},
			want: map[models.ParticipantRef]string{ref1: "200", ref2: "-100", ref3: "-100"},
		},
		{
			name:     "member without expenses has zero",
			group:    group(alice, bob, carol),
			expenses: []models.Expense{expense("10", ref1, models.SplitSubset, ref1, ref2)},
			want:     map[models.ParticipantRef]string{ref1: "5", ref2: "-5", ref3: "0"},
		},
		{
			name:     "settlement moves balances",
			group:    group(alice, bob),
			expenses: []models.Expense{expense("100", ref1, models.SplitAll, ref1, ref2)},
			settlements: []models.Settlement{
				{From: ref2, To: ref1, Amount: dec("20")},
			},
			want: map[models.ParticipantRef]string{ref1: "30", ref2: "-30"},
		},
		{
			name:     "empty split-with carries no cost",
			group:    group(alice),
			expenses: []models.Expense{expense("10", ref1, models.SplitAll)},
			want:     map[models.ParticipantRef]string{ref1: "0"},
		},
		{
			name:  "empty roster yields nothing",
			group: models.Group{ID: "g1"},
			want:  map[models.ParticipantRef]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := ComputeBalances(tt.group, tt.expenses, tt.settlements)
			got := sheet.Net()
			require.Len(t, got, len(tt.want))
			for ref, want := range tt.want {
				bal, ok := got[ref]
				require.True(t, ok, "missing balance for %s", ref)
				assert.True(t, bal.Equal(dec(want)), "%s: got %s, want %s", ref, bal, want)
			}
		})
	}
}

func TestComputeBalances_Order(t *testing.T) {
	g := group(member("1", "Alice"), member("2", "Bob"))
	g.Pending = []models.PendingMember{{Email: "dan@example.com"}}
	gone := models.MemberRef("removed")

	sheet := ComputeBalances(g, []models.Expense{
		expense("30", gone, models.SplitSubset, gone, ref2),
	}, nil)

	var refs []models.ParticipantRef
	for _, b := range sheet.Balances {
		refs = append(refs, b.Ref)
	}
	assert.Equal(t, []models.ParticipantRef{ref1, ref2, models.PendingRef("dan@example.com"), gone}, refs)

	b, ok := sheet.Get(gone)
	require.True(t, ok)
	assert.True(t, b.Net.Equal(dec("15")))
	assert.True(t, b.TotalPaid.Equal(dec("30")))
	assert.True(t, b.TotalOwed.Equal(dec("15")))
}

func TestComputeBalances_ZeroSum(t *testing.T) {
	refs := []models.ParticipantRef{ref1, ref2, ref3, models.PendingRef("p@example.com")}
	g := group(member("1", "A"), member("2", "B"), member("3", "C"))
	g.Pending = []models.PendingMember{{Email: "p@example.com"}}

	amounts := []string{"10.01", "33.33", "0.01", "99.99", "7", "1234.56", "0.05", "12.34"}
	var expenses []models.Expense
	for i, amount := range amounts {
		payer := refs[i%len(refs)]
		split := refs[:1+i%len(refs)]
		if i%2 == 0 {
			split = refs[i%len(refs):]
		}
		expenses = append(expenses, expense(amount, payer, models.SplitSubset, split...))
	}

	sheet := ComputeBalances(g, expenses, nil)

	exact := decimal.Zero
	for _, b := range sheet.Balances {
		exact = exact.Add(b.Exact)
	}
	assert.True(t, exact.Abs().LessThan(dec("0.000001")), "exact sum = %s", exact)

	tolerance := cent.Mul(decimal.NewFromInt(int64(len(expenses))))
	assert.True(t, sheet.Sum().Abs().LessThanOrEqual(tolerance), "rounded sum = %s", sheet.Sum())
}

func TestEqualShare(t *testing.T) {
	assert.True(t, EqualShare(dec("90"), 3).Equal(dec("30")))
	assert.True(t, EqualShare(dec("10"), 0).IsZero())

	// Shares are not rounded
	share := EqualShare(dec("100"), 3)
	assert.False(t, share.Equal(RoundCents(share)))
}

func TestRoundCents(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1.005", "1.01"},
		{"-1.005", "-1.01"},
		{"1.004", "1"},
		{"33.3333333", "33.33"},
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"-0.004", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, RoundCents(dec(tt.in)).Equal(dec(tt.want)), "got %s", RoundCents(dec(tt.in)))
		})
	}
}

func TestRoundCentsIsSymmetric(t *testing.T) {
	for _, in := range []string{"0.005", "2.675", "10.125", "33.335", "0.015"} {
		pos := RoundCents(dec(in))
		neg := RoundCents(dec(in).Neg())
		assert.True(t, pos.Neg().Equal(neg), "%s: %s vs %s", in, pos, neg)
	}
}
