package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func member(id, name string) models.Member {
	return models.Member{ID: id, Name: name, Email: name + "@example.com"}
}

func group(members ...models.Member) models.Group {
	return models.Group{ID: "g1", Name: "Test", Members: members}
}

func expense(amount string, payer models.ParticipantRef, policy models.SplitPolicy, splitWith ...models.ParticipantRef) models.Expense {
	return models.Expense{
		GroupID:     "g1",
		Description: "test",
		Amount:      dec(amount),
		Payer:       payer,
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Policy:      policy,
		SplitWith:   splitWith,
	}
}

var (
	ref1 = models.MemberRef("1")
	ref2 = models.MemberRef("2")
	ref3 = models.MemberRef("3")
)
