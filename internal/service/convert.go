package service

import (
	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/calculator"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/pkg/api"
)

func toParticipant(ref models.ParticipantRef, g models.Group) api.Participant {
	d := roster.ResolveDisplay(ref, g)
	return api.Participant{Ref: d.Ref, Name: d.Name, IsPending: d.IsPending, Known: d.Known}
}

func toGroup(g models.Group, now int64) api.Group {
	out := api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Members:   make([]api.Member, len(g.Members)),
		Pending:   make([]api.PendingMember, len(g.Pending)),
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
	}
	for i, m := range g.Members {
		out.Members[i] = api.Member{
			Ref:            m.Ref(),
			ID:             m.ID,
			Name:           m.Name,
			Email:          m.Email,
			ETransferEmail: m.ETransferEmail,
			ETransferPhone: m.ETransferPhone,
		}
	}
	for i, p := range g.Pending {
		out.Pending[i] = api.PendingMember{Ref: p.Ref(), Email: p.Email, Name: p.Name}
	}
	if g.InviteTokenHash != "" && (g.InviteExpiresAt == 0 || g.InviteExpiresAt > now) {
		out.InviteActive = true
		out.InviteExpiresAt = g.InviteExpiresAt
	}
	return out
}

func toExpense(e models.Expense, g models.Group) api.Expense {
	out := api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount,
		Payer:       toParticipant(e.Payer, g),
		Date:        e.Date,
		Policy:      e.Policy,
		SplitWith:   make([]api.Participant, len(e.SplitWith)),
		ImageURL:    e.ImageURL,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
	for i, ref := range e.SplitWith {
		out.SplitWith[i] = toParticipant(ref, g)
	}
	return out
}

func toSettlement(s *models.Settlement, g models.Group) api.Settlement {
	return api.Settlement{
		ID:        s.ID,
		GroupID:   s.GroupID,
		From:      toParticipant(s.From, g),
		To:        toParticipant(s.To, g),
		Amount:    s.Amount,
		Note:      s.Note,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt,
	}
}

func toBalances(sheet calculator.BalanceSheet, g models.Group) []api.Balance {
	out := make([]api.Balance, len(sheet.Balances))
	for i, b := range sheet.Balances {
		out[i] = api.Balance{
			Participant: toParticipant(b.Ref, g),
			Net:         b.Net,
			TotalPaid:   b.TotalPaid,
			TotalOwed:   b.TotalOwed,
		}
	}
	return out
}

func toTransfer(from, to models.ParticipantRef, amount decimal.Decimal, g models.Group) api.Transfer {
	return api.Transfer{From: toParticipant(from, g), To: toParticipant(to, g), Amount: amount}
}

func toPlan(transfers []calculator.Transfer, g models.Group) []api.Transfer {
	out := make([]api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = toTransfer(t.From, t.To, t.Amount, g)
	}
	return out
}

func toDebts(edges []calculator.DebtEdge, g models.Group) []api.Transfer {
	out := make([]api.Transfer, len(edges))
	for i, e := range edges {
		out[i] = toTransfer(e.From, e.To, e.Amount, g)
	}
	return out
}

func toProfile(u *models.User) api.Profile {
	return api.Profile{
		ID:             u.ID,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		ETransferEmail: u.ETransferEmail,
		ETransferPhone: u.ETransferPhone,
	}
}
