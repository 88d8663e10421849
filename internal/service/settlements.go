package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/pkg/api"
)

// RecordSettlement records a payment from the caller to another participant.
// Payments move balances toward zero; they never change the roster.
func (s *GroupService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("RecordSettlement request received",
		"group_id", groupID,
		"to", req.Msg.To.String(),
		"amount", req.Msg.Amount.String(),
	)

	amount := req.Msg.Amount
	switch {
	case !amount.IsPositive():
		return nil, fail("RecordSettlement", invalidArgument("amount", "must be greater than zero"))
	case !amount.Equal(amount.Truncate(2)):
		return nil, fail("RecordSettlement", invalidArgument("amount", "must have at most two decimal places"))
	case req.Msg.To.IsZero():
		return nil, fail("RecordSettlement", invalidArgument("to", "is required"))
	case req.Msg.To == who.ref():
		return nil, fail("RecordSettlement", invalidArgument("to", "cannot pay yourself"))
	}

	payment := models.Settlement{
		GroupID:   groupID,
		From:      who.ref(),
		To:        req.Msg.To,
		Amount:    amount,
		CreatedBy: who.userID,
		CreatedAt: s.now().Unix(),
		Note:      strings.TrimSpace(req.Msg.Note),
	}

	// Settlements share the group version with the roster.
	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		if !roster.Contains(cur.Group, payment.To) {
			return cur, invalidArgument("to", payment.To.String()+" is not in the group")
		}
		next := cur.Clone()
		next.Settlements = append(next.Settlements, payment)
		return next, nil
	})
	if err != nil {
		return nil, fail("RecordSettlement", err, "group_id", groupID)
	}

	// SaveSnapshot assigned the new settlement its ID.
	recorded := snap.Settlements[len(snap.Settlements)-1]

	slog.Info("RecordSettlement successful", "group_id", groupID, "settlement_id", recorded.ID)
	s.publish(ctx, events.SettlementRecorded, groupID, recorded.ID, who.userID)

	return connect.NewResponse(&api.RecordSettlementResponse{Settlement: toSettlement(&recorded, snap.Group)}), nil
}

// ListSettlements returns the recorded payments of a group, newest first.
func (s *GroupService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("ListSettlements request received", "group_id", groupID)

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fail("ListSettlements", err, "group_id", groupID)
	}
	if err := requireMember(*group, who.userID); err != nil {
		return nil, fail("ListSettlements", err, "group_id", groupID)
	}

	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, fail("ListSettlements", err, "group_id", groupID)
	}

	out := make([]api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toSettlement(st, *group)
	}

	slog.Info("ListSettlements successful", "group_id", groupID, "count", len(out))

	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}
