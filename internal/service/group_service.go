package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/splitsquad/backend/internal/auth"
	"github.com/splitsquad/backend/internal/calculator"
	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/pkg/api"
)

var _ api.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService: rosters, invites,
// balances and recorded payments.
type GroupService struct {
	*core
}

// NewGroupService creates a GroupService.
func NewGroupService(cfg Config) *GroupService {
	return &GroupService{core: newCore(cfg)}
}

func (s *GroupService) groupResponse(g models.Group) api.Group {
	return toGroup(g, s.now().Unix())
}

// CreateGroup creates a group with the caller as its only member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	slog.Info("CreateGroup request received", "name", name, "user_id", who.userID)

	if name == "" {
		return nil, fail("CreateGroup", invalidArgument("name", "must not be empty"))
	}

	user, err := s.ensureUser(ctx, who)
	if err != nil {
		return nil, fail("CreateGroup", err)
	}

	group := &models.Group{
		Name:    name,
		Members: []models.Member{user.AsMember()},
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fail("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)
	s.publish(ctx, events.MemberAdded, group.ID, who.ref().String(), who.userID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: s.groupResponse(*group)}), nil
}

// GetGroup returns a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetGroup request received", "group_id", groupID)

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fail("GetGroup", err, "group_id", groupID)
	}
	if err := requireMember(*group, who.userID); err != nil {
		return nil, fail("GetGroup", err, "group_id", groupID)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.GetGroupResponse{Group: s.groupResponse(*group)}), nil
}

// ListGroups returns every group the caller is a confirmed member of.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received", "user_id", who.userID)

	groups, err := s.store.ListGroupsByMember(ctx, who.userID)
	if err != nil {
		return nil, fail("ListGroups", err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = s.groupResponse(*g)
	}

	slog.Info("ListGroups successful", "count", len(groups))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// RenameGroup changes the name of a group the caller belongs to.
func (s *GroupService) RenameGroup(ctx context.Context, req *connect.Request[api.RenameGroupRequest]) (*connect.Response[api.RenameGroupResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	name := strings.TrimSpace(req.Msg.Name)
	slog.Info("RenameGroup request received", "group_id", groupID, "name", name)

	if name == "" {
		return nil, fail("RenameGroup", invalidArgument("name", "must not be empty"))
	}

	renamed := false
	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		renamed = false
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		if cur.Group.Name == name {
			return cur, errUnchanged
		}
		renamed = true
		next := cur.Clone()
		next.Group.Name = name
		return next, nil
	})
	if err != nil {
		return nil, fail("RenameGroup", err, "group_id", groupID)
	}

	slog.Info("RenameGroup successful", "group_id", groupID, "version", snap.Group.Version)
	if renamed {
		s.publish(ctx, events.GroupRenamed, groupID, name, who.userID)
	}

	return connect.NewResponse(&api.RenameGroupResponse{Group: s.groupResponse(snap.Group)}), nil
}

// DeleteGroup removes a group the caller belongs to, along with its
// expenses and recorded payments.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("DeleteGroup request received", "group_id", groupID, "user_id", who.userID)

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fail("DeleteGroup", err, "group_id", groupID)
	}
	if err := requireMember(*group, who.userID); err != nil {
		return nil, fail("DeleteGroup", err, "group_id", groupID)
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return nil, fail("DeleteGroup", err, "group_id", groupID)
	}

	slog.Info("DeleteGroup successful", "group_id", groupID)
	s.publish(ctx, events.GroupDeleted, groupID, "", who.userID)

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// AddMember adds a registered user to the group. A user whose email is
// pending in the group is promoted instead, so their history follows them.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("AddMember request received", "group_id", groupID, "user_id", req.Msg.UserID)

	user, err := s.store.GetUserByID(ctx, req.Msg.UserID)
	if err != nil {
		return nil, fail("AddMember", err, "group_id", groupID)
	}
	member := user.AsMember()
	var added events.Type

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		added = ""
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		if cur.Group.HasMember(member.ID) {
			return cur, errUnchanged
		}
		if roster.Contains(cur.Group, models.PendingRef(member.Email)) {
			added = events.MemberPromoted
			return roster.Promote(cur, member.Email, member), nil
		}
		added = events.MemberAdded
		return roster.AddConfirmedMember(cur, member), nil
	})
	if err != nil {
		return nil, fail("AddMember", err, "group_id", groupID)
	}

	slog.Info("AddMember successful", "group_id", groupID, "member_id", member.ID, "event", added)
	if added != "" {
		s.publish(ctx, added, groupID, member.Ref().String(), who.userID)
	}

	return connect.NewResponse(&api.AddMemberResponse{Group: s.groupResponse(snap.Group)}), nil
}

// InviteMember adds a pending member known only by email.
func (s *GroupService) InviteMember(ctx context.Context, req *connect.Request[api.InviteMemberRequest]) (*connect.Response[api.InviteMemberResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	email := models.NormalizeEmail(req.Msg.Email)
	slog.Info("InviteMember request received", "group_id", groupID, "email", email)

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		return roster.AddPendingMember(cur, email, req.Msg.Name)
	})
	if err != nil {
		return nil, fail("InviteMember", err, "group_id", groupID, "email", email)
	}

	slog.Info("InviteMember successful", "group_id", groupID, "email", email)
	s.publish(ctx, events.MemberInvited, groupID, models.PendingRef(email).String(), who.userID)

	return connect.NewResponse(&api.InviteMemberResponse{Group: s.groupResponse(snap.Group)}), nil
}

// RemoveMember removes a confirmed or pending member. Expenses that split
// with everyone stop including them; subset expenses keep them.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	ref := req.Msg.Ref
	slog.Info("RemoveMember request received", "group_id", groupID, "ref", ref.String())

	if ref.IsZero() {
		return nil, fail("RemoveMember", invalidArgument("ref", "is required"), "group_id", groupID)
	}

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		if ref.IsMember() && cur.Group.HasMember(ref.Value) && len(cur.Group.Members) == 1 {
			return cur, errLastMember
		}
		return roster.RemoveMember(cur, ref), nil
	})
	if err != nil {
		return nil, fail("RemoveMember", err, "group_id", groupID, "ref", ref.String())
	}

	slog.Info("RemoveMember successful", "group_id", groupID, "ref", ref.String())
	s.publish(ctx, events.MemberRemoved, groupID, ref.String(), who.userID)

	return connect.NewResponse(&api.RemoveMemberResponse{Group: s.groupResponse(snap.Group)}), nil
}

// CreateInvite issues a new invite link token, replacing any previous one.
func (s *GroupService) CreateInvite(ctx context.Context, req *connect.Request[api.CreateInviteRequest]) (*connect.Response[api.CreateInviteResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("CreateInvite request received", "group_id", groupID)

	token, hash, err := auth.NewInviteToken()
	if err != nil {
		return nil, fail("CreateInvite", err, "group_id", groupID)
	}
	expiresAt := s.now().Add(s.inviteTTL).Unix()

	_, err = s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		if err := requireMember(cur.Group, who.userID); err != nil {
			return cur, err
		}
		next := cur.Clone()
		next.Group.InviteTokenHash = hash
		next.Group.InviteExpiresAt = expiresAt
		return next, nil
	})
	if err != nil {
		return nil, fail("CreateInvite", err, "group_id", groupID)
	}

	slog.Info("CreateInvite successful", "group_id", groupID, "expires_at", expiresAt)

	return connect.NewResponse(&api.CreateInviteResponse{Token: token, ExpiresAt: expiresAt}), nil
}

// JoinGroup lets the caller join with an invite token. A caller whose email
// was invited is promoted so expenses recorded for the invite carry over.
func (s *GroupService) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.JoinGroupResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("JoinGroup request received", "group_id", groupID, "user_id", who.userID)

	user, err := s.ensureUser(ctx, who)
	if err != nil {
		return nil, fail("JoinGroup", err, "group_id", groupID)
	}
	member := user.AsMember()
	now := s.now()
	var joined events.Type

	snap, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
		joined = ""
		if cur.Group.HasMember(member.ID) {
			return cur, errUnchanged
		}
		if err := auth.CheckInviteToken(cur.Group.InviteTokenHash, cur.Group.InviteExpiresAt, req.Msg.Token, now); err != nil {
			return cur, err
		}
		if roster.Contains(cur.Group, models.PendingRef(who.email)) {
			joined = events.MemberPromoted
			return roster.Promote(cur, who.email, member), nil
		}
		joined = events.MemberAdded
		return roster.AddConfirmedMember(cur, member), nil
	})
	if err != nil {
		return nil, fail("JoinGroup", err, "group_id", groupID)
	}

	slog.Info("JoinGroup successful", "group_id", groupID, "user_id", who.userID, "event", joined)
	if joined != "" {
		s.publish(ctx, joined, groupID, member.Ref().String(), who.userID)
	}

	return connect.NewResponse(&api.JoinGroupResponse{Group: s.groupResponse(snap.Group)}), nil
}

// GetGroupBalances computes balances, a settlement plan and pairwise debts
// across every expense and recorded payment of the group.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, fail("GetGroupBalances", invalidArgument("group_id", "is required"))
	}

	snap, err := s.loadAsMember(ctx, groupID, who.userID)
	if err != nil {
		return nil, fail("GetGroupBalances", err, "group_id", groupID)
	}

	sheet := calculator.ComputeBalances(snap.Group, snap.Expenses, snap.Settlements)
	plan, err := calculator.PlanSettlement(sheet.Balances)
	if err != nil {
		if errors.Is(err, calculator.ErrInternalConsistency) {
			s.metrics.ConsistencyErrors.Inc()
			slog.Error("Settlement consistency check failed",
				"group_id", groupID,
				"balance_sum", sheet.Sum().String(),
				"error", err,
			)
		}
		return nil, fail("GetGroupBalances", err, "group_id", groupID)
	}
	debts := calculator.ComputePairwiseDebts(snap.Group, snap.Expenses, snap.Settlements)
	mine := calculator.DebtsInvolving(debts, who.ref())

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"expenses_count", len(snap.Expenses),
		"participants_count", len(sheet.Balances),
		"transfers_count", len(plan),
		"debts_count", len(debts),
	)

	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Balances:    toBalances(sheet, snap.Group),
		Settlements: toPlan(plan, snap.Group),
		Debts:       toDebts(debts, snap.Group),
		MyDebts:     toDebts(mine, snap.Group),
	}), nil
}
