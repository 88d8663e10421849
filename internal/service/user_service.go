package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/internal/storage"
	"github.com/splitsquad/backend/pkg/api"
)

var _ api.UserServiceHandler = (*UserService)(nil)

// UserService implements the Connect UserService.
type UserService struct {
	*core
}

// NewUserService creates a UserService.
func NewUserService(cfg Config) *UserService {
	return &UserService{core: newCore(cfg)}
}

// SyncProfile stores the caller's profile and claims every pending
// invitation addressed to the caller's email.
func (s *UserService) SyncProfile(ctx context.Context, req *connect.Request[api.SyncProfileRequest]) (*connect.Response[api.SyncProfileResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SyncProfile request received", "user_id", who.userID)

	user, err := s.store.GetUserByID(ctx, who.userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user = models.NewUser(who.userID, who.email, who.displayName())
	case err != nil:
		return nil, fail("SyncProfile", err)
	}

	// The token is authoritative for the email.
	user.Email = who.email
	if name := strings.TrimSpace(req.Msg.DisplayName); name != "" {
		user.DisplayName = name
	} else if user.DisplayName == "" {
		user.DisplayName = who.displayName()
	}
	user.ETransferEmail = models.NormalizeEmail(req.Msg.ETransferEmail)
	user.ETransferPhone = strings.TrimSpace(req.Msg.ETransferPhone)
	user.UpdatedAt = s.now().Unix()

	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, fail("SyncProfile", err)
	}

	promoted, err := s.promoteEverywhere(ctx, user)
	if err != nil {
		return nil, fail("SyncProfile", err, "promoted_count", len(promoted))
	}

	slog.Info("SyncProfile successful", "user_id", user.ID, "promoted_count", len(promoted))

	return connect.NewResponse(&api.SyncProfileResponse{
		Profile:          toProfile(user),
		PromotedGroupIDs: promoted,
	}), nil
}

// promoteEverywhere promotes user in each group where its email is pending.
// Each group is written on its own; groups promoted before a failure stay
// promoted.
func (s *UserService) promoteEverywhere(ctx context.Context, user *models.User) ([]string, error) {
	groupIDs, err := s.store.ListGroupIDsByPendingEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	member := user.AsMember()
	ref := models.PendingRef(user.Email)
	var promoted []string

	for _, groupID := range groupIDs {
		changed := false
		_, err := s.mutate(ctx, groupID, func(cur roster.Snapshot) (roster.Snapshot, error) {
			changed = false
			if !roster.Contains(cur.Group, ref) {
				return cur, errUnchanged
			}
			changed = true
			return roster.Promote(cur, user.Email, member), nil
		})
		if err != nil {
			return promoted, err
		}
		if !changed {
			continue
		}

		slog.Info("Pending member promoted", "group_id", groupID, "user_id", user.ID)
		s.publish(ctx, events.MemberPromoted, groupID, member.Ref().String(), user.ID)
		promoted = append(promoted, groupID)
	}
	return promoted, nil
}

// GetProfile returns the caller's stored profile.
func (s *UserService) GetProfile(ctx context.Context, req *connect.Request[api.GetProfileRequest]) (*connect.Response[api.GetProfileResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetProfile request received", "user_id", who.userID)

	user, err := s.store.GetUserByID(ctx, who.userID)
	if err != nil {
		return nil, fail("GetProfile", err, "user_id", who.userID)
	}

	return connect.NewResponse(&api.GetProfileResponse{Profile: toProfile(user)}), nil
}
