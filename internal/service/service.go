// Package service implements the SplitSquad Connect services.
//
// Every write that touches a group's roster, expenses or settlements
// follows one pipeline: load the snapshot, derive the next snapshot with the
// pure functions in roster and validation, and write it back atomically. A
// write that loses a race against another one is retried from a fresh
// snapshot.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/metrics"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/roster"
	"github.com/splitsquad/backend/internal/storage"
)

const (
	maxConflictRetries = 4
	conflictBackoff    = 10 * time.Millisecond
	publishTimeout     = 5 * time.Second
	defaultInviteTTL   = 7 * 24 * time.Hour
)

// Config carries the dependencies shared by all services.
type Config struct {
	Store storage.Store

	// Publisher receives group events; nil discards them.
	Publisher events.Publisher

	// Metrics receives conflict and consistency counters; nil creates a
	// private set.
	Metrics *metrics.Metrics

	// InviteTTL is how long an invite link stays valid.
	InviteTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// core is the machinery behind the services.
type core struct {
	store     storage.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	inviteTTL time.Duration
	now       func() time.Time
}

func newCore(cfg Config) *core {
	c := &core{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		inviteTTL: cfg.InviteTTL,
		now:       cfg.Now,
	}
	if c.publisher == nil {
		c.publisher = events.Nop{}
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	if c.inviteTTL <= 0 {
		c.inviteTTL = defaultInviteTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

var (
	errNotMember  = errors.New("caller is not a member of the group")
	errLastMember = errors.New("cannot remove the last confirmed member")

	// errUnchanged tells mutate that the snapshot needs no write.
	errUnchanged = errors.New("snapshot unchanged")
)

// load reads a group together with all of its expenses and settlements.
func (c *core) load(ctx context.Context, groupID string) (roster.Snapshot, error) {
	group, err := c.store.GetGroup(ctx, groupID)
	if err != nil {
		return roster.Snapshot{}, err
	}
	expenses, err := c.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return roster.Snapshot{}, err
	}
	stored, err := c.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return roster.Snapshot{}, err
	}
	var settlements []models.Settlement
	for _, st := range stored {
		settlements = append(settlements, *st)
	}
	return roster.Snapshot{Group: *group, Expenses: expenses, Settlements: settlements}, nil
}

// loadAsMember loads a snapshot and checks that userID may see it.
func (c *core) loadAsMember(ctx context.Context, groupID, userID string) (roster.Snapshot, error) {
	s, err := c.load(ctx, groupID)
	if err != nil {
		return roster.Snapshot{}, err
	}
	if err := requireMember(s.Group, userID); err != nil {
		return roster.Snapshot{}, err
	}
	return s, nil
}

func requireMember(g models.Group, userID string) error {
	if userID == "" || !g.HasMember(userID) {
		return fmt.Errorf("group %s: %w", g.ID, errNotMember)
	}
	return nil
}

// mutate runs the load, derive, write pipeline for groupID. fn must be a
// pure function of its input since it runs again after a conflict. When fn
// returns errUnchanged the loaded snapshot is returned without writing.
func (c *core) mutate(ctx context.Context, groupID string, fn func(roster.Snapshot) (roster.Snapshot, error)) (roster.Snapshot, error) {
	var result roster.Snapshot
	backoff := retry.WithMaxRetries(maxConflictRetries, retry.NewExponential(conflictBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, err := c.load(ctx, groupID)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if errors.Is(err, errUnchanged) {
			result = current
			return nil
		}
		if err != nil {
			return err
		}

		if err := c.store.SaveSnapshot(ctx, &next.Group, next.Expenses, next.Settlements); err != nil {
			if errors.Is(err, storage.ErrConcurrencyConflict) {
				c.metrics.RosterConflicts.Inc()
				slog.Warn("Snapshot write conflict, retrying", "group_id", groupID, "version", next.Group.Version)
				return retry.RetryableError(err)
			}
			return err
		}
		result = next
		return nil
	})
	return result, err
}

// ensureUser returns the caller's profile, creating it from the token
// claims on first use.
func (c *core) ensureUser(ctx context.Context, who identity) (*models.User, error) {
	user, err := c.store.GetUserByID(ctx, who.userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	user = models.NewUser(who.userID, who.email, who.displayName())
	if err := c.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// publish emits an event for a committed write. Failures are logged and
// counted but never reach the caller.
func (c *core) publish(ctx context.Context, typ events.Type, groupID, ref, actor string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.GroupEvent{Type: typ, GroupID: groupID, Ref: ref, Actor: actor, At: c.now().UTC()}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.metrics.EventsDropped.Inc()
		slog.Warn("Failed to publish group event", "type", typ, "group_id", groupID, "error", err)
	}
}
