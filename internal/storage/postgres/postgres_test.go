package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage"
)

// newTestStore connects to TEST_DATABASE_URI; the tests are skipped without it.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI not set")
	}
	store, err := New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore_Snapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := models.NewUser("pg-"+uuid.NewString(), uuid.NewString()+"@example.com", "Alice")
	require.NoError(t, store.UpsertUser(ctx, alice))

	pending := uuid.NewString() + "@example.com"
	group := &models.Group{
		Name:    "Trip",
		Members: []models.Member{alice.AsMember()},
		Pending: []models.PendingMember{{Email: pending}},
	}
	require.NoError(t, store.CreateGroup(ctx, group))

	expenses := []models.Expense{{
		Description: "Cabin",
		Amount:      decimal.RequireFromString("300.00"),
		Payer:       alice.AsMember().Ref(),
		Date:        time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Policy:      models.SplitAll,
		SplitWith:   []models.ParticipantRef{alice.AsMember().Ref(), models.PendingRef(pending)},
	}}
	require.NoError(t, store.SaveSnapshot(ctx, group, expenses, nil))
	assert.Equal(t, int64(2), group.Version)

	got, err := store.ListExpensesByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, expenses[0].SplitWith, got[0].SplitWith)

	ids, err := store.ListGroupIDsByPendingEmail(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, []string{group.ID}, ids)

	stale := *group
	stale.Version = 1
	err = store.SaveSnapshot(ctx, &stale, nil, nil)
	assert.ErrorIs(t, err, storage.ErrConcurrencyConflict)

	require.NoError(t, store.SaveSnapshot(ctx, group, nil, nil))
	_, err = store.GetExpense(ctx, expenses[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresStore_Settlements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("pg-"+uuid.NewString(), uuid.NewString()+"@example.com", "Bob")
	require.NoError(t, store.UpsertUser(ctx, user))
	group := &models.Group{Name: "G", Members: []models.Member{user.AsMember()}}
	require.NoError(t, store.CreateGroup(ctx, group))

	settlements := []models.Settlement{{
		From:      models.PendingRef("someone@example.com"),
		To:        user.AsMember().Ref(),
		Amount:    decimal.RequireFromString("9.99"),
		CreatedBy: user.ID,
	}}
	require.NoError(t, store.SaveSnapshot(ctx, group, nil, settlements))
	require.NotEmpty(t, settlements[0].ID)

	list, err := store.ListSettlementsByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, settlements[0].From, list[0].From)
	assert.True(t, settlements[0].Amount.Equal(list[0].Amount))
	assert.Empty(t, list[0].Note)

	// A second write only rewrites references.
	settlements[0].From = models.MemberRef(user.ID)
	settlements[0].Amount = decimal.RequireFromString("1.00")
	require.NoError(t, store.SaveSnapshot(ctx, group, nil, settlements))

	list, err = store.ListSettlementsByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MemberRef(user.ID), list[0].From)
	assert.True(t, decimal.RequireFromString("9.99").Equal(list[0].Amount))
}

func TestPostgresStore_DeleteGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("pg-"+uuid.NewString(), uuid.NewString()+"@example.com", "Carol")
	require.NoError(t, store.UpsertUser(ctx, user))
	group := &models.Group{Name: "Gone", Members: []models.Member{user.AsMember()}}
	require.NoError(t, store.CreateGroup(ctx, group))

	expenses := []models.Expense{{
		Description: "Lunch",
		Amount:      decimal.RequireFromString("12.00"),
		Payer:       user.AsMember().Ref(),
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Policy:      models.SplitAll,
		SplitWith:   []models.ParticipantRef{user.AsMember().Ref()},
	}}
	require.NoError(t, store.SaveSnapshot(ctx, group, expenses, nil))

	require.NoError(t, store.DeleteGroup(ctx, group.ID))

	_, err := store.GetGroup(ctx, group.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetExpense(ctx, expenses[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteGroup(ctx, group.ID), storage.ErrNotFound)
}
