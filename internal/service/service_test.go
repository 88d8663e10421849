package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitsquad/backend/internal/auth"
	"github.com/splitsquad/backend/internal/events"
	"github.com/splitsquad/backend/internal/metrics"
	"github.com/splitsquad/backend/internal/middleware"
	"github.com/splitsquad/backend/internal/models"
	"github.com/splitsquad/backend/internal/storage/sqlite"
	"github.com/splitsquad/backend/pkg/api"
)

// clock is a settable time source shared with the services.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	server     *httptest.Server
	jwtManager *auth.JWTManager
	store      *sqlite.SQLiteStore
	events     *events.Memory
	metrics    *metrics.Metrics
	clock      *clock
}

// user is a signed-in caller with its own set of clients.
type user struct {
	id, email string
	ref       models.ParticipantRef

	users    *api.UserServiceClient
	groups   *api.GroupServiceClient
	expenses *api.ExpenseServiceClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		jwtManager: auth.NewJWTManager("test-secret", time.Hour),
		store:      store,
		events:     &events.Memory{},
		metrics:    metrics.New(),
		clock:      &clock{t: time.Now()},
	}
	cfg := Config{
		Store:     store,
		Publisher: h.events,
		Metrics:   h.metrics,
		InviteTTL: 24 * time.Hour,
		Now:       h.clock.Now,
	}

	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(h.metrics),
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(h.jwtManager),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewUserServiceHandler(NewUserService(cfg), interceptors))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(cfg), interceptors))
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(cfg), interceptors))

	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}
}

func (h *harness) signIn(t *testing.T, id, email, name string) *user {
	t.Helper()

	token, err := h.jwtManager.Generate(id, email, name)
	require.NoError(t, err)
	opt := connect.WithInterceptors(bearer(token))

	return &user{
		id:       id,
		email:    email,
		ref:      models.MemberRef(id),
		users:    api.NewUserServiceClient(h.server.Client(), h.server.URL, opt),
		groups:   api.NewGroupServiceClient(h.server.Client(), h.server.URL, opt),
		expenses: api.NewExpenseServiceClient(h.server.Client(), h.server.URL, opt),
	}
}

func (u *user) createGroup(t *testing.T, name string) api.Group {
	t.Helper()
	resp, err := u.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{Name: name}))
	require.NoError(t, err)
	return resp.Msg.Group
}

func (u *user) addExpense(t *testing.T, groupID string, in api.ExpenseInput) api.Expense {
	t.Helper()
	resp, err := u.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		GroupID:      groupID,
		ExpenseInput: in,
	}))
	require.NoError(t, err)
	return resp.Msg.Expense
}

func (u *user) balances(t *testing.T, groupID string) *api.GetGroupBalancesResponse {
	t.Helper()
	resp, err := u.groups.GetGroupBalances(context.Background(), connect.NewRequest(&api.GetGroupBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	return resp.Msg
}

func netOf(t *testing.T, resp *api.GetGroupBalancesResponse, ref models.ParticipantRef) string {
	t.Helper()
	for _, b := range resp.Balances {
		if b.Ref == ref {
			return b.Net.StringFixed(2)
		}
	}
	t.Fatalf("no balance for %s", ref)
	return ""
}

func refsOf(ps []api.Participant) []models.ParticipantRef {
	out := make([]models.ParticipantRef, len(ps))
	for i, p := range ps {
		out[i] = p.Ref
	}
	return out
}

func allExpense(description, amount string, payer models.ParticipantRef) api.ExpenseInput {
	return api.ExpenseInput{
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Payer:       payer,
		Policy:      models.SplitAll,
	}
}

func TestPendingInviteeIsPromotedWithHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	bob := h.signIn(t, "bob-id", "bob@example.com", "Bob")

	group := alice.createGroup(t, "Ski Trip")
	assert.Equal(t, "Ski Trip", group.Name)
	require.Len(t, group.Members, 1)
	assert.Equal(t, alice.ref, group.Members[0].Ref)

	bobPending := models.PendingRef("bob@example.com")
	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{
		GroupID: group.ID,
		Email:   "Bob@Example.com",
	}))
	require.NoError(t, err)

	expense := alice.addExpense(t, group.ID, allExpense("Cabin", "30", alice.ref))
	assert.ElementsMatch(t, []models.ParticipantRef{alice.ref, bobPending}, refsOf(expense.SplitWith))

	before := alice.balances(t, group.ID)
	assert.Equal(t, "15.00", netOf(t, before, alice.ref))
	assert.Equal(t, "-15.00", netOf(t, before, bobPending))

	synced, err := bob.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{DisplayName: "Bobby"}))
	require.NoError(t, err)
	assert.Equal(t, []string{group.ID}, synced.Msg.PromotedGroupIDs)
	assert.Equal(t, "Bobby", synced.Msg.Profile.DisplayName)

	list, err := bob.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Expenses, 1)
	split := list.Msg.Expenses[0].SplitWith
	assert.ElementsMatch(t, []models.ParticipantRef{alice.ref, bob.ref}, refsOf(split))
	for _, p := range split {
		assert.True(t, p.Known)
		assert.False(t, p.IsPending)
	}

	after := bob.balances(t, group.ID)
	assert.Equal(t, "15.00", netOf(t, after, alice.ref))
	assert.Equal(t, "-15.00", netOf(t, after, bob.ref))
	require.Len(t, after.Settlements, 1)
	assert.Equal(t, bob.ref, after.Settlements[0].From.Ref)
	assert.Equal(t, alice.ref, after.Settlements[0].To.Ref)
	assert.Equal(t, "15.00", after.Settlements[0].Amount.StringFixed(2))
	require.Len(t, after.MyDebts, 1)
	assert.Equal(t, alice.ref, after.MyDebts[0].To.Ref)

	// A second sync has nothing left to claim.
	again, err := bob.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{}))
	require.NoError(t, err)
	assert.Empty(t, again.Msg.PromotedGroupIDs)
	assert.Equal(t, "Bobby", again.Msg.Profile.DisplayName)

	var types []events.Type
	for _, e := range h.events.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.Type{
		events.MemberAdded,
		events.MemberInvited,
		events.ExpenseCreated,
		events.MemberPromoted,
	}, types)
}

func TestAllExpensesFollowTheRoster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	bob := h.signIn(t, "bob-id", "bob@example.com", "Bob")

	_, err := bob.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{}))
	require.NoError(t, err)

	group := alice.createGroup(t, "Roommates")
	alice.addExpense(t, group.ID, allExpense("Groceries", "100", alice.ref))

	added, err := alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: group.ID, UserID: bob.id}))
	require.NoError(t, err)
	assert.Len(t, added.Msg.Group.Members, 2)

	resp := alice.balances(t, group.ID)
	assert.Equal(t, "50.00", netOf(t, resp, alice.ref))
	assert.Equal(t, "-50.00", netOf(t, resp, bob.ref))

	// Adding an existing member changes nothing.
	again, err := alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: group.ID, UserID: bob.id}))
	require.NoError(t, err)
	assert.Equal(t, added.Msg.Group.Version, again.Msg.Group.Version)

	_, err = alice.groups.RemoveMember(ctx, connect.NewRequest(&api.RemoveMemberRequest{GroupID: group.ID, Ref: bob.ref}))
	require.NoError(t, err)

	resp = alice.balances(t, group.ID)
	assert.Equal(t, "0.00", netOf(t, resp, alice.ref))
	assert.Empty(t, resp.Settlements)
}

func TestSubsetExpenseKeepsRemovedParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")

	group := alice.createGroup(t, "Trip")
	carol := models.PendingRef("carol@example.com")
	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: "carol@example.com", Name: "Carol"}))
	require.NoError(t, err)

	alice.addExpense(t, group.ID, api.ExpenseInput{
		Description: "Taxi",
		Amount:      decimal.RequireFromString("90"),
		Payer:       alice.ref,
		Policy:      models.SplitSubset,
		SplitWith:   []models.ParticipantRef{carol},
	})

	_, err = alice.groups.RemoveMember(ctx, connect.NewRequest(&api.RemoveMemberRequest{GroupID: group.ID, Ref: carol}))
	require.NoError(t, err)

	resp := alice.balances(t, group.ID)
	assert.Equal(t, "90.00", netOf(t, resp, alice.ref))
	assert.Equal(t, "-90.00", netOf(t, resp, carol))
	for _, b := range resp.Balances {
		if b.Ref == carol {
			assert.False(t, b.Known)
			assert.Equal(t, "carol@example.com", b.Name)
		}
	}
}

func TestGroupErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	mallory := h.signIn(t, "mallory-id", "mallory@example.com", "Mallory")
	group := alice.createGroup(t, "Private")

	t.Run("empty name", func(t *testing.T) {
		_, err := alice.groups.CreateGroup(ctx, connect.NewRequest(&api.CreateGroupRequest{Name: "  "}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("non-member", func(t *testing.T) {
		_, err := mallory.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

		_, err = mallory.expenses.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{
			GroupID:      group.ID,
			ExpenseInput: allExpense("Sneaky", "10", mallory.ref),
		}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := alice.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: "missing"}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("duplicate invite", func(t *testing.T) {
		req := &api.InviteMemberRequest{GroupID: group.ID, Email: "dan@example.com"}
		_, err := alice.groups.InviteMember(ctx, connect.NewRequest(req))
		require.NoError(t, err)
		_, err = alice.groups.InviteMember(ctx, connect.NewRequest(req))
		assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: "nobody"}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("last member", func(t *testing.T) {
		_, err := alice.groups.RemoveMember(ctx, connect.NewRequest(&api.RemoveMemberRequest{GroupID: group.ID, Ref: alice.ref}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})

	t.Run("add member without profile", func(t *testing.T) {
		_, err := alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: group.ID, UserID: "ghost"}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		client := api.NewGroupServiceClient(h.server.Client(), h.server.URL)
		_, err := client.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})
}

func TestInviteLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	erin := h.signIn(t, "erin-id", "erin@example.com", "Erin")
	frank := h.signIn(t, "frank-id", "frank@example.com", "Frank")

	group := alice.createGroup(t, "Book Club")
	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: "erin@example.com"}))
	require.NoError(t, err)
	alice.addExpense(t, group.ID, allExpense("Books", "40", alice.ref))

	invite, err := alice.groups.CreateInvite(ctx, connect.NewRequest(&api.CreateInviteRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.NotEmpty(t, invite.Msg.Token)
	assert.Equal(t, h.clock.Now().Add(24*time.Hour).Unix(), invite.Msg.ExpiresAt)

	got, err := alice.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	require.NoError(t, err)
	assert.True(t, got.Msg.Group.InviteActive)

	t.Run("wrong token", func(t *testing.T) {
		_, err := erin.groups.JoinGroup(ctx, connect.NewRequest(&api.JoinGroupRequest{GroupID: group.ID, Token: "nope"}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("invited email is promoted", func(t *testing.T) {
		resp, err := erin.groups.JoinGroup(ctx, connect.NewRequest(&api.JoinGroupRequest{GroupID: group.ID, Token: invite.Msg.Token}))
		require.NoError(t, err)
		assert.Len(t, resp.Msg.Group.Members, 2)
		assert.Empty(t, resp.Msg.Group.Pending)

		balances := erin.balances(t, group.ID)
		assert.Equal(t, "-20.00", netOf(t, balances, erin.ref))
	})

	t.Run("joining twice is a no-op", func(t *testing.T) {
		_, err := erin.groups.JoinGroup(ctx, connect.NewRequest(&api.JoinGroupRequest{GroupID: group.ID, Token: invite.Msg.Token}))
		require.NoError(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		h.clock.Advance(25 * time.Hour)
		_, err := frank.groups.JoinGroup(ctx, connect.NewRequest(&api.JoinGroupRequest{GroupID: group.ID, Token: invite.Msg.Token}))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})
}

func TestExpenseLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	group := alice.createGroup(t, "Household")
	grace := models.PendingRef("grace@example.com")
	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: "grace@example.com"}))
	require.NoError(t, err)

	created := alice.addExpense(t, group.ID, allExpense("  Internet  ", "60", alice.ref))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Internet", created.Description)
	assert.Equal(t, alice.id, created.CreatedBy)
	assert.False(t, created.Date.IsZero())

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name string
			in   api.ExpenseInput
		}{
			{"zero amount", allExpense("Thing", "0", alice.ref)},
			{"negative amount", allExpense("Thing", "-5", alice.ref)},
			{"three decimals", allExpense("Thing", "1.005", alice.ref)},
			{"empty description", allExpense(" ", "5", alice.ref)},
			{"unknown payer", allExpense("Thing", "5", models.MemberRef("nobody"))},
			{"unknown participant", api.ExpenseInput{
				Description: "Thing",
				Amount:      decimal.RequireFromString("5"),
				Payer:       alice.ref,
				Policy:      models.SplitSubset,
				SplitWith:   []models.ParticipantRef{models.PendingRef("stranger@example.com")},
			}},
			{"empty subset", api.ExpenseInput{
				Description: "Thing",
				Amount:      decimal.RequireFromString("5"),
				Payer:       alice.ref,
				Policy:      models.SplitSubset,
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := alice.expenses.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{GroupID: group.ID, ExpenseInput: tc.in}))
				assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		resp, err := alice.expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
			ExpenseID: created.ID,
			ExpenseInput: api.ExpenseInput{
				Description: "Internet",
				Amount:      decimal.RequireFromString("45"),
				Payer:       grace,
				Policy:      models.SplitSubset,
				SplitWith:   []models.ParticipantRef{alice.ref, grace, alice.ref},
			},
		}))
		require.NoError(t, err)
		assert.Equal(t, created.ID, resp.Msg.Expense.ID)
		assert.Equal(t, created.CreatedAt, resp.Msg.Expense.CreatedAt)
		assert.Equal(t, []models.ParticipantRef{alice.ref, grace}, refsOf(resp.Msg.Expense.SplitWith))
		assert.True(t, resp.Msg.Expense.Payer.IsPending)

		balances := alice.balances(t, group.ID)
		assert.Equal(t, "-22.50", netOf(t, balances, alice.ref))
		assert.Equal(t, "22.50", netOf(t, balances, grace))
	})

	t.Run("update missing", func(t *testing.T) {
		_, err := alice.expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
			ExpenseID:    "missing",
			ExpenseInput: allExpense("x", "1", alice.ref),
		}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})

	t.Run("delete", func(t *testing.T) {
		_, err := alice.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: created.ID}))
		require.NoError(t, err)

		list, err := alice.expenses.ListExpenses(ctx, connect.NewRequest(&api.ListExpensesRequest{GroupID: group.ID}))
		require.NoError(t, err)
		assert.Empty(t, list.Msg.Expenses)

		_, err = alice.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: created.ID}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestRecordSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	bob := h.signIn(t, "bob-id", "bob@example.com", "Bob")
	_, err := bob.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{ETransferEmail: " Bob.Pay@Example.com "}))
	require.NoError(t, err)

	group := alice.createGroup(t, "Dinner")
	_, err = alice.groups.AddMember(ctx, connect.NewRequest(&api.AddMemberRequest{GroupID: group.ID, UserID: bob.id}))
	require.NoError(t, err)
	alice.addExpense(t, group.ID, allExpense("Pizza", "50", alice.ref))

	t.Run("rejects bad payments", func(t *testing.T) {
		cases := []struct {
			name string
			req  *api.RecordSettlementRequest
		}{
			{"zero", &api.RecordSettlementRequest{GroupID: group.ID, To: alice.ref, Amount: decimal.Zero}},
			{"fractional cents", &api.RecordSettlementRequest{GroupID: group.ID, To: alice.ref, Amount: decimal.RequireFromString("0.001")}},
			{"self", &api.RecordSettlementRequest{GroupID: group.ID, To: bob.ref, Amount: decimal.RequireFromString("5")}},
			{"stranger", &api.RecordSettlementRequest{GroupID: group.ID, To: models.MemberRef("x"), Amount: decimal.RequireFromString("5")}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := bob.groups.RecordSettlement(ctx, connect.NewRequest(tc.req))
				assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
			})
		}
	})

	resp, err := bob.groups.RecordSettlement(ctx, connect.NewRequest(&api.RecordSettlementRequest{
		GroupID: group.ID,
		To:      alice.ref,
		Amount:  decimal.RequireFromString("25"),
		Note:    "e-transfer",
	}))
	require.NoError(t, err)
	assert.Equal(t, bob.ref, resp.Msg.Settlement.From.Ref)
	assert.Equal(t, "e-transfer", resp.Msg.Settlement.Note)

	balances := alice.balances(t, group.ID)
	assert.Equal(t, "0.00", netOf(t, balances, alice.ref))
	assert.Equal(t, "0.00", netOf(t, balances, bob.ref))
	assert.Empty(t, balances.Settlements)
	assert.Empty(t, balances.Debts)

	list, err := alice.groups.ListSettlements(ctx, connect.NewRequest(&api.ListSettlementsRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Settlements, 1)
	assert.Equal(t, "25.00", list.Msg.Settlements[0].Amount.StringFixed(2))

	got, err := alice.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	require.NoError(t, err)
	for _, m := range got.Msg.Group.Members {
		if m.ID == bob.id {
			assert.Equal(t, "bob.pay@example.com", m.ETransferEmail)
		}
	}
}

func TestSettlementToInviteeSurvivesPromotion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	bob := h.signIn(t, "bob-id", "bob@example.com", "Bob")
	bobPending := models.PendingRef("bob@example.com")

	group := alice.createGroup(t, "Groceries")
	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: bob.email}))
	require.NoError(t, err)
	alice.addExpense(t, group.ID, allExpense("Market", "30", bobPending))

	paid, err := alice.groups.RecordSettlement(ctx, connect.NewRequest(&api.RecordSettlementRequest{
		GroupID: group.ID,
		To:      bobPending,
		Amount:  decimal.RequireFromString("15"),
	}))
	require.NoError(t, err)
	assert.True(t, paid.Msg.Settlement.To.IsPending)

	before := alice.balances(t, group.ID)
	assert.Equal(t, "0.00", netOf(t, before, alice.ref))
	assert.Equal(t, "0.00", netOf(t, before, bobPending))

	_, err = bob.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{}))
	require.NoError(t, err)

	after := bob.balances(t, group.ID)
	assert.Equal(t, "0.00", netOf(t, after, alice.ref))
	assert.Equal(t, "0.00", netOf(t, after, bob.ref))
	for _, b := range after.Balances {
		assert.NotEqual(t, bobPending, b.Ref)
	}
	assert.Empty(t, after.Settlements)
	assert.Empty(t, after.Debts)

	list, err := bob.groups.ListSettlements(ctx, connect.NewRequest(&api.ListSettlementsRequest{GroupID: group.ID}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Settlements, 1)
	assert.Equal(t, bob.ref, list.Msg.Settlements[0].To.Ref)
	assert.Equal(t, alice.ref, list.Msg.Settlements[0].From.Ref)
	assert.Equal(t, "15.00", list.Msg.Settlements[0].Amount.StringFixed(2))
}

func TestRenameGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	mallory := h.signIn(t, "mallory-id", "mallory@example.com", "Mallory")
	group := alice.createGroup(t, "Trip")

	resp, err := alice.groups.RenameGroup(ctx, connect.NewRequest(&api.RenameGroupRequest{GroupID: group.ID, Name: "  Road Trip "}))
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", resp.Msg.Group.Name)
	assert.Equal(t, group.Version+1, resp.Msg.Group.Version)

	// Same name again is not a write.
	same, err := alice.groups.RenameGroup(ctx, connect.NewRequest(&api.RenameGroupRequest{GroupID: group.ID, Name: "Road Trip"}))
	require.NoError(t, err)
	assert.Equal(t, resp.Msg.Group.Version, same.Msg.Group.Version)

	got, err := alice.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", got.Msg.Group.Name)

	_, err = alice.groups.RenameGroup(ctx, connect.NewRequest(&api.RenameGroupRequest{GroupID: group.ID, Name: " "}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = mallory.groups.RenameGroup(ctx, connect.NewRequest(&api.RenameGroupRequest{GroupID: group.ID, Name: "Mine"}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = alice.groups.RenameGroup(ctx, connect.NewRequest(&api.RenameGroupRequest{GroupID: "missing", Name: "X"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	renamed := 0
	for _, e := range h.events.Events() {
		if e.Type == events.GroupRenamed {
			renamed++
		}
	}
	assert.Equal(t, 1, renamed)
}

func TestDeleteGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.signIn(t, "alice-id", "alice@example.com", "Alice")
	mallory := h.signIn(t, "mallory-id", "mallory@example.com", "Mallory")
	group := alice.createGroup(t, "Short lived")

	_, err := alice.groups.InviteMember(ctx, connect.NewRequest(&api.InviteMemberRequest{GroupID: group.ID, Email: "dan@example.com"}))
	require.NoError(t, err)
	expense := alice.addExpense(t, group.ID, allExpense("Snacks", "12", alice.ref))
	_, err = alice.groups.RecordSettlement(ctx, connect.NewRequest(&api.RecordSettlementRequest{
		GroupID: group.ID,
		To:      models.PendingRef("dan@example.com"),
		Amount:  decimal.RequireFromString("1"),
	}))
	require.NoError(t, err)

	_, err = mallory.groups.DeleteGroup(ctx, connect.NewRequest(&api.DeleteGroupRequest{GroupID: group.ID}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = alice.groups.DeleteGroup(ctx, connect.NewRequest(&api.DeleteGroupRequest{GroupID: group.ID}))
	require.NoError(t, err)

	_, err = alice.groups.GetGroup(ctx, connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = alice.expenses.DeleteExpense(ctx, connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: expense.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	groups, err := alice.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
	require.NoError(t, err)
	assert.Empty(t, groups.Msg.Groups)

	settlements, err := h.store.ListSettlementsByGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, settlements)

	_, err = alice.groups.DeleteGroup(ctx, connect.NewRequest(&api.DeleteGroupRequest{GroupID: group.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	published := h.events.Events()
	require.NotEmpty(t, published)
	assert.Equal(t, events.GroupDeleted, published[len(published)-1].Type)
}

func TestGetProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hank := h.signIn(t, "hank-id", "hank@example.com", "")

	_, err := hank.users.GetProfile(ctx, connect.NewRequest(&api.GetProfileRequest{}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = hank.users.SyncProfile(ctx, connect.NewRequest(&api.SyncProfileRequest{ETransferPhone: " 555-0100 "}))
	require.NoError(t, err)

	resp, err := hank.users.GetProfile(ctx, connect.NewRequest(&api.GetProfileRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "hank", resp.Msg.Profile.DisplayName)
	assert.Equal(t, "hank@example.com", resp.Msg.Profile.Email)
	assert.Equal(t, "555-0100", resp.Msg.Profile.ETransferPhone)
}
