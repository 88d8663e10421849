package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	UserServiceName    = "splitsquad.v1.UserService"
	GroupServiceName   = "splitsquad.v1.GroupService"
	ExpenseServiceName = "splitsquad.v1.ExpenseService"
)

// Fully-qualified procedure names, as they appear in request paths.
const (
	UserServiceSyncProfileProcedure = "/splitsquad.v1.UserService/SyncProfile"
	UserServiceGetProfileProcedure  = "/splitsquad.v1.UserService/GetProfile"

	GroupServiceCreateGroupProcedure      = "/splitsquad.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure         = "/splitsquad.v1.GroupService/GetGroup"
	GroupServiceListGroupsProcedure       = "/splitsquad.v1.GroupService/ListGroups"
	GroupServiceRenameGroupProcedure      = "/splitsquad.v1.GroupService/RenameGroup"
	GroupServiceDeleteGroupProcedure      = "/splitsquad.v1.GroupService/DeleteGroup"
	GroupServiceAddMemberProcedure        = "/splitsquad.v1.GroupService/AddMember"
	GroupServiceInviteMemberProcedure     = "/splitsquad.v1.GroupService/InviteMember"
	GroupServiceRemoveMemberProcedure     = "/splitsquad.v1.GroupService/RemoveMember"
	GroupServiceCreateInviteProcedure     = "/splitsquad.v1.GroupService/CreateInvite"
	GroupServiceJoinGroupProcedure        = "/splitsquad.v1.GroupService/JoinGroup"
	GroupServiceGetGroupBalancesProcedure = "/splitsquad.v1.GroupService/GetGroupBalances"
	GroupServiceRecordSettlementProcedure = "/splitsquad.v1.GroupService/RecordSettlement"
	GroupServiceListSettlementsProcedure  = "/splitsquad.v1.GroupService/ListSettlements"

	ExpenseServiceCreateExpenseProcedure = "/splitsquad.v1.ExpenseService/CreateExpense"
	ExpenseServiceUpdateExpenseProcedure = "/splitsquad.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure = "/splitsquad.v1.ExpenseService/DeleteExpense"
	ExpenseServiceListExpensesProcedure  = "/splitsquad.v1.ExpenseService/ListExpenses"
)

type UserServiceHandler interface {
	SyncProfile(context.Context, *connect.Request[SyncProfileRequest]) (*connect.Response[SyncProfileResponse], error)
	GetProfile(context.Context, *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error)
}

type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error)
	RenameGroup(context.Context, *connect.Request[RenameGroupRequest]) (*connect.Response[RenameGroupResponse], error)
	DeleteGroup(context.Context, *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error)
	AddMember(context.Context, *connect.Request[AddMemberRequest]) (*connect.Response[AddMemberResponse], error)
	InviteMember(context.Context, *connect.Request[InviteMemberRequest]) (*connect.Response[InviteMemberResponse], error)
	RemoveMember(context.Context, *connect.Request[RemoveMemberRequest]) (*connect.Response[RemoveMemberResponse], error)
	CreateInvite(context.Context, *connect.Request[CreateInviteRequest]) (*connect.Response[CreateInviteResponse], error)
	JoinGroup(context.Context, *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
	RecordSettlement(context.Context, *connect.Request[RecordSettlementRequest]) (*connect.Response[RecordSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error)
}

type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
}

// routes maps procedure paths to handlers under one service prefix.
type routes map[string]http.Handler

func (r routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if h, ok := r[req.URL.Path]; ok {
		h.ServeHTTP(w, req)
		return
	}
	http.NotFound(w, req)
}

func unary[Req, Res any](
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	return connect.NewUnaryHandler(procedure, fn, opts...)
}

// NewUserServiceHandler builds an HTTP handler for svc. It returns the path
// prefix to mount it on.
func NewUserServiceHandler(svc UserServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + UserServiceName + "/", routes{
		UserServiceSyncProfileProcedure: unary(UserServiceSyncProfileProcedure, svc.SyncProfile, opts),
		UserServiceGetProfileProcedure:  unary(UserServiceGetProfileProcedure, svc.GetProfile, opts),
	}
}

// NewGroupServiceHandler builds an HTTP handler for svc. It returns the path
// prefix to mount it on.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + GroupServiceName + "/", routes{
		GroupServiceCreateGroupProcedure:      unary(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts),
		GroupServiceGetGroupProcedure:         unary(GroupServiceGetGroupProcedure, svc.GetGroup, opts),
		GroupServiceListGroupsProcedure:       unary(GroupServiceListGroupsProcedure, svc.ListGroups, opts),
		GroupServiceRenameGroupProcedure:      unary(GroupServiceRenameGroupProcedure, svc.RenameGroup, opts),
		GroupServiceDeleteGroupProcedure:      unary(GroupServiceDeleteGroupProcedure, svc.DeleteGroup, opts),
		GroupServiceAddMemberProcedure:        unary(GroupServiceAddMemberProcedure, svc.AddMember, opts),
		GroupServiceInviteMemberProcedure:     unary(GroupServiceInviteMemberProcedure, svc.InviteMember, opts),
		GroupServiceRemoveMemberProcedure:     unary(GroupServiceRemoveMemberProcedure, svc.RemoveMember, opts),
		GroupServiceCreateInviteProcedure:     unary(GroupServiceCreateInviteProcedure, svc.CreateInvite, opts),
		GroupServiceJoinGroupProcedure:        unary(GroupServiceJoinGroupProcedure, svc.JoinGroup, opts),
		GroupServiceGetGroupBalancesProcedure: unary(GroupServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts),
		GroupServiceRecordSettlementProcedure: unary(GroupServiceRecordSettlementProcedure, svc.RecordSettlement, opts),
		GroupServiceListSettlementsProcedure:  unary(GroupServiceListSettlementsProcedure, svc.ListSettlements, opts),
	}
}

// NewExpenseServiceHandler builds an HTTP handler for svc. It returns the path
// prefix to mount it on.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return "/" + ExpenseServiceName + "/", routes{
		ExpenseServiceCreateExpenseProcedure: unary(ExpenseServiceCreateExpenseProcedure, svc.CreateExpense, opts),
		ExpenseServiceUpdateExpenseProcedure: unary(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts),
		ExpenseServiceDeleteExpenseProcedure: unary(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts),
		ExpenseServiceListExpensesProcedure:  unary(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts),
	}
}

func newClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts []connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return connect.NewClient[Req, Res](httpClient, strings.TrimRight(baseURL, "/")+procedure, opts...)
}

// UserServiceClient calls the UserService over Connect with JSON.
type UserServiceClient struct {
	syncProfile *connect.Client[SyncProfileRequest, SyncProfileResponse]
	getProfile  *connect.Client[GetProfileRequest, GetProfileResponse]
}

func NewUserServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *UserServiceClient {
	return &UserServiceClient{
		syncProfile: newClient[SyncProfileRequest, SyncProfileResponse](httpClient, baseURL, UserServiceSyncProfileProcedure, opts),
		getProfile:  newClient[GetProfileRequest, GetProfileResponse](httpClient, baseURL, UserServiceGetProfileProcedure, opts),
	}
}

func (c *UserServiceClient) SyncProfile(ctx context.Context, req *connect.Request[SyncProfileRequest]) (*connect.Response[SyncProfileResponse], error) {
	return c.syncProfile.CallUnary(ctx, req)
}

func (c *UserServiceClient) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error) {
	return c.getProfile.CallUnary(ctx, req)
}

// GroupServiceClient calls the GroupService over Connect with JSON.
type GroupServiceClient struct {
	createGroup      *connect.Client[CreateGroupRequest, CreateGroupResponse]
	getGroup         *connect.Client[GetGroupRequest, GetGroupResponse]
	listGroups       *connect.Client[ListGroupsRequest, ListGroupsResponse]
	renameGroup      *connect.Client[RenameGroupRequest, RenameGroupResponse]
	deleteGroup      *connect.Client[DeleteGroupRequest, DeleteGroupResponse]
	addMember        *connect.Client[AddMemberRequest, AddMemberResponse]
	inviteMember     *connect.Client[InviteMemberRequest, InviteMemberResponse]
	removeMember     *connect.Client[RemoveMemberRequest, RemoveMemberResponse]
	createInvite     *connect.Client[CreateInviteRequest, CreateInviteResponse]
	joinGroup        *connect.Client[JoinGroupRequest, JoinGroupResponse]
	getGroupBalances *connect.Client[GetGroupBalancesRequest, GetGroupBalancesResponse]
	recordSettlement *connect.Client[RecordSettlementRequest, RecordSettlementResponse]
	listSettlements  *connect.Client[ListSettlementsRequest, ListSettlementsResponse]
}

func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	return &GroupServiceClient{
		createGroup:      newClient[CreateGroupRequest, CreateGroupResponse](httpClient, baseURL, GroupServiceCreateGroupProcedure, opts),
		getGroup:         newClient[GetGroupRequest, GetGroupResponse](httpClient, baseURL, GroupServiceGetGroupProcedure, opts),
		listGroups:       newClient[ListGroupsRequest, ListGroupsResponse](httpClient, baseURL, GroupServiceListGroupsProcedure, opts),
		renameGroup:      newClient[RenameGroupRequest, RenameGroupResponse](httpClient, baseURL, GroupServiceRenameGroupProcedure, opts),
		deleteGroup:      newClient[DeleteGroupRequest, DeleteGroupResponse](httpClient, baseURL, GroupServiceDeleteGroupProcedure, opts),
		addMember:        newClient[AddMemberRequest, AddMemberResponse](httpClient, baseURL, GroupServiceAddMemberProcedure, opts),
		inviteMember:     newClient[InviteMemberRequest, InviteMemberResponse](httpClient, baseURL, GroupServiceInviteMemberProcedure, opts),
		removeMember:     newClient[RemoveMemberRequest, RemoveMemberResponse](httpClient, baseURL, GroupServiceRemoveMemberProcedure, opts),
		createInvite:     newClient[CreateInviteRequest, CreateInviteResponse](httpClient, baseURL, GroupServiceCreateInviteProcedure, opts),
		joinGroup:        newClient[JoinGroupRequest, JoinGroupResponse](httpClient, baseURL, GroupServiceJoinGroupProcedure, opts),
		getGroupBalances: newClient[GetGroupBalancesRequest, GetGroupBalancesResponse](httpClient, baseURL, GroupServiceGetGroupBalancesProcedure, opts),
		recordSettlement: newClient[RecordSettlementRequest, RecordSettlementResponse](httpClient, baseURL, GroupServiceRecordSettlementProcedure, opts),
		listSettlements:  newClient[ListSettlementsRequest, ListSettlementsResponse](httpClient, baseURL, GroupServiceListSettlementsProcedure, opts),
	}
}

func (c *GroupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListGroups(ctx context.Context, req *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RenameGroup(ctx context.Context, req *connect.Request[RenameGroupRequest]) (*connect.Response[RenameGroupResponse], error) {
	return c.renameGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error) {
	return c.deleteGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) AddMember(ctx context.Context, req *connect.Request[AddMemberRequest]) (*connect.Response[AddMemberResponse], error) {
	return c.addMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) InviteMember(ctx context.Context, req *connect.Request[InviteMemberRequest]) (*connect.Response[InviteMemberResponse], error) {
	return c.inviteMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[RemoveMemberResponse], error) {
	return c.removeMember.CallUnary(ctx, req)
}

func (c *GroupServiceClient) CreateInvite(ctx context.Context, req *connect.Request[CreateInviteRequest]) (*connect.Response[CreateInviteResponse], error) {
	return c.createInvite.CallUnary(ctx, req)
}

func (c *GroupServiceClient) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RecordSettlement(ctx context.Context, req *connect.Request[RecordSettlementRequest]) (*connect.Response[RecordSettlementResponse], error) {
	return c.recordSettlement.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

// ExpenseServiceClient calls the ExpenseService over Connect with JSON.
type ExpenseServiceClient struct {
	createExpense *connect.Client[CreateExpenseRequest, CreateExpenseResponse]
	updateExpense *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses  *connect.Client[ListExpensesRequest, ListExpensesResponse]
}

func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	return &ExpenseServiceClient{
		createExpense: newClient[CreateExpenseRequest, CreateExpenseResponse](httpClient, baseURL, ExpenseServiceCreateExpenseProcedure, opts),
		updateExpense: newClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL, ExpenseServiceUpdateExpenseProcedure, opts),
		deleteExpense: newClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL, ExpenseServiceDeleteExpenseProcedure, opts),
		listExpenses:  newClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL, ExpenseServiceListExpensesProcedure, opts),
	}
}

func (c *ExpenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}
