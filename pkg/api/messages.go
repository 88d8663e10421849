package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitsquad/backend/internal/models"
)

// Participant is a participant reference resolved for display.
type Participant struct {
	Ref       models.ParticipantRef `json:"ref"`
	Name      string                `json:"name"`
	IsPending bool                  `json:"isPending"`
	// Known is false when the reference no longer resolves against the roster.
	Known bool `json:"known"`
}

type Profile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	ETransferEmail string `json:"etransferEmail,omitempty"`
	ETransferPhone string `json:"etransferPhone,omitempty"`
}

type Member struct {
	Ref            models.ParticipantRef `json:"ref"`
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Email          string                `json:"email"`
	ETransferEmail string                `json:"etransferEmail,omitempty"`
	ETransferPhone string                `json:"etransferPhone,omitempty"`
}

type PendingMember struct {
	Ref   models.ParticipantRef `json:"ref"`
	Email string                `json:"email"`
	Name  string                `json:"name,omitempty"`
}

type Group struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Members         []Member        `json:"members"`
	Pending         []PendingMember `json:"pending"`
	InviteActive    bool            `json:"inviteActive"`
	InviteExpiresAt int64           `json:"inviteExpiresAt,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       int64           `json:"createdAt"`
}

type Expense struct {
	ID          string             `json:"id"`
	GroupID     string             `json:"groupId"`
	Description string             `json:"description"`
	Amount      decimal.Decimal    `json:"amount"`
	Payer       Participant        `json:"payer"`
	Date        time.Time          `json:"date"`
	Policy      models.SplitPolicy `json:"policy"`
	SplitWith   []Participant      `json:"splitWith"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	CreatedBy   string             `json:"createdBy,omitempty"`
	CreatedAt   int64              `json:"createdAt"`
}

type Balance struct {
	Participant
	// Net is positive when the participant is owed money.
	Net       decimal.Decimal `json:"net"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
	TotalOwed decimal.Decimal `json:"totalOwed"`
}

// Transfer is a payment from From to To, used both for the settlement plan
// and for pairwise debts.
type Transfer struct {
	From   Participant     `json:"from"`
	To     Participant     `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type Settlement struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"groupId"`
	From      Participant     `json:"from"`
	To        Participant     `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt int64           `json:"createdAt"`
}

// UserService

type SyncProfileRequest struct {
	DisplayName    string `json:"displayName"`
	ETransferEmail string `json:"etransferEmail,omitempty"`
	ETransferPhone string `json:"etransferPhone,omitempty"`
}

type SyncProfileResponse struct {
	Profile Profile `json:"profile"`
	// PromotedGroupIDs lists the groups where a pending invitation was claimed.
	PromotedGroupIDs []string `json:"promotedGroupIds,omitempty"`
}

type GetProfileRequest struct{}

type GetProfileResponse struct {
	Profile Profile `json:"profile"`
}

// GroupService

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group Group `json:"group"`
}

type RenameGroupRequest struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type RenameGroupResponse struct {
	Group Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteGroupResponse struct{}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type AddMemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type AddMemberResponse struct {
	Group Group `json:"group"`
}

type InviteMemberRequest struct {
	GroupID string `json:"groupId"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}

type InviteMemberResponse struct {
	Group Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID string                `json:"groupId"`
	Ref     models.ParticipantRef `json:"ref"`
}

type RemoveMemberResponse struct {
	Group Group `json:"group"`
}

type CreateInviteRequest struct {
	GroupID string `json:"groupId"`
}

type CreateInviteResponse struct {
	// Token is shown once; only its hash is stored.
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type JoinGroupRequest struct {
	GroupID string `json:"groupId"`
	Token   string `json:"token"`
}

type JoinGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalancesResponse struct {
	Balances []Balance `json:"balances"`
	// Settlements is the minimal transfer plan clearing every balance.
	Settlements []Transfer `json:"settlements"`
	// Debts is the pairwise who-owes-whom view of the whole group.
	Debts []Transfer `json:"debts"`
	// MyDebts is the subset of Debts involving the caller.
	MyDebts []Transfer `json:"myDebts"`
}

type RecordSettlementRequest struct {
	GroupID string                `json:"groupId"`
	To      models.ParticipantRef `json:"to"`
	Amount  decimal.Decimal       `json:"amount"`
	Note    string                `json:"note,omitempty"`
}

type RecordSettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// ExpenseService

// ExpenseInput carries the caller-supplied fields of an expense.
type ExpenseInput struct {
	Description string                  `json:"description"`
	Amount      decimal.Decimal         `json:"amount"`
	Payer       models.ParticipantRef   `json:"payer"`
	Date        time.Time               `json:"date"`
	Policy      models.SplitPolicy      `json:"policy"`
	SplitWith   []models.ParticipantRef `json:"splitWith,omitempty"`
	ImageURL    string                  `json:"imageUrl,omitempty"`
}

type CreateExpenseRequest struct {
	GroupID string `json:"groupId"`
	ExpenseInput
}

type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
	ExpenseInput
}

type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}
