// Package roster maintains group membership and keeps "split with everyone"
// expenses in step with it.
//
// Every operation takes a Snapshot and returns a new one; nothing is mutated
// in place. Callers persist the returned snapshot atomically.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/splitsquad/backend/internal/models"
)

var (
	// ErrDuplicateMember is returned when an invitee's email already belongs
	// to a confirmed or pending member of the group.
	ErrDuplicateMember = errors.New("member already in group")

	// ErrUnknownParticipant is returned when a write names a reference that
	// resolves to nobody in the roster.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrInvalidEmail is returned for an invitee email that cannot identify anyone.
	ErrInvalidEmail = errors.New("invalid email")
)

// Snapshot is a group together with all of its expenses and recorded
// payments.
type Snapshot struct {
	Group       models.Group
	Expenses    []models.Expense
	Settlements []models.Settlement
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Group:       s.Group.Clone(),
		Expenses:    models.CloneExpenses(s.Expenses),
		Settlements: append([]models.Settlement(nil), s.Settlements...),
	}
}

// Everyone returns the split-with set of an "all" expense for g: every
// confirmed member ID followed by every pending email, in roster order.
func Everyone(g models.Group) []models.ParticipantRef {
	refs := make([]models.ParticipantRef, 0, len(g.Members)+len(g.Pending))
	for _, m := range g.Members {
		refs = append(refs, m.Ref())
	}
	for _, p := range g.Pending {
		refs = append(refs, p.Ref())
	}
	return models.DedupeRefs(refs)
}

// Contains reports whether ref resolves to a current participant of g.
func Contains(g models.Group, ref models.ParticipantRef) bool {
	switch ref.Kind {
	case models.RefMember:
		return g.HasMember(ref.Value)
	case models.RefPending:
		return pendingIndex(g, ref.Value) >= 0
	default:
		return false
	}
}

// AddConfirmedMember adds m to the roster unless a member with the same ID
// is already present, then resyncs "all" expenses.
func AddConfirmedMember(s Snapshot, m models.Member) Snapshot {
	next := s.Clone()
	if !next.Group.HasMember(m.ID) {
		m.Email = models.NormalizeEmail(m.Email)
		next.Group.Members = append(next.Group.Members, m)
	}
	next.Expenses = ResyncAllPolicyExpenses(next.Group, next.Expenses)
	return next
}

// AddPendingMember invites email to the group, then resyncs "all" expenses.
// It fails with ErrDuplicateMember when the email is already pending or
// belongs to a confirmed member.
func AddPendingMember(s Snapshot, email, name string) (Snapshot, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if pendingIndex(s.Group, email) >= 0 {
		return Snapshot{}, fmt.Errorf("%w: %s is already invited", ErrDuplicateMember, email)
	}
	for _, m := range s.Group.Members {
		if models.NormalizeEmail(m.Email) == email {
			return Snapshot{}, fmt.Errorf("%w: %s is already a member", ErrDuplicateMember, email)
		}
	}

	next := s.Clone()
	next.Group.Pending = append(next.Group.Pending, models.PendingMember{
		Email: email,
		Name:  strings.TrimSpace(name),
	})
	next.Expenses = ResyncAllPolicyExpenses(next.Group, next.Expenses)
	return next, nil
}

// RemoveMember removes ref from whichever roster set holds it, then resyncs
// "all" expenses. Removing someone who is not in the roster only resyncs.
//
// Subset expenses keep their recorded split-with and payer, so a removed
// participant stays in the economics of those expenses.
func RemoveMember(s Snapshot, ref models.ParticipantRef) Snapshot {
	next := s.Clone()
	switch ref.Kind {
	case models.RefMember:
		var members []models.Member
		for _, m := range next.Group.Members {
			if m.ID != ref.Value {
				members = append(members, m)
			}
		}
		next.Group.Members = members
	case models.RefPending:
		next.Group.Pending = withoutPending(next.Group.Pending, ref.Value)
	}
	next.Expenses = ResyncAllPolicyExpenses(next.Group, next.Expenses)
	return next
}

// ResyncAllPolicyExpenses returns a copy of expenses in which every "all"
// expense's split-with is replaced by Everyone(g). Subset expenses are
// copied unchanged.
func ResyncAllPolicyExpenses(g models.Group, expenses []models.Expense) []models.Expense {
	everyone := Everyone(g)
	out := models.CloneExpenses(expenses)
	for i := range out {
		if out[i].Policy != models.SplitAll {
			continue
		}
		out[i].SplitWith = append([]models.ParticipantRef(nil), everyone...)
	}
	return out
}

// withoutPending returns pending minus email; nil when nothing is left.
func withoutPending(pending []models.PendingMember, email string) []models.PendingMember {
	email = models.NormalizeEmail(email)
	var out []models.PendingMember
	for _, p := range pending {
		if models.NormalizeEmail(p.Email) != email {
			out = append(out, p)
		}
	}
	return out
}

func pendingIndex(g models.Group, email string) int {
	email = models.NormalizeEmail(email)
	for i, p := range g.Pending {
		if models.NormalizeEmail(p.Email) == email {
			return i
		}
	}
	return -1
}
