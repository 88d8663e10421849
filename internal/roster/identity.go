package roster

import (
	"github.com/splitsquad/backend/internal/models"
)

// Display is how a participant reference is shown to people.
type Display struct {
	Ref  models.ParticipantRef
	Name string

	// IsPending is set for invitees that have not joined yet.
	IsPending bool

	// Known is false when the reference matches nobody in the roster, e.g. a
	// member removed after the expense was recorded. Name then holds the raw
	// reference value.
	Known bool
}

// ResolveDisplay looks ref up among confirmed members first and pending
// invitees second. Unresolvable references never fail; they come back with
// Known unset so callers can render them verbatim.
func ResolveDisplay(ref models.ParticipantRef, g models.Group) Display {
	if ref.IsMember() {
		for _, m := range g.Members {
			if m.ID != ref.Value {
				continue
			}
			name := m.Name
			if name == "" {
				name = m.Email
			}
			return Display{Ref: ref, Name: name, Known: true}
		}
	}
	if ref.IsPending() {
		if i := pendingIndex(g, ref.Value); i >= 0 {
			p := g.Pending[i]
			name := p.Name
			if name == "" {
				name = p.Email
			}
			return Display{Ref: ref, Name: name, IsPending: true, Known: true}
		}
	}
	return Display{Ref: ref, Name: ref.Value}
}

// Promote turns the pending invitee email into the confirmed member m.
//
// The pending entry is dropped, m is added if absent, and every reference to
// the email in payer, split-with or settlement fields is rewritten to m's
// ID. The result depends only on the inputs, so retrying a promotion is
// harmless.
func Promote(s Snapshot, email string, m models.Member) Snapshot {
	email = models.NormalizeEmail(email)
	from := models.PendingRef(email)
	to := m.Ref()

	next := s.Clone()
	if i := pendingIndex(next.Group, email); i >= 0 {
		if m.Name == "" {
			m.Name = next.Group.Pending[i].Name
		}
		next.Group.Pending = withoutPending(next.Group.Pending, email)
	}
	if !next.Group.HasMember(m.ID) {
		if m.Email == "" {
			m.Email = email
		}
		m.Email = models.NormalizeEmail(m.Email)
		next.Group.Members = append(next.Group.Members, m)
	}

	for i := range next.Expenses {
		e := &next.Expenses[i]
		if e.Payer == from {
			e.Payer = to
		}
		rewritten := false
		for j, ref := range e.SplitWith {
			if ref == from {
				e.SplitWith[j] = to
				rewritten = true
			}
		}
		if rewritten {
			e.SplitWith = models.DedupeRefs(e.SplitWith)
		}
	}
	for i := range next.Settlements {
		st := &next.Settlements[i]
		if st.From == from {
			st.From = to
		}
		if st.To == from {
			st.To = to
		}
	}
	return next
}
