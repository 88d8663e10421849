package models

// Group is a set of people who share expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Members are the confirmed members in roster order.
	Members []Member

	// Pending are the invitees known only by email, in roster order.
	// A (group, email) pair is unique and never overlaps a confirmed member.
	Pending []PendingMember

	// InviteTokenHash is the bcrypt hash of the current self-service join token.
	// Empty when no invite link is active.
	InviteTokenHash string

	// InviteExpiresAt is the Unix timestamp after which the invite token is rejected.
	InviteExpiresAt int64

	// Version is bumped by every committed snapshot write and guards
	// against lost updates.
	Version int64

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Member is a confirmed participant of a group.
type Member struct {
	// ID is the user ID issued by the identity provider.
	ID string

	Name  string
	Email string

	// ETransferEmail and ETransferPhone are optional payment contacts.
	ETransferEmail string
	ETransferPhone string
}

// Ref returns the participant reference for m.
func (m Member) Ref() ParticipantRef { return MemberRef(m.ID) }

// PendingMember is an invitee identified by email until promoted.
type PendingMember struct {
	Email string

	// Name is optional; invitees are often known only by email.
	Name string
}

// Ref returns the participant reference for p.
func (p PendingMember) Ref() ParticipantRef { return PendingRef(p.Email) }

// HasMember reports whether id is a confirmed member of g.
func (g Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy of g that shares no slices with it.
func (g Group) Clone() Group {
	c := g
	c.Members = append([]Member(nil), g.Members...)
	c.Pending = append([]PendingMember(nil), g.Pending...)
	return c
}
