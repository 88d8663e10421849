package models

import (
	"fmt"
	"strings"
)

// RefKind identifies which variant a ParticipantRef holds.
type RefKind uint8

const (
	// RefMember references a confirmed member by user ID.
	RefMember RefKind = iota + 1
	// RefPending references a pending member by email.
	RefPending
)

const (
	memberPrefix  = "member:"
	pendingPrefix = "pending:"
)

// ParticipantRef is a reference to someone who can owe or be owed money.
// The zero value is the empty reference and resolves to nobody.
type ParticipantRef struct {
	Kind  RefKind
	Value string
}

// MemberRef returns a reference to the confirmed member with the given user ID.
func MemberRef(id string) ParticipantRef {
	return ParticipantRef{Kind: RefMember, Value: id}
}

// PendingRef returns a reference to the pending member with the given email.
// The email is normalized.
func PendingRef(email string) ParticipantRef {
	return ParticipantRef{Kind: RefPending, Value: NormalizeEmail(email)}
}

// IsZero reports whether r is the empty reference.
func (r ParticipantRef) IsZero() bool {
	return r.Kind == 0 && r.Value == ""
}

// IsMember reports whether r references a confirmed member.
func (r ParticipantRef) IsMember() bool { return r.Kind == RefMember }

// IsPending reports whether r references a pending member.
func (r ParticipantRef) IsPending() bool { return r.Kind == RefPending }

// String returns the text form of r.
func (r ParticipantRef) String() string {
	switch r.Kind {
	case RefMember:
		return memberPrefix + r.Value
	case RefPending:
		return pendingPrefix + r.Value
	default:
		return r.Value
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r ParticipantRef) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return []byte{}, nil
	}
	if r.Kind != RefMember && r.Kind != RefPending {
		return nil, fmt.Errorf("invalid participant reference kind %d", r.Kind)
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ParticipantRef) UnmarshalText(text []byte) error {
	ref, err := ParseRef(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ParseRef parses the text form produced by ParticipantRef.String.
// An empty string yields the zero reference.
func ParseRef(s string) (ParticipantRef, error) {
	switch {
	case s == "":
		return ParticipantRef{}, nil
	case strings.HasPrefix(s, memberPrefix):
		id := strings.TrimPrefix(s, memberPrefix)
		if id == "" {
			return ParticipantRef{}, fmt.Errorf("empty member id in reference %q", s)
		}
		return MemberRef(id), nil
	case strings.HasPrefix(s, pendingPrefix):
		email := strings.TrimPrefix(s, pendingPrefix)
		if strings.TrimSpace(email) == "" {
			return ParticipantRef{}, fmt.Errorf("empty email in reference %q", s)
		}
		return PendingRef(email), nil
	default:
		return ParticipantRef{}, fmt.Errorf("unknown participant reference %q", s)
	}
}

// NormalizeEmail trims and lower-cases an email for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DedupeRefs returns refs without duplicates, keeping first occurrences in order.
func DedupeRefs(refs []ParticipantRef) []ParticipantRef {
	seen := make(map[ParticipantRef]bool, len(refs))
	out := make([]ParticipantRef, 0, len(refs))
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
