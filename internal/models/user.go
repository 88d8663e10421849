package models

import "time"

// User is the profile of someone who signed in through the identity provider.
// The ID and Email come from the provider's token; the rest is self-managed.
type User struct {
	// ID is the provider's subject identifier.
	ID string

	// Email is the user's email address (normalized, unique).
	Email string

	// DisplayName is how the user appears in groups.
	DisplayName string

	// ETransferEmail and ETransferPhone are optional payment contacts shown
	// to people who owe this user money.
	ETransferEmail string
	ETransferPhone string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user profile stamped with the current time.
func NewUser(id, email, displayName string) *User {
	now := time.Now().Unix()
	return &User{
		ID:          id,
		Email:       NormalizeEmail(email),
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AsMember returns the confirmed-member view of u.
func (u *User) AsMember() Member {
	return Member{
		ID:             u.ID,
		Name:           u.DisplayName,
		Email:          u.Email,
		ETransferEmail: u.ETransferEmail,
		ETransferPhone: u.ETransferPhone,
	}
}
