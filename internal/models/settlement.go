package models

import "github.com/shopspring/decimal"

// Settlement represents a recorded payment between group participants to clear debts.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// From is who paid (debtor settling up).
	From ParticipantRef

	// To is who received payment (creditor being paid).
	To ParticipantRef

	// Amount is the payment amount.
	Amount decimal.Decimal

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// CreatedBy is the user ID who recorded this settlement.
	CreatedBy string

	// Note is an optional description for the settlement.
	Note string
}
