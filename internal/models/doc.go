// Package models defines the core domain models for SplitSquad.
//
// # Models
//
//   - Group: a named set of confirmed members and pending (email-only) invitees
//   - Member: a confirmed participant with a stable user ID
//   - PendingMember: an invitee known only by email until promoted
//   - Expense: a shared cost paid by one participant and split with others
//   - Settlement: a recorded payment between two participants
//   - User: the profile behind a confirmed member
//
// # Participant references
//
// Expenses mix confirmed members and pending invitees in their payer and
// split-with fields. A ParticipantRef carries the variant explicitly
// (member ID or pending email) and encodes as text as "member:<id>" or
// "pending:<email>", which is also the form persisted by the stores.
//
// # Money
//
// All amounts are decimal.Decimal. Rounding to cents only happens when a
// result is presented, never on intermediate shares.
//
// # Snapshots
//
// Models are plain values. Roster and expense changes produce new values
// instead of mutating shared state; the storage layer persists a whole
// group snapshot atomically.
package models
