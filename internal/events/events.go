// Package events publishes group change notifications.
package events

import (
	"context"
	"sync"
	"time"
)

// Type names a kind of group change.
type Type string

const (
	GroupRenamed       Type = "group.renamed"
	GroupDeleted       Type = "group.deleted"
	MemberAdded        Type = "member.added"
	MemberInvited      Type = "member.invited"
	MemberRemoved      Type = "member.removed"
	MemberPromoted     Type = "member.promoted"
	ExpenseCreated     Type = "expense.created"
	ExpenseUpdated     Type = "expense.updated"
	ExpenseDeleted     Type = "expense.deleted"
	SettlementRecorded Type = "settlement.recorded"
)

// GroupEvent is emitted after a committed write to a group.
type GroupEvent struct {
	Type    Type   `json:"type"`
	GroupID string `json:"groupId"`
	// Ref is the participant or record the event is about, in text form.
	Ref   string    `json:"ref,omitempty"`
	Actor string    `json:"actor,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher delivers group events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event GroupEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, GroupEvent) error { return nil }
func (Nop) Close() error                              { return nil }

// Memory keeps published events in order. Useful for tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []GroupEvent
}

func (m *Memory) Publish(_ context.Context, event GroupEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []GroupEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GroupEvent(nil), m.events...)
}
