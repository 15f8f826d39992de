package track

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avendley/schemavc/core"
)

// ChangeEvent is one structural change observed on a live system. The
// source guarantees delivery order per object; no ordering holds across
// objects. NewName is set only for RENAME events.
type ChangeEvent struct {
	Ref        core.ObjectRef  `json:"ref"`
	Kind       core.ChangeKind `json:"kind"`
	Definition string          `json:"definition,omitempty"`
	NewName    string          `json:"newName,omitempty"`
	Actor      core.Identity   `json:"actor"`
	When       time.Time       `json:"when"`
}

// Apply dispatches a single change event to the tracker. CREATE events
// ensure the object exists before recording its definition; a DROP
// needs no definition; a RENAME moves the identity to NewName in the
// same schema.
func (t *Tracker) Apply(event ChangeEvent) error {
	id, err := t.EnsureObject(event.Ref, event.Actor, event.When)
	if err != nil {
		return err
	}

	switch event.Kind {
	case core.DropChange:
		return t.MarkDropped(id, event.Actor, event.When)
	case core.RenameChange:
		if event.NewName == "" {
			return fmt.Errorf("rename of %s carries no new name", event.Ref)
		}
		to := event.Ref
		to.Name = event.NewName
		return t.Rename(id, to, event.Actor, event.When)
	default:
		_, err := t.RecordChange(id, event.Kind, event.Definition, event.Actor, event.When)
		return err
	}
}

// Consume applies events from a channel until it closes or the context
// is cancelled. The first failing event stops consumption and is
// returned.
func (t *Tracker) Consume(ctx context.Context, events <-chan ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := t.Apply(event); err != nil {
				return err
			}
		}
	}
}

// EventLog records change events as they are applied so a tracker can
// be rebuilt by replay. Replaying an already-applied event is safe
// because RecordChange is idempotent on identical content.
type EventLog struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Record(event ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events in application order.
func (l *EventLog) Events() []ChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]ChangeEvent, len(l.events))
	copy(events, l.events)
	return events
}

// Replay applies the recorded events to a tracker in order.
func (l *EventLog) Replay(t *Tracker) error {
	for _, event := range l.Events() {
		if err := t.Apply(event); err != nil {
			return err
		}
	}
	return nil
}
