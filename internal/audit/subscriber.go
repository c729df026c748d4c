package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Store is the append surface the subscriber writes to
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Subscriber turns domain events into audit entries
type Subscriber struct {
	store Store
	bus   events.EventBus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(store Store, bus events.EventBus) *Subscriber {
	return &Subscriber{store: store, bus: bus}
}

// Start subscribes to every audited event family
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"patient.*", "audit-patient-subscriber"},
		{"appointment.*", "audit-appointment-subscriber"},
		{"consultation.*", "audit-consultation-subscriber"},
		{"history.*", "audit-history-subscriber"},
		{"alert.*", "audit-alert-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := eventToEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// eventToEntry maps a domain event onto an audit entry. The entity
// type is the first segment of the event type; the entity ID is picked
// out of the payload when present.
func eventToEntry(event events.Event) *Entry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}
	entityType := parts[0]

	var entityID *types.ID
	var detail map[string]any
	if data, ok := event.Data.(map[string]any); ok {
		detail = data
		for _, field := range []string{entityType + "_id", "id"} {
			if raw, ok := data[field]; ok {
				switch v := raw.(type) {
				case string:
					if id, err := types.ParseID(v); err == nil {
						entityID = &id
					}
				case types.ID:
					entityID = &v
				}
				if entityID != nil {
					break
				}
			}
		}
	}

	entry := NewEntry(event.Type, entityType, entityID, detail)
	entry.WithActor(event.ActorID, event.ActorRole)
	return entry
}
