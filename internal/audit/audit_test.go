package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

func TestEntryHashDeterministic(t *testing.T) {
	entityID := types.NewID()
	e := NewEntry("consultation.created", "consultation", &entityID, map[string]any{
		"patient_id": types.NewID().String(),
		"history_id": types.NewID().String(),
	})
	e.PrevHash = "abc123"

	first := e.computeHash()
	for i := 0; i < 10; i++ {
		if got := e.computeHash(); got != first {
			t.Fatalf("Expected stable hash '%s', got '%s'", first, got)
		}
	}
	if len(first) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(first))
	}
}

func TestEntryVerifyHashDetectsTampering(t *testing.T) {
	e := NewEntry("history.signed", "history", nil, map[string]any{"patient_id": "x"})
	e.Hash = e.computeHash()

	if !e.VerifyHash() {
		t.Fatal("Expected fresh entry to verify")
	}

	e.Action = "history.unsigned"
	if e.VerifyHash() {
		t.Error("Expected tampered action to break verification")
	}

	e.Action = "history.signed"
	if !e.VerifyHash() {
		t.Fatal("Expected restored entry to verify again")
	}

	e.Detail["patient_id"] = "y"
	if e.VerifyHash() {
		t.Error("Expected tampered detail to break verification")
	}
}

func TestEntryHashCoversPrevHash(t *testing.T) {
	e := NewEntry("patient.created", "patient", nil, nil)
	e.PrevHash = ""
	genesis := e.computeHash()

	e.PrevHash = "deadbeef"
	if e.computeHash() == genesis {
		t.Error("Expected prev_hash to change the hash")
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := canonicalJSON(map[string]any{"b": 1, "a": map[string]any{"z": true, "y": false}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := `{"a":{"y":false,"z":true},"b":1}`
	if string(a) != want {
		t.Errorf("Expected '%s', got '%s'", want, string(a))
	}
}

func TestEventToEntry(t *testing.T) {
	actorID := types.NewID()
	consultationID := types.NewID()

	event := events.NewEvent("consultation.created", "record", map[string]any{
		"consultation_id": consultationID.String(),
		"patient_id":      types.NewID().String(),
	}).WithActor(actorID, "DOCTOR")

	entry := eventToEntry(event)
	if entry == nil {
		t.Fatal("Expected an entry")
	}
	if entry.Action != "consultation.created" {
		t.Errorf("Expected action 'consultation.created', got '%s'", entry.Action)
	}
	if entry.EntityType != "consultation" {
		t.Errorf("Expected entity type 'consultation', got '%s'", entry.EntityType)
	}
	if entry.EntityID == nil || *entry.EntityID != consultationID {
		t.Error("Expected entity ID extracted from payload")
	}
	if entry.ActorID == nil || *entry.ActorID != actorID {
		t.Error("Expected actor recorded")
	}
	if entry.ActorRole != "DOCTOR" {
		t.Errorf("Expected actor role 'DOCTOR', got '%s'", entry.ActorRole)
	}
}

func TestEventToEntrySkipsUnstructuredTypes(t *testing.T) {
	if entry := eventToEntry(events.NewEvent("heartbeat", "system", nil)); entry != nil {
		t.Error("Expected single-segment event types to be skipped")
	}
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []*Entry
}

func (m *memAuditStore) Append(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func TestSubscriberAppendsEntries(t *testing.T) {
	store := &memAuditStore{}
	s := NewSubscriber(store, events.NopBus{})

	event := events.NewEvent("alert.raised", "alert", map[string]any{
		"alert_id": types.NewID().String(),
		"level":    "CRITICAL",
	})

	if err := s.handleEvent(context.Background(), event); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(store.entries))
	}
	if store.entries[0].EntityType != "alert" {
		t.Errorf("Expected entity type 'alert', got '%s'", store.entries[0].EntityType)
	}
}

func TestChainLinkageAcrossEntries(t *testing.T) {
	// Simulate what Append does: link, hash, advance the head.
	lastHash := ""
	var chain []*Entry
	for _, action := range []string{"patient.created", "consultation.created", "history.signed"} {
		e := NewEntry(action, "x", nil, nil)
		e.PrevHash = lastHash
		e.Hash = e.computeHash()
		lastHash = e.Hash
		chain = append(chain, e)
	}

	for i, e := range chain {
		if !e.VerifyHash() {
			t.Errorf("Expected entry %d to verify", i)
		}
		if i > 0 && e.PrevHash != chain[i-1].Hash {
			t.Errorf("Expected entry %d linked to entry %d", i, i-1)
		}
	}
	if chain[0].PrevHash != "" {
		t.Error("Expected genesis entry to have empty prev_hash")
	}
}
