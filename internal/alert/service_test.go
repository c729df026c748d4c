package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

type memStore struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (m *memStore) Create(ctx context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestServicePersistsQueuedAlerts(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, ServiceConfig{Workers: 1, BufferSize: 16})

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	patientID := types.NewID()
	svc.Notify(ctx, LevelCritical, &patientID, "vitals", "oxygen saturation below 90")
	svc.Notify(ctx, LevelInfo, nil, "system", "nightly import finished")

	waitFor(t, func() bool { return store.count() == 2 })

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, a := range store.alerts {
		if a.ID.IsZero() {
			t.Error("Persisted alert should have an ID")
		}
		if a.Acknowledged {
			t.Error("New alert should not be acknowledged")
		}
	}
}

func TestServiceDropsWhenBufferFull(t *testing.T) {
	store := &memStore{}
	// No workers started, buffer of one: second notify must drop
	svc := NewService(store, nil, ServiceConfig{Workers: 1, BufferSize: 1})

	ctx := context.Background()
	svc.Notify(ctx, LevelWarning, nil, "vitals", "first")
	svc.Notify(ctx, LevelWarning, nil, "vitals", "second")

	if svc.Dropped() != 1 {
		t.Errorf("Expected 1 dropped alert, got %d", svc.Dropped())
	}
}

func TestServiceStartTwice(t *testing.T) {
	svc := NewService(&memStore{}, nil, DefaultServiceConfig())

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	if err := svc.Start(context.Background()); err == nil {
		t.Error("Second Start should fail")
	}
}

func TestServiceStopDrainsBuffer(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil, ServiceConfig{Workers: 1, BufferSize: 16})

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		svc.Notify(ctx, LevelInfo, nil, "system", "queued")
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if store.count() != 5 {
		t.Errorf("Expected 5 persisted alerts after Stop, got %d", store.count())
	}
}
