package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/events"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/metrics"
	"github.com/EdwardMor3h/topico-enfermeria/internal/shared/types"
)

// Notifier is the interface modules use to raise alerts. Notify never
// blocks the caller: alerts are queued and written by a background
// worker.
type Notifier interface {
	Notify(ctx context.Context, level Level, patientID *types.ID, source, message string)
}

// Store persists alerts
type Store interface {
	Create(ctx context.Context, a *Alert) error
}

// ServiceConfig holds alert service configuration
type ServiceConfig struct {
	Workers    int
	BufferSize int
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:    2,
		BufferSize: 256,
	}
}

// Service queues alerts and persists them asynchronously
type Service struct {
	store Store
	bus   events.EventBus

	alertCh chan *Alert
	workers int

	mu      sync.Mutex
	started bool
	dropped int64
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a new alert service
func NewService(store Store, bus events.EventBus, cfg ServiceConfig) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultServiceConfig().Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultServiceConfig().BufferSize
	}

	return &Service{
		store:   store,
		bus:     bus,
		alertCh: make(chan *Alert, cfg.BufferSize),
		workers: cfg.Workers,
		stopCh:  make(chan struct{}),
	}
}

// Start starts the background workers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("alert service already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	return nil
}

// Stop drains and stops the background workers
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("alert service not started")
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	return nil
}

// Notify queues an alert for persistence. A full buffer drops the
// alert rather than blocking the request path.
func (s *Service) Notify(ctx context.Context, level Level, patientID *types.ID, source, message string) {
	a := &Alert{
		ID:        types.NewID(),
		PatientID: patientID,
		Level:     level,
		Message:   message,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case s.alertCh <- a:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		log.Printf("Alert buffer full, dropped %s alert from %s", level, source)
	}
}

// Dropped returns the number of alerts dropped due to a full buffer
func (s *Service) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			// Drain remaining alerts before exit
			for {
				select {
				case a := <-s.alertCh:
					s.persist(context.Background(), a)
				default:
					return
				}
			}
		case a := <-s.alertCh:
			s.persist(ctx, a)
		}
	}
}

func (s *Service) persist(ctx context.Context, a *Alert) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.store.Create(writeCtx, a); err != nil {
		log.Printf("Failed to persist alert %s: %v", a.ID, err)
		return
	}

	metrics.RecordAlert(string(a.Level))

	if s.bus != nil {
		event := events.NewEvent("alert.raised", "alert", map[string]any{
			"alert_id":   a.ID,
			"level":      a.Level,
			"source":     a.Source,
			"patient_id": a.PatientID,
		})
		s.bus.Publish(writeCtx, event)
	}
}

var _ Notifier = (*Service)(nil)
