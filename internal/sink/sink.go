package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

// Sink receives finished metrics records. Implementations must accept
// concurrent calls, although the pipeline writes from a single goroutine.
type Sink interface {
	Write(ctx context.Context, m *metricsdto.GameMetrics) error
	Close() error
}

// Multi fans every record out to all of its sinks.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec *metricsdto.GameMetrics) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps records in process. Used for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records []metricsdto.GameMetrics
	byID    map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Write(ctx context.Context, rec *metricsdto.GameMetrics) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	cp.Diagnostics = append([]string(nil), rec.Diagnostics...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[cp.GameID]; ok && cp.GameID != "" {
		m.records[i] = cp
		return nil
	}
	m.byID[cp.GameID] = len(m.records)
	m.records = append(m.records, cp)
	return nil
}

// Records returns a snapshot in first-write order.
func (m *Memory) Records() []metricsdto.GameMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]metricsdto.GameMetrics, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) Get(id string) (metricsdto.GameMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return metricsdto.GameMetrics{}, false
	}
	return m.records[i], true
}

func (m *Memory) Close() error { return nil }
