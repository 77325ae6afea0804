package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

// JSONL writes one JSON document per line.
type JSONL struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewJSONL wraps w. The writer is not closed by Close.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{w: w}
}

// OpenJSONL appends to the file at path, creating it and its directory.
func OpenJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONL{w: f, closer: f}, nil
}

func (j *JSONL) Write(ctx context.Context, m *metricsdto.GameMetrics) error {
	if m == nil {
		return nil
	}
	return j.Append(m)
}

// Append writes any value as a single line.
func (j *JSONL) Append(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(b)
	return err
}

func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
