package router

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/metric"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// putCall records a single Put invocation.
type putCall struct {
	Frame  *frame.Frame
	Metric *metric.Metric
}

// mockClient records Put calls.
type mockClient struct {
	mu    sync.Mutex
	calls []putCall
	err   error
	panic string
}

func (m *mockClient) Put(f *frame.Frame, mt *metric.Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panic != "" {
		panic(m.panic)
	}
	m.calls = append(m.calls, putCall{Frame: f, Metric: mt})
	return m.err
}

func (m *mockClient) snapshot() []putCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]putCall(nil), m.calls...)
}

var errPermanent = errors.New("all retries exhausted")
