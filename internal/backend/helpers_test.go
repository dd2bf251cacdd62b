package backend

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// newTestClient creates a Client backed by the given handler with a fast retry policy.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		APIAddress:      srv.URL + "/",
		UserAgent:       "Tank Test",
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
		RetryMaxElapsed: 2 * time.Second,
	}, "1.2.3", discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}
