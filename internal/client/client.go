// Package client defines the contract shared by every delivery target.
package client

import (
	"time"

	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/metric"
)

// Client delivers coalesced batches to a sink.
//
// Subscribe must be called for a metric before batches for it are expected to
// be delivered. Put must return quickly: synchronous sinks do their I/O inline,
// asynchronous sinks only enqueue. Close stops background work after a
// best-effort flush; calls after the first are no-ops.
type Client interface {
	Subscribe(m *metric.Metric)
	Put(batch *frame.Frame, m *metric.Metric) error
	Close() error
}

// JobInfo is the view of the owning job that clients need.
type JobInfo interface {
	// JobID returns the process-unique job identifier.
	JobID() string
	// TestStart returns the start time of the test run.
	TestStart() time.Time
	// ArtifactsBaseDir returns the directory holding all job artifact directories.
	ArtifactsBaseDir() string
	// ArtifactsDir returns the job's artifact directory, creating it on first use.
	ArtifactsDir() (string, error)
}
