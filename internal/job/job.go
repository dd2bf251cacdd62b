// Package job wires metrics, the router and the configured clients into one
// upload pipeline for a single test run.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/plexsphere/datauploader/internal/client"
	"github.com/plexsphere/datauploader/internal/client/local"
	"github.com/plexsphere/datauploader/internal/client/luna"
	"github.com/plexsphere/datauploader/internal/fsutil"
	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/queue"
	"github.com/plexsphere/datauploader/internal/router"
	"github.com/plexsphere/datauploader/internal/stats"
)

// ManifestFile is the name of the job manifest written into the artifacts
// directory on Close.
const ManifestFile = "job.json"

var (
	// ErrUnknownClient is returned for a client type with no implementation.
	ErrUnknownClient = errors.New("unknown client type")

	// ErrClosed is returned by GetMetric after Close.
	ErrClosed = errors.New("job: closed")
)

// factory builds a client from its configuration.
type factory func(cc ClientConfig, j *Job) (client.Client, error)

var factories = map[string]factory{
	luna.Name: func(cc ClientConfig, j *Job) (client.Client, error) {
		c, err := luna.New(cc.Luna, j, j.version, j.stats, j.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
	local.Name: func(cc ClientConfig, j *Job) (client.Client, error) {
		c, err := local.New(cc.Local, j, j.stats, j.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
}

type namedClient struct {
	typ    string
	client client.Client
}

// Job owns the shared ingestion queue, the router goroutine and every client
// of one test run. It implements client.JobInfo.
type Job struct {
	cfg       Config
	id        string
	testStart time.Time
	version   string
	stats     *stats.Stats
	logger    *slog.Logger

	queue   *queue.Queue[metric.Record]
	clients []namedClient

	cancel     context.CancelFunc
	routerDone chan struct{}

	mu     sync.Mutex
	dir    string
	closed bool

	closeOnce sync.Once
}

// New builds the configured clients and starts the router. Config defaults
// are applied automatically. A client that fails to build is fatal; clients
// built before it are closed.
func New(cfg Config, version string, st *stats.Stats, logger *slog.Logger) (*Job, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	j := &Job{
		cfg:       cfg,
		id:        "job_" + uuid.NewString(),
		testStart: cfg.testStart(),
		version:   version,
		stats:     st,
		queue:     queue.New[metric.Record](),
	}
	j.logger = logger.With("component", "job", "job_id", j.id)

	targets := make([]router.Target, 0, len(cfg.Clients))
	for i, cc := range cfg.Clients {
		c, err := factories[cc.Type](cc, j)
		if err != nil {
			j.closeClients()
			return nil, fmt.Errorf("job: clients[%d] (%s): %w", i, cc.Type, err)
		}
		j.clients = append(j.clients, namedClient{typ: cc.Type, client: c})
		targets = append(targets, router.Target{Name: cc.Type, Client: c})
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.routerDone = make(chan struct{})
	r := router.New(cfg.Router, j.queue, targets, st, logger)
	go func() {
		defer close(j.routerDone)
		_ = r.Run(ctx)
	}()

	j.logger.Info("job started", "clients", len(j.clients))
	return j, nil
}

// JobID returns the job identifier.
func (j *Job) JobID() string { return j.id }

// TestStart returns the configured test start, or the time the job was
// created.
func (j *Job) TestStart() time.Time { return j.testStart }

// ArtifactsBaseDir returns the configured artifacts base directory.
func (j *Job) ArtifactsBaseDir() string { return j.cfg.ArtifactsBaseDir }

// ArtifactsDir returns <artifacts base>/<job id>, creating it on first use.
func (j *Job) ArtifactsDir() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.dir != "" {
		return j.dir, nil
	}
	dir := filepath.Join(j.cfg.ArtifactsBaseDir, j.id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("job: create artifacts dir: %w", err)
	}
	j.dir = dir
	return dir, nil
}

// GetMetric creates a metric of the given kind and subscribes every client
// to it.
func (j *Job) GetMetric(kind metric.Kind, meta map[string]string) (*metric.Metric, error) {
	j.mu.Lock()
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	m, err := metric.New(kind, meta, j.queue)
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	for _, nc := range j.clients {
		nc.client.Subscribe(m)
	}
	j.logger.Debug("metric created", "local_id", m.LocalID, "type", kind, "name", m.Name())
	return m, nil
}

// Close stops the router after its final pass, closes every client and
// writes the job manifest. Client errors are aggregated. Calls after the
// first return nil.
func (j *Job) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()

		j.cancel()
		<-j.routerDone

		err = j.closeClients()
		j.writeManifest()
		j.logger.Info("job closed")
	})
	return err
}

func (j *Job) closeClients() error {
	var result *multierror.Error
	for _, nc := range j.clients {
		if err := nc.client.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", nc.typ, err))
		}
	}
	return result.ErrorOrNil()
}

// manifest is the content of ManifestFile.
type manifest struct {
	JobID     string    `json:"job_id"`
	TestStart time.Time `json:"test_start"`
	Clients   []string  `json:"clients"`
	LunaJobs  []string  `json:"luna_jobs,omitempty"`
}

// writeManifest records the job in its artifacts directory. Nothing is
// written if no client produced artifacts or a backend job number.
func (j *Job) writeManifest() {
	mf := manifest{JobID: j.id, TestStart: j.testStart}
	for _, nc := range j.clients {
		mf.Clients = append(mf.Clients, nc.typ)
		if lc, ok := nc.client.(*luna.Client); ok {
			if n := lc.JobNumber(); n != "" {
				mf.LunaJobs = append(mf.LunaJobs, n)
			}
		}
	}

	j.mu.Lock()
	created := j.dir != ""
	j.mu.Unlock()
	if !created && len(mf.LunaJobs) == 0 {
		return
	}
	// Job number symlinks point at the artifacts directory.
	dir, err := j.ArtifactsDir()
	if err != nil {
		j.logger.Warn("failed to write job manifest", "error", err)
		return
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		j.logger.Warn("failed to encode job manifest", "error", err)
		return
	}
	if err := fsutil.WriteFileAtomic(dir, ManifestFile, append(data, '\n'), 0o644); err != nil {
		j.logger.Warn("failed to write job manifest", "error", err)
	}
}
