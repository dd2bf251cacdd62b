package luna

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/datauploader/internal/backend"
	"github.com/plexsphere/datauploader/internal/client"
	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/fsutil"
	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/queue"
	"github.com/plexsphere/datauploader/internal/stats"
)

// Name is the configuration type discriminator and stats label of this client.
const Name = "luna"

// Fixed leading columns of every uploaded row.
const (
	columnKeyDate = "key_date"
	columnTag     = "tag"
)

// linkDirName is the directory under the artifacts base dir that holds
// job-number symlinks.
const linkDirName = "luna"

// ErrClosed is returned by Put after Close.
var ErrClosed = errors.New("luna: client closed")

// Backend abstracts the luna HTTP API.
type Backend interface {
	CreateJob(ctx context.Context, testStart time.Time) (string, error)
	CreateMetric(ctx context.Context, reg backend.MetricRegistration) (string, error)
	UploadMetric(ctx context.Context, metricType string, tsv []byte) error
}

// Client is the luna sink. Put only enqueues; delivery happens on the
// upload worker.
type Client struct {
	cfg     Config
	api     Backend
	job     client.JobInfo
	keyDate string
	stats   *stats.Stats
	logger  *slog.Logger

	state      *registry
	deliveries *queue.Queue[metric.Record]

	mu        sync.Mutex
	jobNumber string
	fatal     error
	closed    bool

	cancel           context.CancelFunc
	group            errgroup.Group
	registrationDone chan struct{}
	closeOnce        sync.Once
}

// New creates a luna client and starts its workers. Config defaults are
// applied automatically; a missing APIAddress is reported immediately.
func New(cfg Config, job client.JobInfo, version string, st *stats.Stats, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api, err := backend.New(cfg.Config, version, logger)
	if err != nil {
		return nil, fmt.Errorf("luna: %w", err)
	}
	return newClient(cfg, api, job, st, logger), nil
}

// newClient wires a client around api and starts its workers.
func newClient(cfg Config, api Backend, job client.JobInfo, st *stats.Stats, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:        cfg,
		api:        api,
		job:        job,
		keyDate:    time.Now().Format("2006-01-02"),
		stats:      st,
		logger:     logger.With("component", "luna"),
		state:      newRegistry(),
		deliveries: queue.New[metric.Record](),
		cancel:     cancel,

		registrationDone: make(chan struct{}),
	}
	c.group.Go(func() error { return c.runRegistration(ctx) })
	c.group.Go(func() error { return c.runUpload(ctx) })
	return c
}

// Subscribe marks m as pending registration.
func (c *Client) Subscribe(m *metric.Metric) {
	if !c.state.Subscribe(m) {
		c.logger.Debug("duplicate subscription ignored", "local_id", m.LocalID)
	}
}

// Put enqueues batch for delivery. It never blocks on the network.
func (c *Client) Put(batch *frame.Frame, m *metric.Metric) error {
	c.mu.Lock()
	closed, fatal := c.closed, c.fatal
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if fatal != nil {
		c.stats.Dropped(Name, stats.DropClientFailed)
		return fmt.Errorf("luna: client unusable, batch dropped: %w", fatal)
	}
	c.deliveries.Put(metric.Record{Frame: batch, Metric: m})
	return nil
}

// Err returns the error that made the client unusable, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// JobNumber returns the backend job number, or "" if it is not resolved yet.
func (c *Client) JobNumber() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobNumber
}

// PublicID returns the public id assigned to localID, if registered.
func (c *Client) PublicID(localID string) (string, bool) {
	return c.state.PublicID(localID)
}

// Close links the job artifacts, stops both workers and waits for the last
// registration sweep and the upload worker's final pass. It returns the client's fatal error, if any. Calls
// after the first return nil.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.linkJob()
		c.cancel()
		err = c.group.Wait()
		c.logger.Info("client closed",
			"registered", c.state.Registered(),
			"pending", len(c.state.Pending()))
	})
	return err
}

// resolveJob returns the job number, creating the backend job on first use.
// Only the registration worker calls it.
func (c *Client) resolveJob(ctx context.Context) (string, error) {
	if n := c.JobNumber(); n != "" {
		return n, nil
	}
	n, err := c.api.CreateJob(ctx, c.job.TestStart())
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.jobNumber = n
	c.mu.Unlock()

	c.logger.Info("job created", "job_number", n, "job_id", c.job.JobID())
	c.linkJob()
	return n, nil
}

// fail marks the client unusable.
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.fatal = err
	c.mu.Unlock()
}

// linkJob points <artifacts base>/luna/<job number> at the job's artifact
// directory. Failures are logged and otherwise ignored.
func (c *Client) linkJob() {
	n := c.JobNumber()
	if n == "" {
		return
	}
	base := c.job.ArtifactsBaseDir()
	link := filepath.Join(base, linkDirName, n)
	target := filepath.Join("..", c.job.JobID())
	if err := fsutil.Symlink(target, link); err != nil {
		c.logger.Warn("unable to create job symlink", "job_id", c.job.JobID(), "link", link, "error", err)
		return
	}
	c.logger.Debug("job symlink created", "job_id", c.job.JobID(), "link", link)
}
