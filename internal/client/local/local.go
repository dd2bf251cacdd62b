package local

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"

	"github.com/plexsphere/datauploader/internal/client"
	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/stats"
)

// Name is the configuration type discriminator and stats label of this client.
const Name = "local_storage"

// ErrClosed is returned by Put after Close.
var ErrClosed = errors.New("local: client closed")

// header is the first line of every artifact file.
type header struct {
	Type   metric.Kind             `json:"type"`
	Names  []string                `json:"names"`
	Dtypes map[string]metric.Dtype `json:"dtypes"`
}

// artifact is an open data file.
type artifact struct {
	file *os.File
	w    *bufio.Writer
}

// Client appends every batch to <artifacts dir>/<local id>.data.
// Put performs the write synchronously.
type Client struct {
	sep    rune
	job    client.JobInfo
	stats  *stats.Stats
	logger *slog.Logger

	mu     sync.Mutex
	files  map[string]*artifact
	closed bool
}

// New creates a local storage client. Config defaults are applied automatically.
func New(cfg Config, job client.JobInfo, st *stats.Stats, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sep, _ := utf8.DecodeRuneInString(cfg.Separator)
	return &Client{
		sep:    sep,
		job:    job,
		stats:  st,
		logger: logger.With("component", "local"),
		files:  make(map[string]*artifact),
	}, nil
}

// Subscribe is a no-op: artifact files are created on the first Put.
func (c *Client) Subscribe(*metric.Metric) {}

// Put appends batch to the metric's artifact file and flushes it.
func (c *Client) Put(batch *frame.Frame, m *metric.Metric) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	a, ok := c.files[m.LocalID]
	if !ok {
		var err error
		a, err = c.createArtifact(m)
		if err != nil {
			c.stats.Dropped(Name, stats.DropWriteFailed)
			return err
		}
		c.files[m.LocalID] = a
	}

	if err := batch.WriteDelimited(a.w, c.sep, m.Columns); err != nil {
		c.stats.Dropped(Name, stats.DropWriteFailed)
		return fmt.Errorf("local: write %s: %w", m.LocalID, err)
	}
	if err := a.w.Flush(); err != nil {
		c.stats.Dropped(Name, stats.DropWriteFailed)
		return fmt.Errorf("local: flush %s: %w", m.LocalID, err)
	}
	c.stats.Uploaded(Name)
	return nil
}

// createArtifact opens the data file for m and writes its header line.
// Must be called with c.mu held.
func (c *Client) createArtifact(m *metric.Metric) (*artifact, error) {
	dir, err := c.job.ArtifactsDir()
	if err != nil {
		return nil, fmt.Errorf("local: artifacts dir: %w", err)
	}
	path := filepath.Join(dir, m.LocalID+".data")
	c.logger.Debug("creating artifact file", "local_id", m.LocalID, "path", path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("local: create artifact: %w", err)
	}
	hdr, err := json.Marshal(header{Type: m.Kind, Names: m.Columns, Dtypes: m.Dtypes})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("local: marshal header: %w", err)
	}
	a := &artifact{file: f, w: bufio.NewWriter(f)}
	a.w.Write(hdr)
	a.w.WriteByte('\n')
	if err := a.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("local: write header: %w", err)
	}
	return a, nil
}

// Close closes every artifact file. Calls after the first return nil.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var result *multierror.Error
	for id, a := range c.files {
		if err := a.w.Flush(); err != nil {
			result = multierror.Append(result, fmt.Errorf("local: flush %s: %w", id, err))
		}
		if err := a.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("local: close %s: %w", id, err))
		}
	}
	c.files = nil
	return result.ErrorOrNil()
}
