package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/plexsphere/datauploader/internal/frame"
	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/stats"
)

// Source is a queue the router can drain without blocking.
type Source interface {
	Drain() []metric.Record
}

// Destination receives coalesced batches.
type Destination interface {
	Put(batch *frame.Frame, m *metric.Metric) error
}

// Target is a named Destination. The name is used in logs and counters.
type Target struct {
	Name   string
	Client Destination
}

// Buffer is the coalesced batch of one metric type for one drain cycle.
// Metric is an arbitrary representative of that type.
type Buffer struct {
	Frame  *frame.Frame
	Metric *metric.Metric
}

// Router moves records from the shared queue to every target.
type Router struct {
	cfg     Config
	source  Source
	targets []Target
	stats   *stats.Stats
	logger  *slog.Logger
}

// New creates a Router. Config defaults are applied automatically.
func New(cfg Config, source Source, targets []Target, st *stats.Stats, logger *slog.Logger) *Router {
	cfg.ApplyDefaults()
	return &Router{
		cfg:     cfg,
		source:  source,
		targets: targets,
		stats:   st,
		logger:  logger.With("component", "router"),
	}
}

// Run drains and dispatches until ctx is cancelled, then performs one final
// drain-and-dispatch pass so records queued before shutdown are delivered.
func (r *Router) Run(ctx context.Context) error {
	r.cycle()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cycle()
			r.logger.Debug("router stopped")
			return ctx.Err()
		case <-ticker.C:
			r.cycle()
		}
	}
}

// cycle performs one drain-and-dispatch pass.
func (r *Router) cycle() {
	records := r.source.Drain()
	if len(records) == 0 {
		return
	}
	buffers := Coalesce(records)
	for _, b := range buffers {
		r.stats.Routed(string(b.Metric.Kind), b.Frame.Len())
	}
	r.logger.Debug("dispatching", "records", len(records), "buffers", len(buffers))

	for _, t := range r.targets {
		for _, b := range buffers {
			if err := r.safePut(t, b); err != nil {
				r.stats.DispatchError(t.Name)
				r.logger.Warn("client put failed",
					"client", t.Name, "type", b.Metric.Kind, "rows", b.Frame.Len(), "error", err)
			}
		}
	}
}

// safePut calls a target with panic recovery.
func (r *Router) safePut(t Target, b Buffer) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("client panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return t.Client.Put(b.Frame, b.Metric)
}

// Coalesce groups records by metric type in first-seen order. Frames of the
// same type are concatenated in arrival order; the first metric seen for a
// type represents it.
func Coalesce(records []metric.Record) []Buffer {
	var order []metric.Kind
	frames := make(map[metric.Kind][]*frame.Frame)
	reps := make(map[metric.Kind]*metric.Metric)

	for _, rec := range records {
		k := rec.Metric.Kind
		if _, ok := reps[k]; !ok {
			order = append(order, k)
			reps[k] = rec.Metric
		}
		frames[k] = append(frames[k], rec.Frame)
	}

	out := make([]Buffer, 0, len(order))
	for _, k := range order {
		fs := frames[k]
		f := fs[0]
		if len(fs) > 1 {
			f = frame.Concat(fs...)
		}
		out = append(out, Buffer{Frame: f, Metric: reps[k]})
	}
	return out
}
