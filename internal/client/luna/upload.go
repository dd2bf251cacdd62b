package luna

import (
	"context"
	"time"

	"github.com/plexsphere/datauploader/internal/metric"
	"github.com/plexsphere/datauploader/internal/stats"
)

// outcome is the result of handling one delivery queue item.
type outcome int

const (
	delivered outcome = iota
	requeued
	dropped
)

// runUpload drains the delivery queue until ctx is cancelled, then makes one
// final pass over whatever is left once registration has finished.
func (c *Client) runUpload(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.UploadPollInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		if c.uploadPass(ctx, false) {
			continue
		}
		timer.Reset(c.cfg.UploadPollInterval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	// The final pass decides registration for good, so it waits for the
	// registration worker's last sweep.
	<-c.registrationDone
	c.logger.Info("upload worker interrupted, sending remaining data", "queued", c.deliveries.Len())
	c.uploadPass(ctx, true)
	return nil
}

// uploadPass handles every item queued when the pass starts. It reports
// whether any item left the queue for good, so callers can back off when
// everything was re-queued. A non-final pass stops early once ctx is done.
func (c *Client) uploadPass(ctx context.Context, final bool) bool {
	n := c.deliveries.Len()
	progress := false
	for i := 0; i < n; i++ {
		if !final && ctx.Err() != nil {
			return true
		}
		rec, ok := c.deliveries.TryGet()
		if !ok {
			break
		}
		if c.process(ctx, rec, final) != requeued {
			progress = true
		}
	}
	return progress
}

// process uploads rec if its metric is registered; otherwise it re-queues
// rec, or drops it on the final pass.
func (c *Client) process(ctx context.Context, rec metric.Record, final bool) outcome {
	m := rec.Metric
	if err := c.Err(); err != nil {
		c.stats.Dropped(Name, stats.DropClientFailed)
		return dropped
	}

	tag, ok := c.state.PublicID(m.LocalID)
	if !ok {
		if final {
			c.stats.Dropped(Name, stats.DropUnregistered)
			c.logger.Warn("metric never registered, dropped data",
				"local_id", m.LocalID, "rows", rec.Frame.Len())
			return dropped
		}
		c.deliveries.Put(rec)
		c.stats.Requeued(Name)
		return requeued
	}

	columns := append([]string{columnKeyDate, columnTag}, m.Columns...)
	body, err := rec.Frame.
		WithConstant(columnKeyDate, c.keyDate).
		WithConstant(columnTag, tag).
		TSV(columns)
	if err != nil {
		c.stats.Dropped(Name, stats.DropUploadFailed)
		c.logger.Warn("failed to render upload body, dropped data", "local_id", m.LocalID, "error", err)
		return dropped
	}

	if err := c.api.UploadMetric(context.WithoutCancel(ctx), string(m.Kind), body); err != nil {
		c.stats.Dropped(Name, stats.DropUploadFailed)
		c.logger.Warn("failed to upload data to luna backend, dropped data",
			"local_id", m.LocalID, "type", m.Kind, "rows", rec.Frame.Len(), "error", err)
		return dropped
	}
	c.stats.Uploaded(Name)
	return delivered
}
