package luna

import (
	"context"
	"errors"
	"time"

	"github.com/plexsphere/datauploader/internal/backend"
)

// runRegistration sweeps the pending metrics until ctx is cancelled, then
// makes one last sweep so metrics subscribed just before Close still get a
// public id. It returns an error only when the backend refuses to issue a
// job number. registrationDone is closed on return.
func (c *Client) runRegistration(ctx context.Context) error {
	defer close(c.registrationDone)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("registration worker interrupted, registering remaining metrics",
				"pending", len(c.state.Pending()))
			return c.sweep(context.WithoutCancel(ctx))
		case <-timer.C:
		}

		if err := c.sweep(ctx); err != nil {
			return err
		}
		timer.Reset(c.cfg.RegisterInterval)
	}
}

// sweep runs registerPending and disables the client on a fatal error.
func (c *Client) sweep(ctx context.Context) error {
	if err := c.registerPending(ctx); err != nil {
		c.fail(err)
		c.logger.Error("job creation failed, client disabled", "error", err)
		return err
	}
	return nil
}

// registerPending attempts one registration for every pending metric.
// Network calls run to completion even if ctx is cancelled mid-sweep; the
// retry budget bounds them.
func (c *Client) registerPending(ctx context.Context) error {
	pending := c.state.Pending()
	if len(pending) == 0 {
		return nil
	}
	callCtx := context.WithoutCancel(ctx)

	job, err := c.resolveJob(callCtx)
	if err != nil {
		if errors.Is(err, backend.ErrProtocol) {
			return err
		}
		c.logger.Warn("failed to create job, will retry", "error", err)
		return nil
	}

	for _, m := range pending {
		if ctx.Err() != nil {
			return nil
		}
		id, err := c.api.CreateMetric(callCtx, backend.MetricRegistration{
			Job:     job,
			Type:    string(m.Kind),
			LocalID: m.LocalID,
			Meta:    m.Meta,
		})
		if err != nil {
			c.logger.Warn("no public id returned for metric", "local_id", m.LocalID, "error", err)
			continue
		}

		recorded, other := c.state.Complete(m.LocalID, id)
		if !recorded {
			continue
		}
		if other != "" {
			c.logger.Warn("public id already assigned to another metric, should be unique",
				"tag", id, "local_id", m.LocalID, "other_local_id", other)
		}
		c.stats.Registered(Name)
		c.logger.Debug("metric registered", "tag", id, "local_id", m.LocalID)
	}
	return nil
}
