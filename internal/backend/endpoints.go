package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	pathCreateJob    = "/create_job/"
	pathCreateMetric = "/create_metric/"
	pathUploadMetric = "/upload_metric/"
)

// MetricRegistration describes a metric to be registered under a job.
type MetricRegistration struct {
	Job     string
	Type    string
	LocalID string
	Meta    map[string]string
}

// MarshalJSON flattens Meta into the top-level object. The job, type and
// local_id keys always win over meta keys of the same name.
func (r MetricRegistration) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Meta)+3)
	for k, v := range r.Meta {
		body[k] = v
	}
	body["job"] = jobValue(r.Job)
	body["type"] = r.Type
	body["local_id"] = r.LocalID
	return json.Marshal(body)
}

// CreateJob creates a job on the backend and returns its job number.
// POST /create_job/
func (c *Client) CreateJob(ctx context.Context, testStart time.Time) (string, error) {
	body := map[string]any{
		"test_start": float64(testStart.Unix()) + float64(testStart.Nanosecond())/1e9,
	}
	var job string
	err := c.retry.Do(ctx, "create job", c.logger, func(ctx context.Context) error {
		var resp map[string]any
		if err := c.doJSON(ctx, pathCreateJob, body, &resp); err != nil {
			return err
		}
		v, err := scalarField(resp, "job")
		if err != nil {
			return err
		}
		job = v
		return nil
	})
	if err != nil {
		return "", err
	}
	return job, nil
}

// CreateMetric registers a metric and returns its backend-assigned public id.
// POST /create_metric/
func (c *Client) CreateMetric(ctx context.Context, reg MetricRegistration) (string, error) {
	var id string
	err := c.retry.Do(ctx, "create metric", c.logger, func(ctx context.Context) error {
		var resp map[string]any
		if err := c.doJSON(ctx, pathCreateMetric, reg, &resp); err != nil {
			return err
		}
		v, err := scalarField(resp, "uniq_id")
		if err != nil {
			return err
		}
		id = v
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UploadMetric inserts tab-separated rows into the table for metricType.
// POST /upload_metric/?query=INSERT INTO <db>.<type> FORMAT TSV
func (c *Client) UploadMetric(ctx context.Context, metricType string, tsv []byte) error {
	query := fmt.Sprintf("INSERT INTO %s.%s FORMAT TSV", c.dbName, metricType)
	path := pathUploadMetric + "?query=" + url.QueryEscape(query)
	return c.retry.Do(ctx, "upload metric", c.logger, func(ctx context.Context) error {
		return c.doRaw(ctx, path, "text/tab-separated-values", tsv)
	})
}

// scalarField extracts a non-empty string or number field from a decoded response.
func scalarField(resp map[string]any, key string) (string, error) {
	switch v := resp[key].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case json.Number:
		if v.String() != "0" {
			return v.String(), nil
		}
	case bool, nil:
	default:
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("%w: response has no %q field", ErrProtocol, key)
}

// jobValue sends numeric job numbers as JSON numbers and anything else as a string.
func jobValue(job string) any {
	if _, err := strconv.ParseFloat(job, 64); err == nil {
		return json.Number(job)
	}
	return job
}
