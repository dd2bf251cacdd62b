// Package metric defines typed measurement sources and the records they emit.
package metric

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/plexsphere/datauploader/internal/frame"
)

// Sentinel errors.
var (
	ErrUnknownKind   = errors.New("metric: unknown kind")
	ErrUnknownColumn = errors.New("metric: unknown column")
)

// Record is a batch paired with the metric that produced it.
type Record struct {
	Frame  *frame.Frame
	Metric *Metric
}

// Enqueuer accepts records without blocking.
type Enqueuer interface {
	Put(Record)
}

// Metric is a typed, schema-bearing source of batches.
// All fields are fixed at creation and must not be modified afterwards.
type Metric struct {
	LocalID string
	Kind    Kind
	Columns []string
	Dtypes  map[string]Dtype
	Meta    map[string]string

	queue Enqueuer
}

// New creates a Metric of the given kind that pushes its batches onto q.
// The local id is unique for the lifetime of the process.
func New(kind Kind, meta map[string]string, q Enqueuer) (*Metric, error) {
	s, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	m := &Metric{
		LocalID: "metric_" + uuid.NewString(),
		Kind:    kind,
		Columns: s.Columns,
		Dtypes:  s.Dtypes,
		Meta:    make(map[string]string, len(meta)),
		queue:   q,
	}
	for k, v := range meta {
		m.Meta[k] = v
	}
	return m, nil
}

// Put validates that the batch's columns belong to the metric's schema and
// enqueues it for routing. It never blocks.
func (m *Metric) Put(f *frame.Frame) error {
	for _, c := range f.Columns() {
		if _, ok := m.Dtypes[c]; !ok {
			return fmt.Errorf("%w: %q not in %s schema", ErrUnknownColumn, c, m.Kind)
		}
	}
	m.queue.Put(Record{Frame: f, Metric: m})
	return nil
}

// Name returns the "name" meta value, or the local id if none was given.
func (m *Metric) Name() string {
	if n := m.Meta["name"]; n != "" {
		return n
	}
	return m.LocalID
}
