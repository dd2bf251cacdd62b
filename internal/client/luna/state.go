package luna

import (
	"sync"

	"github.com/plexsphere/datauploader/internal/metric"
)

// registry tracks which subscribed metrics still await a public id.
// A metric is either pending or mapped, never both. The registration worker
// is the only writer; the upload worker reads through PublicID.
type registry struct {
	mu        sync.Mutex
	pending   []*metric.Metric
	publicIDs map[string]string // local id -> public id
	owners    map[string]string // public id -> first local id holding it
}

func newRegistry() *registry {
	return &registry{
		publicIDs: make(map[string]string),
		owners:    make(map[string]string),
	}
}

// Subscribe adds m to the pending list. It returns false if m is already
// pending or registered.
func (r *registry) Subscribe(m *metric.Metric) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publicIDs[m.LocalID]; ok {
		return false
	}
	for _, p := range r.pending {
		if p.LocalID == m.LocalID {
			return false
		}
	}
	r.pending = append(r.pending, m)
	return true
}

// Pending returns a snapshot of the metrics awaiting registration.
func (r *registry) Pending() []*metric.Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*metric.Metric(nil), r.pending...)
}

// Complete records publicID for localID and removes the metric from the
// pending list. A local id is written at most once; later calls for it
// return recorded=false. collidesWith names another local id that already
// holds the same public id, if any.
func (r *registry) Complete(localID, publicID string) (recorded bool, collidesWith string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publicIDs[localID]; ok {
		return false, ""
	}
	r.publicIDs[localID] = publicID
	if owner, ok := r.owners[publicID]; ok {
		collidesWith = owner
	} else {
		r.owners[publicID] = localID
	}
	for i, p := range r.pending {
		if p.LocalID == localID {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}
	return true, collidesWith
}

// PublicID returns the public id for localID, if registered.
func (r *registry) PublicID(localID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.publicIDs[localID]
	return id, ok
}

// Registered returns the number of mapped metrics.
func (r *registry) Registered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.publicIDs)
}
