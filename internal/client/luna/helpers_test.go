package luna

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plexsphere/datauploader/internal/backend"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

// fakeJob is a client.JobInfo rooted in a temp dir.
type fakeJob struct {
	base string
}

func (j *fakeJob) JobID() string            { return "job_test" }
func (j *fakeJob) TestStart() time.Time     { return time.Unix(1700000000, 0) }
func (j *fakeJob) ArtifactsBaseDir() string { return j.base }
func (j *fakeJob) ArtifactsDir() (string, error) {
	dir := filepath.Join(j.base, j.JobID())
	return dir, os.MkdirAll(dir, 0o755)
}

// upload records a single upload_metric request.
type upload struct {
	Query string
	Body  string
}

// fakeLuna is an in-process luna backend.
type fakeLuna struct {
	t *testing.T

	// jobResponse is the body returned by /create_job/.
	jobResponse string
	// registerOK gates /create_metric/; while false it answers 500.
	registerOK atomic.Bool
	// tagFor maps a local id to the uniq_id returned for it.
	tagFor func(localID string) string
	// uploadStatus returns the status for the n-th (1-based) upload request.
	uploadStatus func(n int) int

	mu            sync.Mutex
	registrations map[string]int
	uploads       []upload
	uploadCalls   int
}

func newFakeLuna(t *testing.T) *fakeLuna {
	f := &fakeLuna{
		t:             t,
		jobResponse:   `{"job": 1234}`,
		tagFor:        func(localID string) string { return "tag-" + localID },
		uploadStatus:  func(int) int { return http.StatusOK },
		registrations: make(map[string]int),
	}
	f.registerOK.Store(true)
	return f
}

func (f *fakeLuna) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/create_job/":
		_, _ = io.WriteString(w, f.jobResponse)
	case "/create_metric/":
		if !f.registerOK.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode create_metric: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		localID, _ := req["local_id"].(string)
		f.mu.Lock()
		f.registrations[localID]++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"uniq_id": f.tagFor(localID)})
	case "/upload_metric/":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploadCalls++
		status := f.uploadStatus(f.uploadCalls)
		if status == http.StatusOK {
			f.uploads = append(f.uploads, upload{Query: r.URL.Query().Get("query"), Body: string(body)})
		}
		f.mu.Unlock()
		w.WriteHeader(status)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeLuna) snapshotUploads() []upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upload(nil), f.uploads...)
}

func (f *fakeLuna) registrationCount(localID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registrations[localID]
}

func (f *fakeLuna) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCalls
}

// testConfig returns a config with fast loops and retries pointed at url.
func testConfig(url string) Config {
	return Config{
		Config: backend.Config{
			APIAddress:      url,
			RetryAttempts:   5,
			RetryDelay:      time.Millisecond,
			RetryMaxElapsed: 2 * time.Second,
		},
		RegisterInterval:   10 * time.Millisecond,
		UploadPollInterval: 5 * time.Millisecond,
	}
}

// newTestClient starts a fake backend and a luna client wired to it.
func newTestClient(t *testing.T, f *fakeLuna) (*Client, *fakeJob) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	job := &fakeJob{base: t.TempDir()}
	c, err := New(testConfig(srv.URL), job, "test", nil, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, job
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
