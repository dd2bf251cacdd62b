package job

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plexsphere/datauploader/internal/client/local"
	"github.com/plexsphere/datauploader/internal/client/luna"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
artifacts_base_dir: /tmp/artifacts
test_start: 1500000000.5
router:
  interval: 500ms
clients:
  - type: luna
    api_address: http://luna.example:8123
    user_agent: loadtest
    retry_attempts: 3
    register_interval: 2s
  - type: local_storage
    separator: ","
`)
	cfg, err := ParseConfig(path)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.ArtifactsBaseDir != "/tmp/artifacts" {
		t.Errorf("ArtifactsBaseDir = %q", cfg.ArtifactsBaseDir)
	}
	if cfg.TestStart != 1500000000.5 {
		t.Errorf("TestStart = %v, want 1500000000.5", cfg.TestStart)
	}
	if cfg.Router.Interval != 500*time.Millisecond {
		t.Errorf("Router.Interval = %v, want 500ms", cfg.Router.Interval)
	}
	if len(cfg.Clients) != 2 {
		t.Fatalf("len(Clients) = %d, want 2", len(cfg.Clients))
	}

	l := cfg.Clients[0]
	if l.Type != luna.Name {
		t.Errorf("Clients[0].Type = %q", l.Type)
	}
	if l.Luna.APIAddress != "http://luna.example:8123" {
		t.Errorf("APIAddress = %q", l.Luna.APIAddress)
	}
	if l.Luna.UserAgent != "loadtest" {
		t.Errorf("UserAgent = %q", l.Luna.UserAgent)
	}
	if l.Luna.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", l.Luna.RetryAttempts)
	}
	if l.Luna.RegisterInterval != 2*time.Second {
		t.Errorf("RegisterInterval = %v, want 2s", l.Luna.RegisterInterval)
	}
	if l.Luna.UploadPollInterval != luna.DefaultUploadPollInterval {
		t.Errorf("UploadPollInterval = %v, want default", l.Luna.UploadPollInterval)
	}
	if l.Luna.DBName != "luna" {
		t.Errorf("DBName = %q, want luna", l.Luna.DBName)
	}

	s := cfg.Clients[1]
	if s.Type != local.Name {
		t.Errorf("Clients[1].Type = %q", s.Type)
	}
	if s.Local.Separator != "," {
		t.Errorf("Separator = %q, want ,", s.Local.Separator)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(writeConfig(t, "clients: []\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.ArtifactsBaseDir != DefaultArtifactsBaseDir {
		t.Errorf("ArtifactsBaseDir = %q, want %q", cfg.ArtifactsBaseDir, DefaultArtifactsBaseDir)
	}
	if cfg.Router.Interval != time.Second {
		t.Errorf("Router.Interval = %v, want 1s", cfg.Router.Interval)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown client type",
			content: "clients:\n  - type: kafka\n",
			wantErr: "unknown client type",
		},
		{
			name:    "luna without api address",
			content: "clients:\n  - type: luna\n",
			wantErr: "APIAddress is required",
		},
		{
			name:    "multi-character separator",
			content: "clients:\n  - type: local_storage\n    separator: ab\n",
			wantErr: "Separator",
		},
		{
			name:    "negative test start",
			content: "test_start: -1\n",
			wantErr: "TestStart",
		},
		{
			name:    "invalid yaml",
			content: "clients: [\n",
			wantErr: "parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("ParseConfig() = nil error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseConfig_UnknownClientSentinel(t *testing.T) {
	_, err := ParseConfig(writeConfig(t, "clients:\n  - type: kafka\n"))
	if !errors.Is(err, ErrUnknownClient) {
		t.Errorf("error = %v, want ErrUnknownClient", err)
	}
}

func TestParseConfig_MissingFile(t *testing.T) {
	_, err := ParseConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("ParseConfig() = nil error for missing file")
	}
}
