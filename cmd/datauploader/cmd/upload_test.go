package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestUploadCommand_LocalStorage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "logs")
	config := writeFile(t, dir, "config.yaml",
		"artifacts_base_dir: "+base+"\n"+
			"router:\n  interval: 10ms\n"+
			"clients:\n  - type: local_storage\n")
	input := writeFile(t, dir, "events.tsv", "ts\tvalue\n100\tstart\n200\tstop\n")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{
		"upload", "--config", config, "--log-level", "error",
		"--type", "event", "--name", "phase", input,
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("upload: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "2 rows as event") {
		t.Errorf("output = %q", buf.String())
	}

	files, err := filepath.Glob(filepath.Join(base, "job_*", "metric_*.data"))
	if err != nil || len(files) != 1 {
		t.Fatalf("artifact files = %v (%v), want 1", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 || lines[1] != "100\tstart" || lines[2] != "200\tstop" {
		t.Errorf("artifact lines = %q", lines)
	}
}

func TestUploadCommand_UnknownKind(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "config.yaml", "artifacts_base_dir: "+dir+"\nclients: []\n")
	input := writeFile(t, dir, "in.tsv", "ts\tvalue\n1\t2\n")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"upload", "--config", config, "--log-level", "error", "--type", "gauge", input})

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("upload error = %v, want unknown kind", err)
	}
}

func TestUploadCommand_MissingConfig(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"upload", "--config", filepath.Join(t.TempDir(), "nope.yaml")})

	if err := rootCmd.Execute(); err == nil {
		t.Error("upload with missing config = nil error")
	}
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		if setupLogger(level) == nil {
			t.Errorf("setupLogger(%q) = nil", level)
		}
	}
}
