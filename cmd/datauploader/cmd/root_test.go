package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{})

	_ = rootCmd.Execute()

	output := buf.String()
	if !strings.Contains(output, "datauploader") {
		t.Errorf("help output should contain 'datauploader', got: %s", output)
	}
	if !strings.Contains(output, "upload") {
		t.Errorf("help output should list the upload command, got: %s", output)
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2025-01-01")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--version"})

	_ = rootCmd.Execute()

	output := buf.String()
	for _, want := range []string{"1.2.3", "abc123", "2025-01-01"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

func TestKindsCommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"kinds"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("kinds: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"event",
		"ts:int64 value:str",
		"distribution",
		"ts:int64 l:int64 r:int64 cnt:int64",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("kinds output should contain %q, got: %s", want, output)
		}
	}
}
