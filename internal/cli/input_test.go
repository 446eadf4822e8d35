package cli

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"

	"esdwb/internal/planner"
)

func TestParseInvocation_ResolvesRelativePathsUnderWorkDir(t *testing.T) {
	workDir := t.TempDir()
	args := []string{
		"--workdir", workDir,
		"--config", "conf/base.yaml",
		"-c", "/etc/esdwb/extra.yaml",
		"--output-dir", "out",
		"dax/Montage_25.xml", "dax/Sipht_30.xml",
	}
	inv, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantConfig := []string{filepath.Join(workDir, "conf", "base.yaml"), "/etc/esdwb/extra.yaml"}
	if !reflect.DeepEqual(inv.ConfigFiles, wantConfig) {
		t.Fatalf("config files: got %q, want %q", inv.ConfigFiles, wantConfig)
	}
	wantDAX := []string{filepath.Join(workDir, "dax", "Montage_25.xml"), filepath.Join(workDir, "dax", "Sipht_30.xml")}
	if !reflect.DeepEqual(inv.DAXPaths, wantDAX) {
		t.Fatalf("dax paths: got %q, want %q", inv.DAXPaths, wantDAX)
	}
	if inv.OutputDir != filepath.Join(workDir, "out") {
		t.Fatalf("expected output under workdir, got %q", inv.OutputDir)
	}
	if inv.LogLevel != log.InfoLevel {
		t.Fatalf("expected info level by default, got %v", inv.LogLevel)
	}
	if inv.Overrides.Alpha.Present() || inv.Overrides.Beta.Present() || inv.Overrides.Bandwidth.Present() {
		t.Fatalf("expected no overrides, got %#v", inv.Overrides)
	}
}

func TestParseInvocation_Overrides(t *testing.T) {
	inv, err := ParseInvocation([]string{
		"--workdir", t.TempDir(),
		"--output-dir", "out",
		"--alpha", "1.5",
		"--bandwidth", "10",
		"--run-id", "r1",
		"--log-level", "debug",
		"--json-logs",
		"w_3.xml",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inv.Overrides.Alpha.OrElse(0); got != 1.5 {
		t.Fatalf("alpha: got %v", got)
	}
	if inv.Overrides.Beta.Present() {
		t.Fatalf("beta must stay unset")
	}
	if got := inv.Overrides.Bandwidth.OrElse(0); got != 10 {
		t.Fatalf("bandwidth: got %v", got)
	}
	if inv.RunID != "r1" || inv.LogLevel != log.DebugLevel || !inv.JSONLogs {
		t.Fatalf("unexpected invocation: %#v", inv)
	}
}

func TestParseInvocation_Variants(t *testing.T) {
	wd := t.TempDir()
	inv, err := ParseInvocation([]string{"--workdir", wd, "--output-dir", "o", "a.xml"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.Variants) != 0 {
		t.Fatalf("expected every variant by default, got %v", inv.Variants)
	}

	inv, err = ParseInvocation([]string{
		"--workdir", wd, "--output-dir", "o",
		"--variant", "modified-esdwb", "--variant", "ESDWB", "--variant", "Modified-ESDWB",
		"a.xml",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []planner.Variant{planner.ModifiedESDWB, planner.ESDWB}
	if !reflect.DeepEqual(inv.Variants, want) {
		t.Fatalf("variants: got %v, want %v", inv.Variants, want)
	}
}

func TestParseInvocation_IgnoresEnvironmentVariables(t *testing.T) {
	args := []string{"--workdir", t.TempDir(), "--output-dir", "out", "a_1.xml"}

	inv1, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("ESDWB_ALPHA", "9")
	t.Setenv("DEBUG", "1")

	inv2, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(inv1, inv2) {
		t.Fatalf("expected env vars to not affect parsing, got\n%#v\n%#v", inv1, inv2)
	}
}

func TestParseInvocation_Rejects(t *testing.T) {
	wd := t.TempDir()
	cases := map[string][]string{
		"missing workdir":  {"--output-dir", "o", "a.xml"},
		"relative workdir": {"--workdir", "relative", "--output-dir", "o", "a.xml"},
		"missing output":   {"--workdir", wd, "a.xml"},
		"missing dax":      {"--workdir", wd, "--output-dir", "o"},
		"bad alpha":        {"--workdir", wd, "--output-dir", "o", "--alpha", "x", "a.xml"},
		"bad level":        {"--workdir", wd, "--output-dir", "o", "--log-level", "loud", "a.xml"},
		"unknown flag":     {"--workdir", wd, "--output-dir", "o", "--mode", "clean", "a.xml"},
		"duplicate dax":    {"--workdir", wd, "--output-dir", "o", "a.xml", filepath.Join(wd, "a.xml")},
		"run id with path": {"--workdir", wd, "--output-dir", "o", "--run-id", "a/b", "a.xml"},
		"unknown variant":  {"--workdir", wd, "--output-dir", "o", "--variant", "heft", "a.xml"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInvocation(args)
			if err == nil {
				t.Fatalf("expected error")
			}
			if ExitCode(err) != ExitInvalidInvocation {
				t.Fatalf("expected exit code %d, got %d (%v)", ExitInvalidInvocation, ExitCode(err), err)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitSuccess {
		t.Fatalf("nil: got %d", got)
	}
	if got := ExitCode(&InvocationError{ExitCode: ExitGraphFailure}); got != ExitGraphFailure {
		t.Fatalf("graph failure: got %d", got)
	}
	if got := ExitCode(&InvocationError{}); got != ExitInvalidInvocation {
		t.Fatalf("zero code: got %d", got)
	}
	if got := ExitCode(errors.New("boom")); got != ExitInternalError {
		t.Fatalf("unknown: got %d", got)
	}
}
