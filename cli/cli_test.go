package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "esdwb/internal/cli"
)

const pairDAX = `<?xml version="1.0" encoding="UTF-8"?>
<adag xmlns="http://pegasus.isi.edu/schema/DAX" name="pair">
  <job id="ID00000" name="mProjectPP" runtime="8.0">
    <uses file="region.hdr" link="input" size="304"/>
  </job>
  <job id="ID00001" name="mAdd" runtime="4.0">
    <uses file="p_ID00000.fits" link="input" size="4167312"/>
  </job>
  <child ref="ID00001">
    <parent ref="ID00000"/>
  </child>
</adag>
`

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

// setupWorkDir writes two sizes of the Montage workflow under dax/.
func setupWorkDir(t *testing.T) string {
	t.Helper()
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "dax", "Montage_2.xml"), []byte(pairDAX))
	writeFile(t, filepath.Join(workDir, "dax", "Montage_4.xml"), readFile(t, filepath.Join("..", "internal", "dax", "testdata", "Montage_4.xml")))
	return workDir
}

func TestDeterministicInvocation_IdenticalRunsIdenticalArtifacts(t *testing.T) {
	workDir := setupWorkDir(t)
	args := func(out string) []string {
		return []string{
			"--workdir", workDir,
			"--output-dir", out,
			"--run-id", "det",
			"dax/Montage_4.xml", "dax/Montage_2.xml",
		}
	}

	res1, err := icl.Run(context.Background(), args("out1"))
	if err != nil {
		t.Fatalf("run1 err: %v", err)
	}
	if res1.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1 exit: %d", res1.ExitCode)
	}
	res2, err := icl.Run(context.Background(), args("out2"))
	if err != nil {
		t.Fatalf("run2 err: %v", err)
	}
	if res2.ExitCode != icl.ExitSuccess {
		t.Fatalf("run2 exit: %d", res2.ExitCode)
	}

	var compared int
	err = filepath.Walk(res1.RunDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || info.Name() == "run.yaml" {
			return err
		}
		rel, _ := filepath.Rel(res1.RunDir, p)
		if string(readFile(t, p)) != string(readFile(t, filepath.Join(res2.RunDir, rel))) {
			t.Fatalf("%s differs across identical runs", rel)
		}
		compared++
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	// Two workflows times two variants times (schedule, ledger), two results
	// and four comparison tables.
	if compared != 14 {
		t.Fatalf("expected 14 artifacts, compared %d", compared)
	}

	violations := string(readFile(t, filepath.Join(res1.RunDir, "reports", "Montage", "deadline-violation.csv")))
	if !strings.HasPrefix(violations, "No. of Tasks,2,4,Violated runs (%)\n") {
		t.Fatalf("expected aggregate column, got:\n%s", violations)
	}

	table := string(readFile(t, filepath.Join(res1.RunDir, "reports", "Montage", "norm-makespan.csv")))
	if !strings.HasPrefix(table, "No. of Tasks,2,4\n") {
		t.Fatalf("expected columns ordered by size, got:\n%s", table)
	}
	if !strings.Contains(table, "\nESDWB,") || !strings.Contains(table, "\nModified-ESDWB,") {
		t.Fatalf("expected one row per variant, got:\n%s", table)
	}
}

func TestPathResolution_RelativePathsResolveAgainstWorkDir(t *testing.T) {
	workDir := setupWorkDir(t)
	otherCwd := t.TempDir()

	oldCwd, _ := os.Getwd()
	_ = os.Chdir(otherCwd)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	writeFile(t, filepath.Join(workDir, "conf", "fast.yaml"), []byte("bandwidth_gbps: 10\n"))
	res, err := icl.Run(context.Background(), []string{
		"--workdir", workDir,
		"--config", "conf/fast.yaml",
		"--output-dir", "out",
		"--run-id", "r",
		"dax/Montage_2.xml",
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	if _, err := os.Stat(filepath.Join(workDir, "out", "r", "run.yaml")); err != nil {
		t.Fatalf("expected manifest under workdir: %v", err)
	}
	manifest := string(readFile(t, filepath.Join(workDir, "out", "r", "run.yaml")))
	if !strings.Contains(manifest, "bandwidth_gbps: 10") {
		t.Fatalf("expected config file to apply, got:\n%s", manifest)
	}
}

func TestExitCodeStability_BrokenWorkflowIsStable(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, "Cyclic_2.xml"), []byte(`<adag>
  <job id="A" runtime="1"/>
  <job id="B" runtime="1"/>
  <child ref="A"><parent ref="B"/></child>
  <child ref="B"><parent ref="A"/></child>
</adag>`))
	args := []string{"--workdir", workDir, "--output-dir", "out", "Cyclic_2.xml"}

	res1, _ := icl.Run(context.Background(), args)
	res2, _ := icl.Run(context.Background(), args)
	if res1.ExitCode != icl.ExitGraphFailure || res2.ExitCode != icl.ExitGraphFailure {
		t.Fatalf("expected stable graph failure exit code; got %d and %d", res1.ExitCode, res2.ExitCode)
	}
}

func TestConfigError_InvalidFileReturnsExit3(t *testing.T) {
	workDir := setupWorkDir(t)
	writeFile(t, filepath.Join(workDir, "bad.yaml"), []byte("beta: 3\n"))
	res, err := icl.Run(context.Background(), []string{
		"--workdir", workDir,
		"--config", "bad.yaml",
		"--output-dir", "out",
		"dax/Montage_2.xml",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.ExitCode != icl.ExitConfigError {
		t.Fatalf("expected exit %d, got %d", icl.ExitConfigError, res.ExitCode)
	}
}

func TestInvalidInvocation_DeterministicAndExplainable(t *testing.T) {
	workDir := t.TempDir()

	args := []string{
		"--workdir", workDir,
		"--output-dir", "out",
	}
	res1, err1 := icl.Run(context.Background(), args)
	res2, err2 := icl.Run(context.Background(), args)

	if res1.ExitCode != icl.ExitInvalidInvocation || res2.ExitCode != icl.ExitInvalidInvocation {
		t.Fatalf("expected exit 2, got %d and %d", res1.ExitCode, res2.ExitCode)
	}
	if err1 == nil || err2 == nil {
		t.Fatalf("expected errors")
	}
	if err1.Error() != err2.Error() {
		t.Fatalf("expected deterministic error message")
	}
}
