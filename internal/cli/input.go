package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/markphelps/optional"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"gopkg.in/alecthomas/kingpin.v2"

	"esdwb/internal/config"
	"esdwb/internal/planner"
)

const (
	ExitSuccess           = 0
	ExitGraphFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitPlanningFailure   = 5
)

// Invocation is the canonical description of one scheduler run.
//
// All paths are cleaned and relative paths are resolved under WorkDir, so
// nothing depends on the process working directory.
type Invocation struct {
	WorkDir     string
	ConfigFiles []string
	DAXPaths    []string
	OutputDir   string
	RunID       string
	Variants    []planner.Variant // empty runs every variant
	Overrides   config.Overrides
	LogLevel    log.Level
	JSONLogs    bool
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// floatValue is a kingpin.Value that records whether the flag was given.
type floatValue struct {
	v *optional.Float64
}

func (f floatValue) Set(s string) error {
	x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", s)
	}
	f.v.Set(x)
	return nil
}

func (f floatValue) String() string {
	x, err := f.v.Get()
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// ParseInvocation parses CLI flags into a canonical Invocation. It never reads
// environment variables.
func ParseInvocation(args []string) (Invocation, error) {
	app := kingpin.New("esdwb", "Budget and deadline aware workflow scheduling with DVFS energy optimization.")
	app.UsageWriter(io.Discard)
	app.ErrorWriter(io.Discard)
	app.Terminate(func(int) {})

	var inv Invocation
	workDir := app.Flag("workdir", "Absolute working directory relative paths are resolved under.").Required().String()
	configFiles := app.Flag("config", "YAML configuration file, merged in order over the defaults. Repeatable.").Short('c').Strings()
	outputDir := app.Flag("output-dir", "Directory run artifacts are written under.").Required().String()
	runID := app.Flag("run-id", "Run id; a fresh one is generated when omitted.").String()
	variants := app.Flag("variant", "Planner variant to run (ESDWB, Modified-ESDWB). Repeatable; all by default.").Strings()
	app.Flag("alpha", "Deadline factor override.").SetValue(floatValue{&inv.Overrides.Alpha})
	app.Flag("beta", "Surplus share override.").SetValue(floatValue{&inv.Overrides.Beta})
	app.Flag("bandwidth", "Link bandwidth override, in Gbit/s.").SetValue(floatValue{&inv.Overrides.Bandwidth})
	logLevel := app.Flag("log-level", "Log level.").Default("info").Enum("debug", "info", "warn", "error")
	jsonLogs := app.Flag("json-logs", "Emit logs as JSON.").Bool()
	daxPaths := app.Arg("dax", "DAX workflow files.").Required().Strings()

	if _, err := app.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}

	wd := filepath.Clean(*workDir)
	if !filepath.IsAbs(wd) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", *workDir)
	}
	inv.WorkDir = wd

	var err error
	if inv.OutputDir, err = resolveUnderWorkDir(wd, *outputDir); err != nil {
		return Invocation{}, err
	}
	for _, p := range *configFiles {
		resolved, err := resolveUnderWorkDir(wd, p)
		if err != nil {
			return Invocation{}, err
		}
		inv.ConfigFiles = append(inv.ConfigFiles, resolved)
	}
	seen := make(map[string]bool, len(*daxPaths))
	for _, p := range *daxPaths {
		resolved, err := resolveUnderWorkDir(wd, p)
		if err != nil {
			return Invocation{}, err
		}
		if seen[resolved] {
			return Invocation{}, invalidInvocationf("dax file %q given twice", p)
		}
		seen[resolved] = true
		inv.DAXPaths = append(inv.DAXPaths, resolved)
	}

	for _, name := range *variants {
		v, err := planner.ParseVariant(name)
		if err != nil {
			return Invocation{}, invalidInvocationf("--variant: %v", err)
		}
		if !slices.Contains(inv.Variants, v) {
			inv.Variants = append(inv.Variants, v)
		}
	}

	inv.RunID = strings.TrimSpace(*runID)
	if strings.ContainsAny(inv.RunID, `/\`) {
		return Invocation{}, invalidInvocationf("--run-id must not contain path separators (got %q)", inv.RunID)
	}
	if inv.LogLevel, err = log.ParseLevel(*logLevel); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	inv.JSONLogs = *jsonLogs
	return inv, nil
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode extracts a semantic exit code from an error returned by this
// package. Unknown errors map to ExitInternalError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
