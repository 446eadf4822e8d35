// Package config loads the scheduler configuration: the planning constants
// and the VM archetype table.
//
// Files are YAML. They are merged in order over the built-in defaults, so a
// file only needs the keys it changes; a vm_types list replaces the default
// table as a whole.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/markphelps/optional"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"

	"esdwb/internal/cloud"
	"esdwb/internal/timing"
)

// VMTypeConfig describes one archetype. Voltages and frequencies are parallel
// lists, one entry per operating point.
type VMTypeConfig struct {
	ID             int       `yaml:"id"`
	CostPerHour    float64   `yaml:"cost_per_hour" validate:"min=0"`
	Voltages       []float64 `yaml:"voltages" validate:"nonzero"`
	FrequenciesGHz []float64 `yaml:"frequencies_ghz" validate:"nonzero"`
}

// Config is the full scheduler configuration.
type Config struct {
	// Alpha widens every task deadline relative to its latest finish time.
	Alpha float64 `yaml:"alpha" validate:"nonzero"`
	// Beta is the share of the cost range granted as surplus, in [0, 1].
	Beta          float64 `yaml:"beta" validate:"min=0,max=1"`
	BandwidthGbps float64 `yaml:"bandwidth_gbps" validate:"nonzero"`

	// ReferenceType is the archetype deadlines are derived from. Nil selects
	// the fastest archetype.
	ReferenceType *int `yaml:"reference_type"`
	// RuntimeReferenceType is the archetype whose top speed converts DAX
	// runtimes into lengths.
	RuntimeReferenceType int `yaml:"runtime_reference_type"`

	EnergyWindow string `yaml:"energy_window"`

	VMTypes []VMTypeConfig `yaml:"vm_types" validate:"nonzero"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Alpha:                1.3,
		Beta:                 0.6,
		BandwidthGbps:        1.0,
		RuntimeReferenceType: 0,
		EnergyWindow:         timing.Clamped.String(),
		VMTypes: []VMTypeConfig{
			{
				ID:             0,
				CostPerHour:    0.0058,
				Voltages:       []float64{1.20, 1.15, 1.10, 1.05, 1.00, 0.90},
				FrequenciesGHz: []float64{1.80, 1.60, 1.40, 1.20, 1.00, 0.80},
			},
			{
				ID:             1,
				CostPerHour:    0.0116,
				Voltages:       []float64{1.30, 1.25, 1.20, 1.15, 1.10, 1.05},
				FrequenciesGHz: []float64{2.60, 2.40, 2.20, 2.00, 1.80, 1.00},
			},
			{
				ID:             2,
				CostPerHour:    0.0230,
				Voltages:       []float64{1.35, 1.17, 1.00, 0.85},
				FrequenciesGHz: []float64{3.00, 2.67, 2.33, 2.00},
			},
		},
	}
}

// ValidationError is returned when a configuration fails struct validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field.
func (e ValidationError) ErrForField(name string) error {
	if errs, ok := e.errorMap[name]; ok && len(errs) > 0 {
		return errs
	}
	return nil
}

// Error lists the failing fields in name order.
func (e ValidationError) Error() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "validation failed")
	fields := make([]string, 0, len(e.errorMap))
	for f := range e.errorMap {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(&w, "\n   %s: %v", f, e.errorMap[f])
	}
	return w.String()
}

// Parse loads the given files in order, merges them into config, and
// validates the merged result.
func Parse(config interface{}, configFiles ...string) error {
	if len(configFiles) == 0 {
		return errors.New("no files to load")
	}
	for _, fname := range configFiles {
		data, err := os.ReadFile(fname)
		if err != nil {
			return errors.Wrapf(err, "reading config %s", fname)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return errors.Wrapf(err, "parsing config %s", fname)
		}
	}
	return validate(config)
}

func validate(config interface{}) error {
	if err := validator.Validate(config); err != nil {
		if m, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: m}
		}
		return err
	}
	return nil
}

// Overrides are command-line values applied on top of the files.
type Overrides struct {
	Alpha     optional.Float64
	Beta      optional.Float64
	Bandwidth optional.Float64
}

// Apply copies the present overrides into c.
func (c *Config) Apply(o Overrides) {
	o.Alpha.If(func(v float64) { c.Alpha = v })
	o.Beta.If(func(v float64) { c.Beta = v })
	o.Bandwidth.If(func(v float64) { c.BandwidthGbps = v })
}

// Load merges files over Default, applies o, and validates the result.
func Load(o Overrides, files ...string) (Config, error) {
	cfg := Default()
	if len(files) > 0 {
		if err := Parse(&cfg, files...); err != nil {
			return Config{}, err
		}
	}
	cfg.Apply(o)
	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check runs the semantic checks struct tags cannot express. All failures
// are reported together.
func (c *Config) Check() error {
	var errs error
	if c.Alpha <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("alpha must be positive, got %v", c.Alpha))
	}
	if c.BandwidthGbps <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("bandwidth_gbps must be positive, got %v", c.BandwidthGbps))
	}
	if _, err := timing.ParseWindowRule(c.EnergyWindow); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.BuildCatalog(); err != nil {
		errs = multierr.Append(errs, err)
		return errs
	}
	if c.ReferenceType != nil && !c.hasType(*c.ReferenceType) {
		errs = multierr.Append(errs, fmt.Errorf("reference_type %d is not a configured vm type", *c.ReferenceType))
	}
	if !c.hasType(c.RuntimeReferenceType) {
		errs = multierr.Append(errs, fmt.Errorf("runtime_reference_type %d is not a configured vm type", c.RuntimeReferenceType))
	}
	return errs
}

func (c *Config) hasType(id int) bool {
	for _, t := range c.VMTypes {
		if t.ID == id {
			return true
		}
	}
	return false
}

// BuildCatalog constructs the archetype catalog in configuration order.
func (c *Config) BuildCatalog() (*cloud.Catalog, error) {
	var (
		types []*cloud.VMType
		errs  error
	)
	for _, t := range c.VMTypes {
		typ, err := cloud.NewVMType(t.ID, t.CostPerHour, t.Voltages, t.FrequenciesGHz)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		types = append(types, typ)
	}
	if errs != nil {
		return nil, errs
	}
	return cloud.NewCatalog(types...)
}

// WindowRule returns the parsed energy window rule.
func (c *Config) WindowRule() timing.WindowRule {
	r, _ := timing.ParseWindowRule(c.EnergyWindow)
	return r
}

// Reference returns the deadline reference archetype, or nil for the fastest.
func (c *Config) Reference(cat *cloud.Catalog) *cloud.VMType {
	if c.ReferenceType == nil {
		return nil
	}
	t, _ := cat.Type(*c.ReferenceType)
	return t
}

// RuntimeSpeed is the top speed (MIPS) used to turn DAX runtimes into lengths.
func (c *Config) RuntimeSpeed(cat *cloud.Catalog) float64 {
	if t, ok := cat.Type(c.RuntimeReferenceType); ok {
		return t.MaxSpeed()
	}
	return cat.Types()[0].MaxSpeed()
}
