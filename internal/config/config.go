/*
PURPOSE:
  Defines the configuration structure and loading logic for Coilgun Sim.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure the permutation sweep (ranges, steps, enumerated wire sizes and diameters).
  - Configure the sweep physics (drive currents, thresholds, step count).
  - Configure concurrency, output location and the solver backend.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Invalid sweeps must be rejected before any solver session exists.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/variant
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Validate() wraps ErrInvalidConfig.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults reproduce the historical sweep.

USAGE:
  cfg, err := config.Load("coilgun.yaml")
  if err := cfg.Validate(); err != nil { ... }

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig() and Validate().

RELATED FILES:
  - internal/cli/root.go
  - internal/variant/generator.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daryltucker/coilgun-sim/internal/model"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the full configuration for Coilgun Sim.
type Config struct {
	OutputDir     string        `yaml:"output_dir"`
	ScratchDir    string        `yaml:"scratch_dir"`
	Workers       int           `yaml:"workers"`
	QueueFactor   int           `yaml:"queue_factor"` // pending jobs allowed per worker
	MaxRetries    int           `yaml:"max_retries"`  // extra attempts after a failed run
	RetryDelay    time.Duration `yaml:"retry_delay"`
	StartIndex    int           `yaml:"start_index"` // resume from variant N
	LogLevel      string        `yaml:"log_level"`
	LedgerPath    string        `yaml:"ledger_path"` // "" disables the ledger
	ProgressAddr  string        `yaml:"progress_addr"`
	MaterialsFile string        `yaml:"materials_file"`

	Solver       SolverConfig      `yaml:"solver"`
	Sweep        SweepConfig       `yaml:"sweep"`
	Permutations PermutationConfig `yaml:"permutations"`

	// Defaults fills every design field the permutation sweep does not vary.
	Defaults model.Params `yaml:"defaults"`
}

// SolverConfig selects the field-solver backend.
type SolverConfig struct {
	Backend  string        `yaml:"backend"`   // "analytic" or "femm"
	FEMMPath string        `yaml:"femm_path"` // FEMM executable for the femm backend
	Timeout  time.Duration `yaml:"timeout"`   // per solve
}

// SweepConfig controls the inductance and force sweeps of one run.
type SweepConfig struct {
	Currents            []float64 `yaml:"currents"`             // A, ascending
	ReferenceCurrent    float64   `yaml:"reference_current"`    // A, for inductance
	InductanceThreshold float64   `yaml:"inductance_threshold"` // uH
	ForceThreshold      float64   `yaml:"force_threshold"`      // N
	MaxSteps            int       `yaml:"max_steps"`
	StepSize            float64   `yaml:"step_size"` // mm

	// ExtendPastConvergence keeps the force sweep going past the last
	// inductance step (up to MaxSteps) until the force early exit fires.
	ExtendPastConvergence bool `yaml:"extend_past_convergence"`
}

// PermutationConfig describes the Cartesian design sweep.
type PermutationConfig struct {
	BoreWallThickness float64 `yaml:"bore_wall_thickness"`

	CoilLengthStep  float64   `yaml:"coil_length_step"`
	CoilLengthRange []float64 `yaml:"coil_length_range"`

	CoilTurnStep  int   `yaml:"coil_turn_step"`
	CoilTurnRange []int `yaml:"coil_turn_range"`

	CoilWireSizes []float64 `yaml:"coil_wire_sizes"`

	ProjectileLengthStep  float64   `yaml:"projectile_length_step"`
	ProjectileLengthRange []float64 `yaml:"projectile_length_range"`
	ProjectileDiameters   []float64 `yaml:"projectile_diameters"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   "Data",
		ScratchDir:  "scratch",
		Workers:     20,
		QueueFactor: 2,
		MaxRetries:  0,
		RetryDelay:  2 * time.Second,
		LogLevel:    "info",
		LedgerPath:  "Data/ledger.db",
		Solver: SolverConfig{
			Backend:  "analytic",
			FEMMPath: "femm",
			Timeout:  10 * time.Minute,
		},
		Sweep: SweepConfig{
			Currents:            []float64{10, 100, 1000},
			ReferenceCurrent:    5,
			InductanceThreshold: 0.25,
			ForceThreshold:      0.1,
			MaxSteps:            100,
			StepSize:            1,
		},
		Permutations: PermutationConfig{
			BoreWallThickness:     1.0,
			CoilLengthStep:        5.0,
			CoilLengthRange:       []float64{15, 70},
			CoilTurnStep:          10,
			CoilTurnRange:         []int{50, 300},
			CoilWireSizes:         []float64{0.5, 0.9, 1.2},
			ProjectileLengthStep:  5,
			ProjectileLengthRange: []float64{20, 75},
			ProjectileDiameters:   []float64{4.5, 5.5, 8.0, 10.0},
		},
		Defaults: model.DefaultParams(),
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"coilgun.yaml", "coilgun_sim.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations that would produce meaningless sweeps.
// A range whose end does not exceed its start is valid and yields no variants.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return invalid("workers must be >= 1, got %d", c.Workers)
	}
	if c.QueueFactor < 1 {
		return invalid("queue_factor must be >= 1, got %d", c.QueueFactor)
	}
	if c.MaxRetries < 0 {
		return invalid("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.StartIndex < 0 {
		return invalid("start_index must be >= 0, got %d", c.StartIndex)
	}
	if c.OutputDir == "" || c.ScratchDir == "" {
		return invalid("output_dir and scratch_dir must be set")
	}
	switch c.Solver.Backend {
	case "analytic", "femm":
	default:
		return invalid("unknown solver backend %q", c.Solver.Backend)
	}
	if err := c.Sweep.validate(); err != nil {
		return err
	}
	return c.Permutations.validate()
}

func (s SweepConfig) validate() error {
	if len(s.Currents) == 0 {
		return invalid("sweep.currents must not be empty")
	}
	for i, a := range s.Currents {
		if !(a > 0) {
			return invalid("sweep.currents[%d] must be > 0, got %g", i, a)
		}
		if i > 0 && a <= s.Currents[i-1] {
			return invalid("sweep.currents must be strictly ascending")
		}
	}
	if !(s.ReferenceCurrent > 0) {
		return invalid("sweep.reference_current must be > 0")
	}
	if !(s.InductanceThreshold > 0) || !(s.ForceThreshold > 0) {
		return invalid("sweep thresholds must be > 0")
	}
	if s.MaxSteps < 1 {
		return invalid("sweep.max_steps must be >= 1")
	}
	if !(s.StepSize > 0) {
		return invalid("sweep.step_size must be > 0")
	}
	return nil
}

func (p PermutationConfig) validate() error {
	if !(p.BoreWallThickness > 0) {
		return invalid("permutations.bore_wall_thickness must be > 0")
	}
	if len(p.CoilLengthRange) != 2 || len(p.ProjectileLengthRange) != 2 || len(p.CoilTurnRange) != 2 {
		return invalid("permutation ranges must have exactly two values {start, end}")
	}
	if !(p.CoilLengthStep > 0) || !(p.ProjectileLengthStep > 0) || p.CoilTurnStep <= 0 {
		return invalid("permutation steps must be > 0")
	}
	if len(p.CoilWireSizes) == 0 || len(p.ProjectileDiameters) == 0 {
		return invalid("coil_wire_sizes and projectile_diameters must not be empty")
	}
	for _, w := range p.CoilWireSizes {
		if !(w > 0) {
			return invalid("coil wire size must be > 0, got %g", w)
		}
	}
	for _, d := range p.ProjectileDiameters {
		if !(d > 0) {
			return invalid("projectile diameter must be > 0, got %g", d)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
