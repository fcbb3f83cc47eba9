package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coilgun.yaml")
	data := `
workers: 4
retry_delay: 5s
sweep:
  currents: [50, 500]
permutations:
  coil_wire_sizes: [0.8]
defaults:
  projectile_material: Mu Metal
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.RetryDelay != 5*time.Second {
		t.Errorf("RetryDelay = %v, want 5s", cfg.RetryDelay)
	}
	if len(cfg.Sweep.Currents) != 2 || cfg.Sweep.Currents[1] != 500 {
		t.Errorf("Currents = %v, want [50 500]", cfg.Sweep.Currents)
	}
	if cfg.Sweep.ReferenceCurrent != 5 {
		t.Errorf("ReferenceCurrent = %v, want default 5", cfg.Sweep.ReferenceCurrent)
	}
	if cfg.Defaults.ProjectileMaterial != "Mu Metal" {
		t.Errorf("ProjectileMaterial = %q, want Mu Metal", cfg.Defaults.ProjectileMaterial)
	}
	if cfg.Defaults.BoundaryRadius != 150 {
		t.Errorf("BoundaryRadius = %v, want default 150", cfg.Defaults.BoundaryRadius)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty range is allowed", func(c *Config) { c.Permutations.CoilLengthRange = []float64{70, 15} }, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero step", func(c *Config) { c.Permutations.CoilLengthStep = 0 }, true},
		{"negative turn step", func(c *Config) { c.Permutations.CoilTurnStep = -10 }, true},
		{"short range", func(c *Config) { c.Permutations.ProjectileLengthRange = []float64{20} }, true},
		{"no wire sizes", func(c *Config) { c.Permutations.CoilWireSizes = nil }, true},
		{"descending currents", func(c *Config) { c.Sweep.Currents = []float64{100, 10} }, true},
		{"no currents", func(c *Config) { c.Sweep.Currents = nil }, true},
		{"unknown backend", func(c *Config) { c.Solver.Backend = "comsol" }, true},
		{"zero bore wall", func(c *Config) { c.Permutations.BoreWallThickness = 0 }, true},
		{"zero max steps", func(c *Config) { c.Sweep.MaxSteps = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
