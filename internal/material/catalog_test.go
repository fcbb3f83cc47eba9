package material

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinLookup(t *testing.T) {
	c := Builtin()
	m, err := c.Lookup("M-50")
	if err != nil {
		t.Fatalf("Lookup(M-50) error: %v", err)
	}
	if m.Density != 7.85 {
		t.Errorf("density = %v, want 7.85", m.Density)
	}

	if _, err := c.Lookup("Unobtainium"); !errors.Is(err, ErrUnknown) {
		t.Errorf("Lookup(Unobtainium) = %v, want ErrUnknown", err)
	}
}

func TestLoad_OverridesAndAdds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "materials.ini")
	data := `
[M-50]
density = 8.0

[Cobalt Steel]
density = 8.1
permeability = 2500
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	m, _ := c.Lookup("M-50")
	if m.Density != 8.0 {
		t.Errorf("M-50 density = %v, want 8.0", m.Density)
	}
	if m.Permeability != 5000 {
		t.Errorf("M-50 permeability = %v, want builtin 5000", m.Permeability)
	}

	cs, err := c.Lookup("Cobalt Steel")
	if err != nil {
		t.Fatalf("Lookup(Cobalt Steel) error: %v", err)
	}
	if cs.Permeability != 2500 {
		t.Errorf("Cobalt Steel permeability = %v, want 2500", cs.Permeability)
	}
}

func TestLoad_RejectsBadDensity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ini")
	if err := os.WriteFile(path, []byte("[Foam]\ndensity = -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted a negative density")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
		t.Error("Load() of a missing file returned nil error")
	}
}
