package femm

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestScript(t *testing.T) {
	s := NewSession("lua", NewLua("femm", 0))
	buildCoilgun(t, s, 0)
	must(t, s.Doc().SetWireDiameter("Wire", 0.9))

	script := Script(s.Doc(), "scratch/temp3.fem", "scratch/temp3.res")
	for _, want := range []string{
		`mi_probdef(0, "millimeters", "axi", 1e-08, 1, 30)`,
		`mi_modifymaterial("1mm", 0, "Wire")`,
		`mi_modifymaterial("Wire", 13, 0.9)`,
		`mi_addcircprop("Coil", 1, 1)`,
		`mi_makeABC(3, 150, 0, 0, 0)`,
		`mi_setblockprop("Wire", 1, 0, "Coil", 0, 1, 220)`,
		`mi_setblockprop("Projectile", 1, 0, "", 0, 2, 1)`,
		`mi_saveas("scratch/temp3.fem")`,
		`v = mo_blockintegral(2)`,
		`mo_groupselectblock(2)`,
		`v = mo_blockintegral(19)`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestParseResults(t *testing.T) {
	sol, err := ParseResults(strings.NewReader("0 2 0.00125 0\n\n2 19 -3.5 0.001\n"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := sol.BlockIntegral(2, IntegralForceZ)
	if err != nil || got != complex(-3.5, 0.001) {
		t.Errorf("BlockIntegral(2, 19) = %v, %v", got, err)
	}
	if _, err := sol.BlockIntegral(1, IntegralForceZ); !errors.Is(err, ErrNoSolution) {
		t.Errorf("missing integral error = %v, want ErrNoSolution", err)
	}
	if _, err := ParseResults(strings.NewReader("0 2 nope\n")); err == nil {
		t.Error("expected parse error")
	}
}

// fakeFEMM writes an executable that answers every script with fixed integrals.
func fakeFEMM(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	exe := filepath.Join(t.TempDir(), "femm")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return exe
}

func TestLua_SolveAndLoad(t *testing.T) {
	exe := fakeFEMM(t, `script="${1#-lua-script=}"
printf '0 2 0.00125 0\n2 19 -3.5 0\n' > "${script%.lua}.res"
`)
	s := NewSession("lua", NewLua(exe, time.Minute))
	buildCoilgun(t, s, 0)
	path := filepath.Join(t.TempDir(), "temp0.fem")

	l, err := IntegrateInductance(context.Background(), s, "Coil", 5, path)
	if err != nil {
		t.Fatalf("IntegrateInductance() error = %v", err)
	}
	if math.Abs(real(l)-100) > 1e-9 {
		t.Errorf("inductance = %v, want 100", l)
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".fem") + ".lua"); err != nil {
		t.Errorf("script not persisted: %v", err)
	}
}

func TestLua_SolveFailure(t *testing.T) {
	exe := fakeFEMM(t, "echo 'mesh failed' >&2\nexit 3\n")
	s := NewSession("lua", NewLua(exe, time.Minute))
	buildCoilgun(t, s, 0)
	err := s.Analyze(context.Background(), filepath.Join(t.TempDir(), "temp0.fem"))
	if !errors.Is(err, ErrSolve) {
		t.Fatalf("Analyze error = %v, want ErrSolve", err)
	}
	if !strings.Contains(err.Error(), "mesh failed") {
		t.Errorf("error %q does not carry solver output", err)
	}
}
