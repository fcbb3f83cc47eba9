/*
PURPOSE:
  In-process solver backend. Replaces the finite-element mesh with closed-form
  magnetics so sweeps run without an external FEMM installation.

REQUIREMENTS:
  User-specified:
  - Honour the persist -> solve -> load contract of every backend.
  - Answer the energy integral over all blocks and the axial force on a group.

  Implementation-discovered:
  - Air-core inductance uses Wheeler's multi-layer formula on the excited block.
  - A magnetic block raises inductance in proportion to its overlap with the
    winding, smoothed with tanh fringes of one mean radius.
  - The block's permeability comes from the material catalog and is reduced
    by the demagnetising factor of its aspect ratio.
  - Force follows co-energy: F = I^2/2 * dL/dz, taken by central difference.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (backend "analytic")
  - Dependencies: internal/material (permeability lookup)

ERROR HANDLING:
  - File errors are returned as-is; Session wraps them with ErrSolve.
  - Integrals the solution does not hold wrap ErrNoSolution.

IMPLEMENTATION RULES:
  - The persisted problem is a JSON snapshot of the Document.
  - The solution file sits next to it with an ".ans" suffix.

USAGE:
  solver := femm.NewAnalytic(catalog)
  s := femm.NewSession(runID, solver)

RELATED FILES:
  - internal/femm/session.go
  - internal/femm/lua.go
  - internal/material/catalog.go

MAINTENANCE:
  - Keep the integral set in sync with IntegralType.
*/

package femm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/daryltucker/coilgun-sim/internal/material"
)

const (
	mmPerInch = 25.4
	// forceStep is the body displacement (mm) of the force finite difference.
	forceStep = 1e-3
)

var unitScale = map[string]float64{
	"":            1,
	"millimeters": 1,
	"centimeters": 10,
	"meters":      1000,
	"inches":      mmPerInch,
}

// Analytic is the closed-form backend.
type Analytic struct {
	catalog *material.Catalog
}

// NewAnalytic returns a backend that takes permeabilities from catalog.
func NewAnalytic(catalog *material.Catalog) *Analytic {
	if catalog == nil {
		catalog = material.Builtin()
	}
	return &Analytic{catalog: catalog}
}

// HasMaterial accepts catalog entries and the wire library keys ("1mm", ...).
func (a *Analytic) HasMaterial(name string) bool {
	if _, err := a.catalog.Lookup(name); err == nil {
		return true
	}
	gauge, ok := strings.CutSuffix(name, "mm")
	if !ok {
		return false
	}
	d, err := strconv.ParseFloat(gauge, 64)
	return err == nil && d > 0
}

func (a *Analytic) Persist(doc *Document, path string) error {
	return writeJSON(path, doc.Clone())
}

func (a *Analytic) Save(doc *Document, path string) error {
	return a.Persist(doc, path)
}

func (a *Analytic) Solve(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("read problem %s: %w", path, err)
	}
	sol, err := a.solve(&doc)
	if err != nil {
		return err
	}
	return writeJSON(path+".ans", sol)
}

func (a *Analytic) Load(path string) (Solution, error) {
	data, err := os.ReadFile(path + ".ans")
	if err != nil {
		return nil, err
	}
	var sol tableSolution
	if err := json.Unmarshal(data, &sol); err != nil {
		return nil, fmt.Errorf("read solution %s.ans: %w", path, err)
	}
	return &sol, nil
}

func (a *Analytic) Close() error { return nil }

type winding struct {
	r1, r2, z0, z1 float64 // mm
	turns          float64
	amps           float64
}

type body struct {
	group  int
	radius float64 // mm
	z0, z1 float64
	mu     float64
}

func (a *Analytic) solve(doc *Document) (*tableSolution, error) {
	scale, ok := unitScale[doc.Problem.Units]
	if !ok {
		return nil, fmt.Errorf("unsupported length unit %q", doc.Problem.Units)
	}

	var coil *winding
	var bodies []body
	for _, l := range doc.Labels {
		lo, hi, ok := doc.GroupBounds(l.Group)
		if !ok || l.Group == AllGroups {
			continue
		}
		lo.X, lo.Y, hi.X, hi.Y = lo.X*scale, lo.Y*scale, hi.X*scale, hi.Y*scale
		if l.Circuit != "" && coil == nil {
			c, _ := doc.Circuit(l.Circuit)
			coil = &winding{r1: lo.X, r2: hi.X, z0: lo.Y, z1: hi.Y, turns: float64(l.Turns), amps: c.Amps}
			continue
		}
		if mu := a.permeability(doc, l.Material); mu > 1 {
			bodies = append(bodies, body{group: l.Group, radius: hi.X, z0: lo.Y, z1: hi.Y, mu: mu})
		}
	}

	sol := &tableSolution{}
	if coil == nil {
		sol.set(AllGroups, IntegralEnergy, 0)
		return sol, nil
	}

	i2 := coil.amps * coil.amps
	sol.set(AllGroups, IntegralEnergy, 0.5*inductance(coil, bodies)*i2)
	total := 0.0
	for k, b := range bodies {
		moved := append([]body(nil), bodies...)
		moved[k].z0, moved[k].z1 = b.z0+forceStep, b.z1+forceStep
		up := inductance(coil, moved)
		moved[k].z0, moved[k].z1 = b.z0-forceStep, b.z1-forceStep
		down := inductance(coil, moved)
		dLdz := (up - down) / (2 * forceStep * 1e-3) // H/m
		f := 0.5 * i2 * dLdz
		sol.set(b.group, IntegralForceZ, f)
		total += f
	}
	sol.set(AllGroups, IntegralForceZ, total)
	return sol, nil
}

func (a *Analytic) permeability(doc *Document, alias string) float64 {
	m, ok := doc.Material(alias)
	if !ok {
		return 1
	}
	entry, err := a.catalog.Lookup(m.Source)
	if err != nil {
		return 1
	}
	return entry.Permeability
}

// inductance returns the coil inductance in henries with the given bodies.
func inductance(c *winding, bodies []body) float64 {
	mean := (c.r1 + c.r2) / 2
	length := c.z1 - c.z0
	depth := c.r2 - c.r1
	a, l, d := mean/mmPerInch, length/mmPerInch, depth/mmPerInch
	air := 0.8 * a * a * c.turns * c.turns / (6*a + 9*l + 10*d) * 1e-6

	gain := 1.0
	centre := (c.z0 + c.z1) / 2
	for _, b := range bodies {
		lb := b.z1 - b.z0
		demag := 1 / (1 + lb/(2*b.radius))
		mu := b.mu / (1 + demag*(b.mu-1))
		fill := math.Min(1, (b.radius/mean)*(b.radius/mean))
		gain += fill * (mu - 1) * overlap(b.z0-centre, b.z1-centre, length, mean)
	}
	return air * gain
}

// overlap is the fraction of the shorter of winding and body that lies
// inside the winding, with fringes of width soft.
func overlap(z0, z1, length, soft float64) float64 {
	f := func(s float64) float64 { return soft * logCosh(s/soft) }
	h := length / 2
	in := 0.5 * (f(z1+h) - f(z0+h) - f(z1-h) + f(z0-h))
	w := in / math.Min(length, z1-z0)
	return math.Max(0, math.Min(1, w))
}

func logCosh(x float64) float64 {
	x = math.Abs(x)
	return x + math.Log1p(math.Exp(-2*x)) - math.Ln2
}

type integral struct {
	Group int          `json:"group"`
	Type  IntegralType `json:"type"`
	Re    float64      `json:"re"`
	Im    float64      `json:"im"`
}

// tableSolution is a solution read back from a list of integrals.
type tableSolution struct {
	Integrals []integral `json:"integrals"`
}

func (s *tableSolution) set(group int, t IntegralType, v float64) {
	s.Integrals = append(s.Integrals, integral{Group: group, Type: t, Re: v})
}

func (s *tableSolution) BlockIntegral(group int, t IntegralType) (complex128, error) {
	for _, in := range s.Integrals {
		if in.Group == group && in.Type == t {
			return complex(in.Re, in.Im), nil
		}
	}
	return 0, fmt.Errorf("%w: integral %d over group %d", ErrNoSolution, t, group)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
