/*
PURPOSE:
  Defines the coilgun design variant (Params) and every quantity derived from it:
  coil inner diameter, turns per layer, layer count, coil height, wire length,
  wire resistance and projectile mass.

REQUIREMENTS:
  User-specified:
  - One immutable value per design variant; derived values are pure functions.
  - Non-integral layer counts are allowed (a partially wound last layer).

  Implementation-discovered:
  - Invalid geometry must be rejected before it reaches the solver, otherwise the
    formulas silently produce NaN/Inf (division by wire diameter / turns per layer).

ARCHITECTURE INTEGRATION:
  - Produced by: internal/variant, internal/cli (single mode)
  - Used by: internal/engine, internal/output

ERROR HANDLING:
  - Validate() returns *ParamError wrapping ErrInvalidParams.

IMPLEMENTATION RULES:
  - Lengths are millimetres, density is g/cm^3, wire length is metres, resistance is ohms.
  - Params is passed by value and never mutated after construction.

USAGE:
  p := model.DefaultParams()
  p.CoilLength = 45
  if err := p.Validate(); err != nil { ... }
  h := p.CoilHeight()

RELATED FILES:
  - internal/model/result.go
  - internal/model/naming.go

MAINTENANCE:
  - New geometry fields need a Validate() rule and, if swept, a name component.
*/

package model

import (
	"math"
)

// CopperResistivity is the resistivity of annealed copper at 20°C in ohm-metres.
const CopperResistivity = 1.68e-8

// Shape is the projectile profile.
type Shape int

const (
	ShapeCylinder Shape = iota
	ShapeBall
	ShapeAngled45
)

func (s Shape) String() string {
	switch s {
	case ShapeCylinder:
		return "cylinder"
	case ShapeBall:
		return "ball"
	case ShapeAngled45:
		return "angled45"
	default:
		return "unknown"
	}
}

// Params describes one coilgun design variant.
type Params struct {
	// Open boundary
	BoundaryLayers int     `json:"BoundaryLayers" yaml:"boundary_layers"`
	BoundaryRadius float64 `json:"BoundaryRadius" yaml:"boundary_radius"`

	// Coil
	CoilLength        float64 `json:"CoilLength" yaml:"coil_length"`
	WireDiameter      float64 `json:"WireDiameter" yaml:"wire_diameter"`
	Turns             int     `json:"Turns" yaml:"turns"`
	PackingFactor     float64 `json:"PackingFactor" yaml:"packing_factor"`
	ShellThickness    float64 `json:"ShellThickness" yaml:"shell_thickness"` // not modelled yet
	BoreWallThickness float64 `json:"BoreWallThickness" yaml:"bore_wall_thickness"`

	// Projectile
	ProjectileDiameter float64 `json:"ProjectileDiameter" yaml:"projectile_diameter"`
	ProjectileLength   float64 `json:"ProjectileLength" yaml:"projectile_length"`
	ProjectileMaterial string  `json:"ProjectileMaterial" yaml:"projectile_material"`
	ProjectileDensity  float64 `json:"ProjectileDensity" yaml:"projectile_density"`
	ProjectileShape    Shape   `json:"ProjectileShape" yaml:"projectile_shape"`
	HoleDiameter       float64 `json:"HoleDiameter" yaml:"hole_diameter"`
	HoleLength         float64 `json:"HoleLength" yaml:"hole_length"`
}

// DefaultParams returns the reference single-run design.
func DefaultParams() Params {
	return Params{
		BoundaryLayers:     3,
		BoundaryRadius:     150,
		CoilLength:         50,
		WireDiameter:       0.9,
		Turns:              220,
		PackingFactor:      1.1,
		BoreWallThickness:  1,
		ProjectileDiameter: 4.5,
		ProjectileLength:   35,
		ProjectileMaterial: "M-50",
		ProjectileDensity:  7.85,
		ProjectileShape:    ShapeCylinder,
	}
}

// CoilInnerDiameter is the projectile diameter plus the bore wall on both sides.
func (p Params) CoilInnerDiameter() float64 {
	return p.ProjectileDiameter + 2*p.BoreWallThickness
}

// CoilTurnsPerLayer is how many wire turns fit along the coil length.
func (p Params) CoilTurnsPerLayer() float64 {
	return p.CoilLength / p.WireDiameter
}

// CoilLayers is the (possibly fractional) number of wire layers.
func (p Params) CoilLayers() float64 {
	return float64(p.Turns) / p.CoilTurnsPerLayer()
}

// CoilHeight is the radial build of the winding.
func (p Params) CoilHeight() float64 {
	return p.CoilLayers() * p.WireDiameter * p.PackingFactor
}

// CoilOuterDiameter follows the winding build convention used for the coil cross-section.
func (p Params) CoilOuterDiameter() float64 {
	return p.CoilInnerDiameter() + p.CoilHeight()
}

// CoilWireLength returns the wire length in metres.
func (p Params) CoilWireLength() float64 {
	perLayer := p.CoilTurnsPerLayer()
	layers := p.CoilLayers()
	full := math.Floor(layers)
	pitch := p.WireDiameter * p.PackingFactor
	innerRadius := p.CoilInnerDiameter() / 2

	var mm float64
	for k := 0; k < int(full); k++ {
		r := innerRadius + (float64(k)+0.5)*pitch
		mm += perLayer * 2 * math.Pi * r
	}
	if frac := layers - full; frac > 0 {
		r := innerRadius + (full+0.5)*pitch
		mm += frac * perLayer * 2 * math.Pi * r
	}
	return mm / 1000
}

// CoilWireResistance returns the DC resistance of the winding in ohms.
func (p Params) CoilWireResistance() float64 {
	radius := p.WireDiameter / 2 / 1000
	area := math.Pi * radius * radius
	return CopperResistivity * p.CoilWireLength() / area
}

// ProjectileVolume returns the projectile volume in cm^3.
func (p Params) ProjectileVolume() float64 {
	radius := p.ProjectileDiameter / 2
	return math.Pi * radius * radius * p.ProjectileLength / 1000
}

// ProjectileMass returns the projectile mass in grams.
func (p Params) ProjectileMass() float64 {
	return p.ProjectileVolume() * p.ProjectileDensity
}

// Validate checks the geometry invariants every derived formula relies on.
func (p Params) Validate() error {
	positive := []struct {
		field string
		value float64
	}{
		{"BoundaryRadius", p.BoundaryRadius},
		{"CoilLength", p.CoilLength},
		{"WireDiameter", p.WireDiameter},
		{"PackingFactor", p.PackingFactor},
		{"ProjectileDiameter", p.ProjectileDiameter},
		{"ProjectileLength", p.ProjectileLength},
		{"ProjectileDensity", p.ProjectileDensity},
		{"BoreWallThickness", p.BoreWallThickness},
	}
	for _, c := range positive {
		if !(c.value > 0) || math.IsInf(c.value, 0) {
			return &ParamError{Field: c.field, Value: c.value, Reason: "must be a finite value > 0"}
		}
	}

	nonNegative := []struct {
		field string
		value float64
	}{
		{"ShellThickness", p.ShellThickness},
		{"HoleDiameter", p.HoleDiameter},
		{"HoleLength", p.HoleLength},
	}
	for _, c := range nonNegative {
		if !(c.value >= 0) || math.IsInf(c.value, 0) {
			return &ParamError{Field: c.field, Value: c.value, Reason: "must be a finite value >= 0"}
		}
	}

	if p.BoundaryLayers < 1 {
		return &ParamError{Field: "BoundaryLayers", Value: float64(p.BoundaryLayers), Reason: "must be >= 1"}
	}
	if p.Turns < 1 {
		return &ParamError{Field: "Turns", Value: float64(p.Turns), Reason: "must be >= 1"}
	}
	if tpl := p.CoilTurnsPerLayer(); !(tpl > 0) || math.IsInf(tpl, 0) {
		return &ParamError{Field: "CoilTurnsPerLayer", Value: tpl, Reason: "must be > 0"}
	}
	if p.ProjectileMaterial == "" {
		return &ParamError{Field: "ProjectileMaterial", Reason: "must name a material"}
	}
	if p.ProjectileShape != ShapeCylinder {
		return &ParamError{Field: "ProjectileShape", Value: float64(p.ProjectileShape), Reason: p.ProjectileShape.String() + " projectiles are not supported yet"}
	}
	if p.CoilOuterDiameter()/2 >= p.BoundaryRadius {
		return &ParamError{Field: "BoundaryRadius", Value: p.BoundaryRadius, Reason: "coil does not fit inside the boundary"}
	}
	return nil
}
