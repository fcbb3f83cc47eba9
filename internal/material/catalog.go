// Package material holds the projectile material catalog: the density used for
// projectile mass and the relative permeability used by the analytic solver.
// The catalog is an INI file with one section per material:
//
//	[M-50]
//	density = 7.85
//	permeability = 5000
package material

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/ini.v1"
)

// ErrUnknown is returned by Lookup for a material missing from the catalog.
var ErrUnknown = errors.New("material: unknown material")

// Material is one catalog entry.
type Material struct {
	Name         string
	Density      float64 // g/cm^3
	Permeability float64 // relative
}

// Catalog maps material names (solver library keys) to their properties.
type Catalog struct {
	byName map[string]Material
}

// Builtin returns the materials of the historical design sweep.
func Builtin() *Catalog {
	c := &Catalog{byName: map[string]Material{}}
	for _, m := range []Material{
		{Name: "M-50", Density: 7.85, Permeability: 5000},
		{Name: "416 Stainless Steel", Density: 7.75, Permeability: 700},
		{Name: "Mu Metal", Density: 8.7, Permeability: 50000},
		{Name: "Pure Iron", Density: 7.87, Permeability: 14872},
		{Name: "1010 Steel", Density: 7.87, Permeability: 1000},
		{Name: "Air", Density: 0.0012, Permeability: 1},
	} {
		c.byName[m.Name] = m
	}
	return c
}

// Load reads an INI catalog on top of the builtin entries.
// An empty path returns the builtin catalog.
func Load(path string) (*Catalog, error) {
	c := Builtin()
	if path == "" {
		return c, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read material catalog %s: %w", path, err)
	}

	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		prev := c.byName[sec.Name()]
		m := Material{
			Name:         sec.Name(),
			Density:      sec.Key("density").MustFloat64(prev.Density),
			Permeability: sec.Key("permeability").MustFloat64(prev.Permeability),
		}
		if m.Density <= 0 {
			return nil, fmt.Errorf("material %q: density must be > 0", m.Name)
		}
		if m.Permeability < 1 {
			m.Permeability = 1
		}
		c.byName[m.Name] = m
	}
	return c, nil
}

// Lookup returns the named material.
func (c *Catalog) Lookup(name string) (Material, error) {
	m, ok := c.byName[name]
	if !ok {
		return Material{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return m, nil
}

// Names returns all material names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
