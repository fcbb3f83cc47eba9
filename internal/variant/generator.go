/*
PURPOSE:
  Enumerates the Cartesian product of the configured design sweep into an
  ordered list of model.Params.

REQUIREMENTS:
  User-specified:
  - Per-dimension count is ceil((end - start) / step) for ranges and the set size
    for enumerations; the product count is returned alongside the list.
  - Fixed nesting order (outermost first): wire size, coil length, coil turns,
    projectile diameter, projectile length. Resuming from variant N relies on it.

  Implementation-discovered:
  - A range with end <= start yields zero values instead of a negative count.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (batch runner), internal/cli (variants command)
  - Uses: internal/config, internal/model

ERROR HANDLING:
  - None. Step sizes are validated by config.Validate() beforehand.

USAGE:
  variants, n := variant.Generate(cfg.Permutations, cfg.Defaults)

RELATED FILES:
  - internal/config/config.go

MAINTENANCE:
  - Adding a swept dimension changes every variant index; note it in release notes.
*/

package variant

import (
	"math"

	"github.com/daryltucker/coilgun-sim/internal/config"
	"github.com/daryltucker/coilgun-sim/internal/model"
)

// Counts holds the number of values along each swept dimension.
type Counts struct {
	WireSizes           int
	CoilLengths         int
	CoilTurns           int
	ProjectileDiameters int
	ProjectileLengths   int
}

// Total is the size of the Cartesian product.
func (c Counts) Total() int {
	return c.WireSizes * c.CoilLengths * c.CoilTurns * c.ProjectileDiameters * c.ProjectileLengths
}

// Count returns the per-dimension counts for cfg.
func Count(cfg config.PermutationConfig) Counts {
	return Counts{
		WireSizes:           len(cfg.CoilWireSizes),
		CoilLengths:         rangeCount(bounds(cfg.CoilLengthRange), cfg.CoilLengthStep),
		CoilTurns:           rangeCount(intBounds(cfg.CoilTurnRange), float64(cfg.CoilTurnStep)),
		ProjectileDiameters: len(cfg.ProjectileDiameters),
		ProjectileLengths:   rangeCount(bounds(cfg.ProjectileLengthRange), cfg.ProjectileLengthStep),
	}
}

// Generate returns every design variant of the sweep and its count.
func Generate(cfg config.PermutationConfig, defaults model.Params) ([]model.Params, int) {
	counts := Count(cfg)
	total := counts.Total()
	if total == 0 {
		return nil, 0
	}

	coilLength := bounds(cfg.CoilLengthRange)
	coilTurns := intBounds(cfg.CoilTurnRange)
	projectileLength := bounds(cfg.ProjectileLengthRange)

	params := make([]model.Params, 0, total)
	for _, wire := range cfg.CoilWireSizes {
		for li := 0; li < counts.CoilLengths; li++ {
			for ti := 0; ti < counts.CoilTurns; ti++ {
				for _, diameter := range cfg.ProjectileDiameters {
					for pi := 0; pi < counts.ProjectileLengths; pi++ {
						p := defaults
						p.WireDiameter = wire
						p.CoilLength = coilLength[0] + float64(li)*cfg.CoilLengthStep
						p.Turns = int(coilTurns[0]) + ti*cfg.CoilTurnStep
						p.ProjectileDiameter = diameter
						p.ProjectileLength = projectileLength[0] + float64(pi)*cfg.ProjectileLengthStep
						p.BoreWallThickness = cfg.BoreWallThickness
						params = append(params, p)
					}
				}
			}
		}
	}
	return params, total
}

func rangeCount(r [2]float64, step float64) int {
	if !(step > 0) || !(r[1] > r[0]) {
		return 0
	}
	return int(math.Ceil((r[1] - r[0]) / step))
}

func bounds(r []float64) [2]float64 {
	if len(r) != 2 {
		return [2]float64{}
	}
	return [2]float64{r[0], r[1]}
}

func intBounds(r []int) [2]float64 {
	if len(r) != 2 {
		return [2]float64{}
	}
	return [2]float64{float64(r[0]), float64(r[1])}
}
