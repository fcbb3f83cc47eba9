package model

import (
	"strconv"
	"strings"
)

// CoilName identifies the coil half of a design, e.g. "C_L45_T220_W0.9_ID6.5".
func (p Params) CoilName() string {
	return "C_L" + num(p.CoilLength) +
		"_T" + strconv.Itoa(p.Turns) +
		"_W" + num(p.WireDiameter) +
		"_ID" + num(p.CoilInnerDiameter())
}

// ProjectileName identifies the projectile half of a design, e.g. "P_D4.5_L35_M-50".
func (p Params) ProjectileName() string {
	return "P_D" + num(p.ProjectileDiameter) +
		"_L" + num(p.ProjectileLength) +
		"_" + sanitize(p.ProjectileMaterial)
}

// PairName is the design name and the stem of its report files.
func (p Params) PairName() string {
	return p.CoilName() + "__" + p.ProjectileName()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sanitize keeps names usable as file stems on every platform.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
