package femm

import (
	"context"
	"fmt"
	"math"
)

// AddRectangle draws the four edges of the axis-aligned rectangle spanned by
// c0 and c1. Its nodes and segments are put in group and the selection is
// cleared afterwards. A corner landing on a node of another non-zero group is
// an ErrGeometry: sharing it would tie the two groups together.
func AddRectangle(s *Session, c0, c1 Point, group int) error {
	if s.closed {
		return ErrClosed
	}
	if c0.X == c1.X || c0.Y == c1.Y {
		return fmt.Errorf("%w: degenerate rectangle (%g, %g)-(%g, %g)", ErrGeometry, c0.X, c0.Y, c1.X, c1.Y)
	}
	corners := []Point{c0, {c1.X, c0.Y}, c1, {c0.X, c1.Y}}
	for _, c := range corners {
		if g, ok := s.doc.NodeGroupAt(c); ok && g != AllGroups && g != group {
			return fmt.Errorf("%w: corner (%g, %g) already belongs to group %d", ErrGeometry, c.X, c.Y, g)
		}
	}
	for i, a := range corners {
		b := corners[(i+1)%len(corners)]
		if err := addLine(s.doc, a, b, group); err != nil {
			return err
		}
	}
	return nil
}

func addLine(d *Document, a, b Point, group int) error {
	d.AddNode(a)
	d.AddNode(b)
	d.SelectNode(a)
	d.SelectNode(b)
	d.SetNodeGroup(group)
	d.ClearSelected()

	if _, err := d.AddSegment(a, b); err != nil {
		return err
	}
	d.SelectSegment(Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2})
	d.SetSegmentGroup(group)
	d.ClearSelected()
	return nil
}

// AddRegionLabel places a block label at p and assigns its properties.
// An empty circuit means the region is unexcited. Zero turns become one.
func AddRegionLabel(s *Session, p Point, material, circuit string, group, turns int) error {
	if s.closed {
		return ErrClosed
	}
	d := s.doc
	d.AddBlockLabel(p)
	d.SelectLabel(p)
	err := d.SetBlockProp(BlockProp{
		Material: material,
		Circuit:  circuit,
		Group:    group,
		Turns:    turns,
		AutoMesh: true,
	})
	d.ClearSelected()
	return err
}

// TranslateGroup rigidly moves every entity of group by (dx, dy).
func TranslateGroup(s *Session, dx, dy float64, group int) error {
	if s.closed {
		return ErrClosed
	}
	s.doc.ClearSelected()
	s.doc.SelectGroup(group)
	s.doc.MoveTranslate(dx, dy)
	s.doc.ClearSelected()
	return nil
}

// Analyze solves the current document at path.
func Analyze(ctx context.Context, s *Session, path string) error {
	return s.Analyze(ctx, path)
}

// IntegrateFieldForce drives circuit at current, re-solves, and returns the
// axial force (N) on the blocks of group.
func IntegrateFieldForce(ctx context.Context, s *Session, circuit string, current float64, group int, path string) (complex128, error) {
	if err := s.doc.SetCircuitCurrent(circuit, current); err != nil {
		return 0, err
	}
	if err := s.Analyze(ctx, path); err != nil {
		return 0, err
	}
	return integrate(s, group, IntegralForceZ)
}

// IntegrateInductance drives circuit at current, re-solves, and returns the
// inductance in microhenries derived from the total field energy:
// L = 2W/I^2.
func IntegrateInductance(ctx context.Context, s *Session, circuit string, current float64, path string) (complex128, error) {
	if current == 0 || math.IsNaN(current) {
		return 0, fmt.Errorf("%w: inductance needs a non-zero current", ErrSolve)
	}
	if err := s.doc.SetCircuitCurrent(circuit, current); err != nil {
		return 0, err
	}
	if err := s.Analyze(ctx, path); err != nil {
		return 0, err
	}
	w, err := integrate(s, AllGroups, IntegralEnergy)
	if err != nil {
		return 0, err
	}
	return w * complex(2/(current*current)*1e6, 0), nil
}

func integrate(s *Session, group int, t IntegralType) (complex128, error) {
	if err := s.GroupSelectBlock(group); err != nil {
		return 0, err
	}
	defer s.ClearBlock()
	return s.BlockIntegral(t)
}
