package femm

import (
	"fmt"
	"math"
)

// closeEnough is the distance below which two points are the same node.
const closeEnough = 1e-6

// Point is a position in the r-z half plane of an axisymmetric problem
// (X = radius, Y = axial position), in document length units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// ProblemType selects planar or axisymmetric formulation.
type ProblemType string

const (
	Planar       ProblemType = "planar"
	Axisymmetric ProblemType = "axi"
)

// ProblemDef mirrors the solver's problem definition.
type ProblemDef struct {
	Frequency float64     `json:"frequency"`
	Units     string      `json:"units"`
	Type      ProblemType `json:"type"`
	Precision float64     `json:"precision"`
	Depth     float64     `json:"depth"`
	MinAngle  float64     `json:"min_angle"`
	SmartMesh bool        `json:"smart_mesh"`
}

// Material is a block property taken from the solver's material library.
// Name is the alias geometry refers to; Source is the library key.
type Material struct {
	Name         string  `json:"name"`
	Source       string  `json:"source"`
	WireDiameter float64 `json:"wire_diameter,omitempty"`
}

// Circuit is a named excitation.
type Circuit struct {
	Name   string  `json:"name"`
	Amps   float64 `json:"amps"`
	Series bool    `json:"series"`
}

// Node is a geometry vertex.
type Node struct {
	P        Point `json:"p"`
	Group    int   `json:"group"`
	selected bool
}

// Segment joins two nodes by index.
type Segment struct {
	A        int `json:"a"`
	B        int `json:"b"`
	Group    int `json:"group"`
	selected bool
}

// Label assigns block properties to the region that encloses it.
type Label struct {
	P        Point  `json:"p"`
	Material string `json:"material"`
	Circuit  string `json:"circuit,omitempty"`
	Group    int    `json:"group"`
	Turns    int    `json:"turns"`
	AutoMesh bool   `json:"auto_mesh"`
	selected bool
}

// Boundary is an N-layer absorbing open boundary synthesised by the solver.
type Boundary struct {
	Layers int     `json:"layers"`
	Radius float64 `json:"radius"`
}

// BlockProp is the property set applied to selected labels.
type BlockProp struct {
	Material string
	Circuit  string
	Group    int
	Turns    int
	AutoMesh bool
}

// Document is one magnetics problem: geometry, block and circuit properties,
// and the editor selection. Selection is transient and never persisted.
type Document struct {
	ID        string     `json:"id"`
	Problem   ProblemDef `json:"problem"`
	Materials []Material `json:"materials"`
	Circuits  []Circuit  `json:"circuits"`
	Nodes     []Node     `json:"nodes"`
	Segments  []Segment  `json:"segments"`
	Labels    []Label    `json:"labels"`
	Boundary  *Boundary  `json:"boundary,omitempty"`
}

// NewDocument returns an empty problem.
func NewDocument(id string) *Document {
	return &Document{ID: id}
}

// SetProblem replaces the problem definition.
func (d *Document) SetProblem(def ProblemDef) {
	d.Problem = def
}

// AddMaterial registers a library material under its own name.
func (d *Document) AddMaterial(source string) {
	if d.material(source) != nil {
		return
	}
	d.Materials = append(d.Materials, Material{Name: source, Source: source})
}

// RenameMaterial gives a registered material a new alias.
func (d *Document) RenameMaterial(name, alias string) error {
	m := d.material(name)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	m.Name = alias
	return nil
}

// SetWireDiameter sets the strand diameter of a wound material.
func (d *Document) SetWireDiameter(name string, diameter float64) error {
	m := d.material(name)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	m.WireDiameter = diameter
	return nil
}

// Material returns the material with the given alias.
func (d *Document) Material(name string) (Material, bool) {
	if m := d.material(name); m != nil {
		return *m, true
	}
	return Material{}, false
}

func (d *Document) material(name string) *Material {
	for i := range d.Materials {
		if d.Materials[i].Name == name {
			return &d.Materials[i]
		}
	}
	return nil
}

// AddCircuit registers a circuit; an existing circuit of the same name is replaced.
func (d *Document) AddCircuit(name string, amps float64, series bool) {
	if c := d.circuit(name); c != nil {
		*c = Circuit{Name: name, Amps: amps, Series: series}
		return
	}
	d.Circuits = append(d.Circuits, Circuit{Name: name, Amps: amps, Series: series})
}

// SetCircuitCurrent changes the excitation of an existing circuit.
func (d *Document) SetCircuitCurrent(name string, amps float64) error {
	c := d.circuit(name)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCircuit, name)
	}
	c.Amps = amps
	return nil
}

// Circuit returns the named circuit.
func (d *Document) Circuit(name string) (Circuit, bool) {
	if c := d.circuit(name); c != nil {
		return *c, true
	}
	return Circuit{}, false
}

func (d *Document) circuit(name string) *Circuit {
	for i := range d.Circuits {
		if d.Circuits[i].Name == name {
			return &d.Circuits[i]
		}
	}
	return nil
}

// MakeABC asks the solver for an N-layer absorbing boundary of the given radius
// around the origin. Layers are clamped to [1, 12].
func (d *Document) MakeABC(layers int, radius float64) {
	if layers > 12 {
		layers = 12
	} else if layers < 1 {
		layers = 1
	}
	d.Boundary = &Boundary{Layers: layers, Radius: radius}
}

// AddNode adds a node at p and returns its index. A node already at p is reused.
func (d *Document) AddNode(p Point) int {
	if i := d.closestNode(p); i >= 0 && d.Nodes[i].P.dist(p) < closeEnough {
		return i
	}
	d.Nodes = append(d.Nodes, Node{P: p})
	return len(d.Nodes) - 1
}

// NodeGroupAt returns the group of the node at p, if there is one.
func (d *Document) NodeGroupAt(p Point) (int, bool) {
	if i := d.closestNode(p); i >= 0 && d.Nodes[i].P.dist(p) < closeEnough {
		return d.Nodes[i].Group, true
	}
	return 0, false
}

// SelectNode selects the node closest to p.
func (d *Document) SelectNode(p Point) {
	if i := d.closestNode(p); i >= 0 {
		d.Nodes[i].selected = true
	}
}

// SetNodeGroup assigns group to every selected node.
func (d *Document) SetNodeGroup(group int) {
	for i := range d.Nodes {
		if d.Nodes[i].selected {
			d.Nodes[i].Group = group
		}
	}
}

// AddSegment joins the nodes closest to a and b.
func (d *Document) AddSegment(a, b Point) (int, error) {
	ia, ib := d.closestNode(a), d.closestNode(b)
	if ia < 0 || ib < 0 {
		return -1, fmt.Errorf("%w: segment needs existing end nodes", ErrGeometry)
	}
	if ia == ib {
		return -1, fmt.Errorf("%w: zero-length segment at (%g, %g)", ErrGeometry, a.X, a.Y)
	}
	for i, s := range d.Segments {
		if (s.A == ia && s.B == ib) || (s.A == ib && s.B == ia) {
			return i, nil
		}
	}
	d.Segments = append(d.Segments, Segment{A: ia, B: ib})
	return len(d.Segments) - 1, nil
}

// SelectSegment selects the segment whose midpoint is closest to p.
func (d *Document) SelectSegment(p Point) {
	best, bestDist := -1, math.Inf(1)
	for i, s := range d.Segments {
		mid := Point{(d.Nodes[s.A].P.X + d.Nodes[s.B].P.X) / 2, (d.Nodes[s.A].P.Y + d.Nodes[s.B].P.Y) / 2}
		if dist := mid.dist(p); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best >= 0 {
		d.Segments[best].selected = true
	}
}

// SetSegmentGroup assigns group to every selected segment.
func (d *Document) SetSegmentGroup(group int) {
	for i := range d.Segments {
		if d.Segments[i].selected {
			d.Segments[i].Group = group
		}
	}
}

// AddBlockLabel places a label at p.
func (d *Document) AddBlockLabel(p Point) int {
	d.Labels = append(d.Labels, Label{P: p, Turns: 1, AutoMesh: true})
	return len(d.Labels) - 1
}

// SelectLabel selects the label closest to p.
func (d *Document) SelectLabel(p Point) {
	best, bestDist := -1, math.Inf(1)
	for i, l := range d.Labels {
		if dist := l.P.dist(p); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best >= 0 {
		d.Labels[best].selected = true
	}
}

// SetBlockProp applies prop to every selected label. Zero turns are stored
// as one turn: a label always carries at least one turn.
func (d *Document) SetBlockProp(prop BlockProp) error {
	if prop.Material != "" && d.material(prop.Material) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMaterial, prop.Material)
	}
	if prop.Circuit != "" && d.circuit(prop.Circuit) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCircuit, prop.Circuit)
	}
	turns := prop.Turns
	if turns == 0 {
		turns = 1
	}
	for i := range d.Labels {
		if !d.Labels[i].selected {
			continue
		}
		d.Labels[i].Material = prop.Material
		d.Labels[i].Circuit = prop.Circuit
		d.Labels[i].Group = prop.Group
		d.Labels[i].Turns = turns
		d.Labels[i].AutoMesh = prop.AutoMesh
	}
	return nil
}

// SelectGroup adds every node, segment and label in group to the selection.
func (d *Document) SelectGroup(group int) {
	for i := range d.Nodes {
		if d.Nodes[i].Group == group {
			d.Nodes[i].selected = true
		}
	}
	for i := range d.Segments {
		if d.Segments[i].Group == group {
			d.Segments[i].selected = true
		}
	}
	for i := range d.Labels {
		if d.Labels[i].Group == group {
			d.Labels[i].selected = true
		}
	}
}

// MoveTranslate moves the selected nodes and labels by (dx, dy). Segments
// follow their end nodes.
func (d *Document) MoveTranslate(dx, dy float64) {
	for i := range d.Nodes {
		if d.Nodes[i].selected {
			d.Nodes[i].P.X += dx
			d.Nodes[i].P.Y += dy
		}
	}
	for i := range d.Labels {
		if d.Labels[i].selected {
			d.Labels[i].P.X += dx
			d.Labels[i].P.Y += dy
		}
	}
}

// ClearSelected drops the whole selection.
func (d *Document) ClearSelected() {
	for i := range d.Nodes {
		d.Nodes[i].selected = false
	}
	for i := range d.Segments {
		d.Segments[i].selected = false
	}
	for i := range d.Labels {
		d.Labels[i].selected = false
	}
}

// SelectionSize reports how many entities are selected.
func (d *Document) SelectionSize() int {
	n := 0
	for _, x := range d.Nodes {
		if x.selected {
			n++
		}
	}
	for _, x := range d.Segments {
		if x.selected {
			n++
		}
	}
	for _, x := range d.Labels {
		if x.selected {
			n++
		}
	}
	return n
}

// GroupBounds returns the bounding box of the nodes in group.
func (d *Document) GroupBounds(group int) (min, max Point, ok bool) {
	min = Point{math.Inf(1), math.Inf(1)}
	max = Point{math.Inf(-1), math.Inf(-1)}
	for _, n := range d.Nodes {
		if n.Group != group {
			continue
		}
		ok = true
		min.X, min.Y = math.Min(min.X, n.P.X), math.Min(min.Y, n.P.Y)
		max.X, max.Y = math.Max(max.X, n.P.X), math.Max(max.Y, n.P.Y)
	}
	return min, max, ok
}

// Clone returns a deep copy without selection state.
func (d *Document) Clone() *Document {
	c := &Document{
		ID:        d.ID,
		Problem:   d.Problem,
		Materials: append([]Material(nil), d.Materials...),
		Circuits:  append([]Circuit(nil), d.Circuits...),
		Nodes:     append([]Node(nil), d.Nodes...),
		Segments:  append([]Segment(nil), d.Segments...),
		Labels:    append([]Label(nil), d.Labels...),
	}
	if d.Boundary != nil {
		b := *d.Boundary
		c.Boundary = &b
	}
	c.ClearSelected()
	return c
}

func (d *Document) closestNode(p Point) int {
	best, bestDist := -1, math.Inf(1)
	for i, n := range d.Nodes {
		if dist := n.P.dist(p); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}
