package femm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Lua drives an external FEMM 4.2 process. Persist writes a Lua script that
// rebuilds the document, saves it at the scratch path, analyzes it and dumps
// the block integrals to a results file. Solve runs FEMM on the script and
// Load parses the results.
type Lua struct {
	exe     string
	timeout time.Duration
	lastFem string
}

// NewLua returns a backend running the FEMM executable exe. A positive
// timeout bounds every solve.
func NewLua(exe string, timeout time.Duration) *Lua {
	return &Lua{exe: exe, timeout: timeout}
}

func scriptPath(path string) string  { return strings.TrimSuffix(path, filepath.Ext(path)) + ".lua" }
func resultsPath(path string) string { return strings.TrimSuffix(path, filepath.Ext(path)) + ".res" }

func (l *Lua) Persist(doc *Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(scriptPath(path), []byte(Script(doc, path, resultsPath(path))), 0o644)
}

func (l *Lua) Solve(ctx context.Context, path string) error {
	res := resultsPath(path)
	if err := os.Remove(res); err != nil && !os.IsNotExist(err) {
		return err
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, l.exe, "-lua-script="+scriptPath(path), "-windowhide")
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", l.exe, err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(res); err != nil {
		return fmt.Errorf("%s produced no results: %w", l.exe, err)
	}
	l.lastFem = path
	return nil
}

func (l *Lua) Load(path string) (Solution, error) {
	f, err := os.Open(resultsPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseResults(f)
}

// Save copies the last solved problem file to path. Before any solve it
// only writes the script.
func (l *Lua) Save(doc *Document, path string) error {
	if l.lastFem == "" {
		return l.Persist(doc, path)
	}
	if l.lastFem == path {
		return nil
	}
	data, err := os.ReadFile(l.lastFem)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (l *Lua) Close() error { return nil }

// ParseResults reads "group type re im" lines.
func ParseResults(r io.Reader) (Solution, error) {
	sol := &tableSolution{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var in integral
		if _, err := fmt.Sscan(text, &in.Group, &in.Type, &in.Re, &in.Im); err != nil {
			return nil, fmt.Errorf("results line %d %q: %w", line, text, err)
		}
		sol.Integrals = append(sol.Integrals, in)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sol, nil
}

// Script renders the FEMM Lua program for doc.
func Script(doc *Document, femPath, resPath string) string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	p := doc.Problem
	if p.Units == "" {
		p.Units = "millimeters"
	}
	if p.Type == "" {
		p.Type = Axisymmetric
	}
	w("newdocument(0)")
	w("mi_probdef(%s, %s, %s, %s, %s, %s)", num(p.Frequency), quote(p.Units), quote(string(p.Type)), num(p.Precision), num(p.Depth), num(p.MinAngle))
	if p.SmartMesh {
		w("mi_smartmesh(1)")
	}

	for _, m := range doc.Materials {
		w("mi_getmaterial(%s)", quote(m.Source))
		if m.Name != m.Source {
			w("mi_modifymaterial(%s, 0, %s)", quote(m.Source), quote(m.Name))
		}
		if m.WireDiameter > 0 {
			w("mi_modifymaterial(%s, 13, %s)", quote(m.Name), num(m.WireDiameter))
		}
	}
	for _, c := range doc.Circuits {
		w("mi_addcircprop(%s, %s, %d)", quote(c.Name), num(c.Amps), boolInt(c.Series))
	}
	if bd := doc.Boundary; bd != nil {
		w("mi_makeABC(%d, %s, 0, 0, 0)", bd.Layers, num(bd.Radius))
	}

	for _, n := range doc.Nodes {
		w("mi_addnode(%s, %s)", num(n.P.X), num(n.P.Y))
		if n.Group != 0 {
			w("mi_selectnode(%s, %s)", num(n.P.X), num(n.P.Y))
			w("mi_setnodeprop(\"\", %d)", n.Group)
			w("mi_clearselected()")
		}
	}
	for _, s := range doc.Segments {
		a, c := doc.Nodes[s.A].P, doc.Nodes[s.B].P
		w("mi_addsegment(%s, %s, %s, %s)", num(a.X), num(a.Y), num(c.X), num(c.Y))
		if s.Group != 0 {
			w("mi_selectsegment(%s, %s)", num((a.X+c.X)/2), num((a.Y+c.Y)/2))
			w("mi_setsegmentprop(\"\", 0, 1, 0, %d)", s.Group)
			w("mi_clearselected()")
		}
	}
	groups := map[int]bool{}
	for _, l := range doc.Labels {
		w("mi_addblocklabel(%s, %s)", num(l.P.X), num(l.P.Y))
		w("mi_selectlabel(%s, %s)", num(l.P.X), num(l.P.Y))
		w("mi_setblockprop(%s, %d, 0, %s, 0, %d, %d)", quote(l.Material), boolInt(l.AutoMesh), quote(l.Circuit), l.Group, l.Turns)
		w("mi_clearselected()")
		if l.Group != AllGroups {
			groups[l.Group] = true
		}
	}

	w("mi_saveas(%s)", quote(femPath))
	w("mi_analyze(1)")
	w("mi_loadsolution()")
	w("out = openfile(%s, \"w\")", quote(resPath))
	dump := func(sel string, group int, t IntegralType) {
		w("mo_groupselectblock(%s)", sel)
		w("v = mo_blockintegral(%d)", t)
		w("write(out, \"%d %d \", Re(v), \" \", Im(v), \"\\n\")", group, t)
		w("mo_clearblock()")
	}
	dump("", AllGroups, IntegralEnergy)
	ids := make([]int, 0, len(groups))
	for g := range groups {
		ids = append(ids, g)
	}
	sort.Ints(ids)
	for _, g := range ids {
		dump(strconv.Itoa(g), g, IntegralForceZ)
	}
	w("closefile(out)")
	w("quit()")
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func quote(s string) string { return strconv.Quote(filepath.ToSlash(s)) }

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
