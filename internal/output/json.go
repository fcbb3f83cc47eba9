/*
PURPOSE:
  Writes one JSON report per simulated design and the batch index
  (JSON Lines, one entry per completed design).

REQUIREMENTS:
  User-specified:
  - Report carries the design name, coil and projectile data, currents and steps.
  - Report and table together mark a design as done for resume.

  Implementation-discovered:
  - A crash mid-write must not leave a file that passes the resume check,
    so reports are written to a .tmp sibling and renamed.
  - The batch index is append-only JSON Lines so concurrent workers can share it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli (show, plot)
  - Consumes: internal/model.SimResult, internal/analysis.Summary

ERROR HANDLING:
  - Returns error on file creation, write or rename failure.

IMPLEMENTATION RULES:
  - Use encoding/json.
  - IndexWriter is thread-safe.

USAGE:
  rep := output.NewReport(p, res)
  err := output.WriteReport(dir, rep)

SELF-HEALING INSTRUCTIONS:
  - Keep JSON field names stable; downstream notebooks read them.

RELATED FILES:
  - internal/output/csv.go
  - internal/model/result.go

MAINTENANCE:
  - Update NewReport when Params gains fields.
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daryltucker/coilgun-sim/internal/analysis"
	"github.com/daryltucker/coilgun-sim/internal/model"
)

// CoilData describes the simulated coil.
type CoilData struct {
	Name          string  `json:"Name"`
	Resistance    float64 `json:"Resistance"` // ohm
	Length        float64 `json:"Length"`     // mm
	InnerDiameter float64 `json:"InnerDiameter"`
	Height        float64 `json:"Height"`
	WireDiameter  float64 `json:"WireDiameter"`
	WireTurns     int     `json:"WireTurns"`
	WireLength    float64 `json:"WireLength"` // m
	Layers        float64 `json:"Layers"`
	TurnsPerLayer float64 `json:"TurnsPerLayer"`
	ShellWidth    float64 `json:"ShellWidth"`
}

// ProjectileData describes the simulated projectile.
type ProjectileData struct {
	Name            string  `json:"Name"`
	Mass            float64 `json:"Mass"` // g
	Length          float64 `json:"Length"`
	Diameter        float64 `json:"Diameter"`
	MaterialType    string  `json:"MaterialType"`
	MaterialDensity float64 `json:"MaterialDensity"`
	Shape           string  `json:"Shape"`
	HoleDiameter    float64 `json:"HoleDiameter"`
	HoleLength      float64 `json:"HoleLength"`
}

// Report is the persisted form of one completed design.
type Report struct {
	Name           string             `json:"Name"`
	RunID          string             `json:"RunID,omitempty"`
	Currents       []float64          `json:"Currents"`
	CoilData       CoilData           `json:"CoilData"`
	ProjectileData ProjectileData     `json:"ProjectileData"`
	Steps          []model.StepRecord `json:"Steps"`
	Summary        analysis.Summary   `json:"Summary"`
}

// NewReport assembles the report of p from its result.
func NewReport(p model.Params, res *model.SimResult) Report {
	return Report{
		Name:     p.PairName(),
		RunID:    res.RunID,
		Currents: res.Currents,
		CoilData: CoilData{
			Name:          p.CoilName(),
			Resistance:    res.Coil.Resistance,
			Length:        p.CoilLength,
			InnerDiameter: p.CoilInnerDiameter(),
			Height:        res.Coil.Height,
			WireDiameter:  p.WireDiameter,
			WireTurns:     p.Turns,
			WireLength:    res.Coil.WireLength,
			Layers:        res.Coil.Layers,
			TurnsPerLayer: p.CoilTurnsPerLayer(),
			ShellWidth:    p.ShellThickness,
		},
		ProjectileData: ProjectileData{
			Name:            p.ProjectileName(),
			Mass:            res.Projectile.Mass,
			Length:          p.ProjectileLength,
			Diameter:        p.ProjectileDiameter,
			MaterialType:    p.ProjectileMaterial,
			MaterialDensity: p.ProjectileDensity,
			Shape:           p.ProjectileShape.String(),
			HoleDiameter:    p.HoleDiameter,
			HoleLength:      p.HoleLength,
		},
		Steps:   res.Steps,
		Summary: analysis.Summarize(res),
	}
}

// Result rebuilds the SimResult view of a report.
func (r Report) Result() *model.SimResult {
	return &model.SimResult{
		RunID:      r.RunID,
		Coil:       model.CoilSummary{Height: r.CoilData.Height, Resistance: r.CoilData.Resistance, Layers: r.CoilData.Layers, WireLength: r.CoilData.WireLength},
		Projectile: model.ProjectileSummary{Mass: r.ProjectileData.Mass},
		Currents:   r.Currents,
		Steps:      r.Steps,
	}
}

// WriteReport writes the JSON report and CSV table of rep into dir.
func WriteReport(dir string, rep Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	jsonPath, csvPath := ReportPaths(dir, rep.Name)
	if err := writeAtomic(jsonPath, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}); err != nil {
		return err
	}
	return writeAtomic(csvPath, func(f *os.File) error {
		return writeTable(f, rep.Currents, rep.Steps)
	})
}

// ReadReport loads the JSON report of design name from dir.
func ReadReport(dir, name string) (Report, error) {
	jsonPath, _ := ReportPaths(dir, name)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("failed to parse report %s: %w", jsonPath, err)
	}
	return rep, nil
}

func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// IndexEntry is one line of the batch index.
type IndexEntry struct {
	Name       string    `json:"name"`
	RunID      string    `json:"run_id"`
	Finished   time.Time `json:"finished"`
	Steps      int       `json:"steps"`
	Mass       float64   `json:"mass_g"`
	Resistance float64   `json:"resistance_ohm"`
	PeakForce  float64   `json:"peak_force_n"` // at the highest current
	Work       float64   `json:"work_j"`       // at the highest current
}

// NewIndexEntry summarises rep for the batch index.
func NewIndexEntry(rep Report) IndexEntry {
	e := IndexEntry{
		Name:       rep.Name,
		RunID:      rep.RunID,
		Finished:   time.Now().UTC(),
		Steps:      len(rep.Steps),
		Mass:       rep.ProjectileData.Mass,
		Resistance: rep.CoilData.Resistance,
	}
	if n := len(rep.Summary.Currents); n > 0 {
		e.PeakForce = rep.Summary.Currents[n-1].PeakForce
		e.Work = rep.Summary.Currents[n-1].Work
	}
	return e
}

// IndexWriter appends IndexEntry lines to a JSON Lines file.
type IndexWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewIndexWriter opens path for appending, so resumed batches extend it.
func NewIndexWriter(path string) (*IndexWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &IndexWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single entry as a JSON line.
func (iw *IndexWriter) Write(e IndexEntry) error {
	iw.mu.Lock()
	defer iw.mu.Unlock()

	return iw.encoder.Encode(e)
}

// Close closes the underlying file.
func (iw *IndexWriter) Close() error {
	return iw.file.Close()
}
