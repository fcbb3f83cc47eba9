/*
PURPOSE:
  Writes the per-design step table as CSV and answers the resume check.

REQUIREMENTS:
  User-specified:
  - Header "Distance, Inductance, Force@<I>A..." then one row per step.
  - A design is done when both its JSON report and CSV table exist.

  Implementation-discovered:
  - The resume check is existence only. A truncated file from an older
    writer still counts as done.

ARCHITECTURE INTEGRATION:
  - Called by: internal/output/json.go (WriteReport), internal/engine
  - Consumes: internal/model.StepRecord

ERROR HANDLING:
  - Returns error on write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() before checking the writer error.

USAGE:
  if output.Done(dir, p.PairName()) { skip }

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/output/json.go

MAINTENANCE:
  - Keep the header wording; spreadsheets key on it.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daryltucker/coilgun-sim/internal/model"
)

// ReportPaths returns the JSON and CSV paths of design name in dir.
func ReportPaths(dir, name string) (jsonPath, csvPath string) {
	base := filepath.Join(dir, name)
	return base + ".json", base + ".csv"
}

// Done reports whether both artifacts of design name exist in dir.
func Done(dir, name string) bool {
	jsonPath, csvPath := ReportPaths(dir, name)
	for _, p := range []string{jsonPath, csvPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// TableHeader returns the CSV header for currents.
func TableHeader(currents []float64) []string {
	header := []string{"Distance", "Inductance"}
	for _, c := range currents {
		header = append(header, fmt.Sprintf("Force@%sA", strconv.FormatFloat(c, 'f', -1, 64)))
	}
	return header
}

func writeTable(w io.Writer, currents []float64, steps []model.StepRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TableHeader(currents)); err != nil {
		return err
	}
	for _, s := range steps {
		record := []string{
			strconv.FormatFloat(s.Distance, 'f', -1, 64),
			strconv.FormatFloat(s.Inductance, 'g', -1, 64),
		}
		for _, f := range s.Forces {
			record = append(record, strconv.FormatFloat(f, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
