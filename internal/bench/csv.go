package bench

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
)

const unavailable = "unavailable"

var rowHeader = []string{
	"instance_id",
	"challenger_status", "challenger_objective", "challenger_runtime_s",
	"baseline_status", "baseline_objective", "baseline_runtime_s",
	"delta_objective", "delta_runtime_s",
}

// WriteCSV writes one line per comparison row. Absent values are written as
// "unavailable", never as zero.
func WriteCSV(path string, report harness.Report) error {
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(f, report.Rows)
}

// writeAndClose reports the close error when the rows themselves were
// written, so a failed flush is never mistaken for success.
func writeAndClose(out io.WriteCloser, rows []harness.ComparisonRow) (err error) {
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return WriteRows(out, rows)
}

func WriteRows(out io.Writer, rows []harness.ComparisonRow) error {
	w := csv.NewWriter(out)

	if err := w.Write(rowHeader); err != nil {
		return err
	}

	for _, r := range rows {
		line := []string{r.InstanceID}
		line = append(line, recordColumns(r.Challenger)...)
		line = append(line, recordColumns(r.Baseline)...)
		line = append(line, r.DeltaObjective.String(), r.DeltaRuntime.String())
		if err := w.Write(line); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func recordColumns(rec *domain.RunRecord) []string {
	if rec == nil {
		return []string{unavailable, unavailable, unavailable}
	}
	return []string{rec.Status.String(), ptoa(rec.Objective), ptoa(rec.RuntimeSeconds)}
}

func dirOf(path string) string {
	d := filepath.Dir(path)
	if d == "." {
		return ""
	}
	return d
}

func ptoa(v *float64) string {
	if v == nil {
		return unavailable
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
