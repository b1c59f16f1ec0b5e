package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"golang.org/x/exp/maps"
)

var nan = math.NaN()

// Results is the per-patient table written as CSV. Rows are keyed by
// patient id; a patient analyzed again replaces its earlier row.
type Results struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// ResultColumns returns the CSV header for the given modalities:
// patient_id, seg_FD, seg_LD, then <modality>_LD.
func ResultColumns(modalities []string) []string {
	cols := []string{"patient_id", "seg_FD", "seg_LD"}
	for _, m := range modalities {
		cols = append(cols, m+"_LD")
	}
	return cols
}

// NewResults returns an empty table with the given columns.
func NewResults(columns []string) *Results {
	return &Results{
		header: append([]string(nil), columns...),
		index:  make(map[string]int),
	}
}

// ReadResults loads a CSV written by WriteFile. Columns of the file that are
// missing from columns are kept; missing ones are appended and filled with
// NaN. A missing file yields an empty table.
func ReadResults(path string, columns []string) (*Results, error) {
	t := NewResults(nil)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		t.header = append(t.header, columns...)
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		t.header = append(t.header, columns...)
		return t, nil
	}
	if records[0][0] != "patient_id" {
		return nil, fmt.Errorf("read %s: first column is %q, expected patient_id", path, records[0][0])
	}

	t.header = append(t.header, records[0]...)
	for _, rec := range records[1:] {
		row := make([]string, len(t.header))
		copy(row, rec)
		t.index[row[0]] = len(t.rows)
		t.rows = append(t.rows, row)
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t, nil
}

// Columns returns the header.
func (t *Results) Columns() []string { return append([]string(nil), t.header...) }

// Len returns the number of rows.
func (t *Results) Len() int { return len(t.rows) }

// Get returns the cell of patient id in column, or "" if absent.
func (t *Results) Get(id, column string) string {
	i, ok := t.index[id]
	if !ok {
		return ""
	}
	for j, c := range t.header {
		if c == column {
			return t.rows[i][j]
		}
	}
	return ""
}

func (t *Results) addColumn(name string) int {
	for j, c := range t.header {
		if c == name {
			return j
		}
	}
	t.header = append(t.header, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], formatFloat(nan))
	}
	return len(t.header) - 1
}

// Add inserts or replaces the row of a patient. Modalities without a result
// are written as NaN.
func (t *Results) Add(res *PatientResult) {
	values := map[string]float64{
		"seg_FD": nan,
		"seg_LD": nan,
	}
	if seg := res.Segmentation.Result; seg != nil {
		values["seg_FD"] = seg.FD
		values["seg_LD"] = seg.LD
	}
	t.addColumn("seg_FD")
	t.addColumn("seg_LD")
	modalities := maps.Keys(res.Modalities)
	slices.Sort(modalities)
	for _, m := range modalities {
		values[m+"_LD"] = res.Modalities[m].LD()
		t.addColumn(m + "_LD")
	}

	row := make([]string, len(t.header))
	row[0] = res.PatientID
	for j, col := range t.header[1:] {
		v, ok := values[col]
		if !ok {
			v = nan
		}
		row[j+1] = formatFloat(v)
	}

	if i, ok := t.index[res.PatientID]; ok {
		t.rows[i] = row
		return
	}
	t.index[res.PatientID] = len(t.rows)
	t.rows = append(t.rows, row)
}

// WriteFile writes the table atomically.
func (t *Results) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
