package trace

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Source is one input timing table. Sources are ordered and the order is
// significant: index 0 is always the comparison baseline.
type Source struct {
	Path string
}

// Name is the label a source carries through reports: the file name without
// its extension.
func (s Source) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Row is one record of the merged relation, tagged with the source it came
// from. Values holds the verbatim cells keyed by column name.
type Row struct {
	SourceIndex int
	SourceName  string
	Values      map[string]string
}

// Table is the concatenation of all loaded sources. Columns is the union of
// the per-source headers in first-observation order.
type Table struct {
	Columns []string
	Rows    []Row
}

func (t *Table) NumSources() int {
	n := 0
	for _, r := range t.Rows {
		if r.SourceIndex+1 > n {
			n = r.SourceIndex + 1
		}
	}
	return n
}

// SourceNames returns the distinct source labels ordered by source index.
func (t *Table) SourceNames() []string {
	names := make([]string, t.NumSources())
	for _, r := range t.Rows {
		names[r.SourceIndex] = r.SourceName
	}
	return names
}

// TimingRow is the typed projection of one raw row. Optional metrics are
// pointers; nil means the cell was absent, empty or not a number.
type TimingRow struct {
	FunctionName string
	AvgNS        *float64
	MinNS        *float64
	MaxNS        *float64
	Count        int64
	SourceIndex  int
	SourceName   string
}

// TimingRows projects the raw rows through a resolved column mapping.
// Unresolved optional roles project to nil metrics.
func (t *Table) TimingRows(cols Columns) []TimingRow {
	rows := make([]TimingRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		rows = append(rows, TimingRow{
			FunctionName: r.Values[cols.Function],
			AvgNS:        parseFloat(r.Values[cols.Avg]),
			MinNS:        parseFloat(r.Values[cols.Min]),
			MaxNS:        parseFloat(r.Values[cols.Max]),
			Count:        parseCount(r.Values[cols.Count]),
			SourceIndex:  r.SourceIndex,
			SourceName:   r.SourceName,
		})
	}
	return rows
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return lo.ToPtr(f)
}

func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return int64(f)
	}
	return 0
}
