package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

// Section names of a comparison artifact.
const (
	SectionRawData    = "raw_data"
	SectionComparison = "comparison"
	SectionSummary    = "summary"
	SectionTopChanges = "top_changes"

	// SectionTrace is the single table of a one-run report artifact.
	SectionTrace = "tracy"
)

// Change kinds in the top_changes section.
const (
	KindImprovement = "improvement"
	KindRegression  = "regression"
)

var summaryColumns = []string{
	"compare_idx", "file_name", "baseline_name",
	"funcs_in_common", "significant_changes", "improvements_count", "regressions_count",
	"base_total_ns", "cmp_total_ns", "diff_ns", "diff_pct",
}

var topChangesColumns = []string{
	"compare_idx", "file_name", "kind", "rank",
	"function_name", "diff_pct", "base_ns", "cmp_ns", "delta_ns",
}

// ComparisonSections lays a comparison run out as the four artifact tables.
// A degraded result stores the raw relation under comparison as well; the
// absent function_name column is the consumer's signal.
func ComparisonSections(result *compare.Result, summaries []compare.Summary, top []compare.TopChanges) []Section {
	return []Section{
		TableSection(SectionRawData, result.Raw),
		comparisonSection(result),
		summarySection(summaries),
		topChangesSection(top),
	}
}

// TableSection converts a raw relation into a section, tagging every row
// with the source it came from.
func TableSection(name string, table *trace.Table) Section {
	section := Section{
		Name:    name,
		Columns: append([]string{"source_index", "source_name"}, table.Columns...),
	}
	for _, row := range table.Rows {
		out := map[string]any{
			"source_index": row.SourceIndex,
			"source_name":  row.SourceName,
		}
		for _, col := range table.Columns {
			out[col] = cellValue(row.Values[col])
		}
		section.Rows = append(section.Rows, out)
	}
	return section
}

func comparisonSection(result *compare.Result) Section {
	if result.Degraded() {
		section := TableSection(SectionComparison, result.Raw)
		return section
	}

	columns := []string{"function_name", "baseline_avg", "baseline_min", "baseline_max", "baseline_count"}
	for i := 1; i < len(result.Sources); i++ {
		columns = append(columns,
			fmt.Sprintf("cmp%d_avg", i),
			fmt.Sprintf("cmp%d_min", i),
			fmt.Sprintf("cmp%d_max", i),
			fmt.Sprintf("cmp%d_count", i),
			fmt.Sprintf("cmp%d_avg_diff_pct", i),
			fmt.Sprintf("cmp%d_avg_diff_ns", i),
		)
	}

	section := Section{Name: SectionComparison, Columns: columns}
	for _, row := range result.Rows {
		out := map[string]any{
			"function_name":  row.FunctionName,
			"baseline_avg":   floatValue(row.Baseline.Avg),
			"baseline_min":   floatValue(row.Baseline.Min),
			"baseline_max":   floatValue(row.Baseline.Max),
			"baseline_count": countValue(row.Baseline.Count),
		}
		for i, entry := range row.Comparisons {
			n := i + 1
			out[fmt.Sprintf("cmp%d_avg", n)] = floatValue(entry.Avg)
			out[fmt.Sprintf("cmp%d_min", n)] = floatValue(entry.Min)
			out[fmt.Sprintf("cmp%d_max", n)] = floatValue(entry.Max)
			out[fmt.Sprintf("cmp%d_count", n)] = countValue(entry.Count)
			out[fmt.Sprintf("cmp%d_avg_diff_pct", n)] = floatValue(entry.AvgDiffPct)
			out[fmt.Sprintf("cmp%d_avg_diff_ns", n)] = floatValue(entry.AvgDiffNS)
		}
		section.Rows = append(section.Rows, out)
	}
	return section
}

func summarySection(summaries []compare.Summary) Section {
	section := Section{Name: SectionSummary, Columns: summaryColumns}
	for _, s := range summaries {
		section.Rows = append(section.Rows, map[string]any{
			"compare_idx":         s.CompareIdx,
			"file_name":           s.FileName,
			"baseline_name":       s.BaselineName,
			"funcs_in_common":     s.FuncsInCommon,
			"significant_changes": s.SignificantChanges,
			"improvements_count":  s.ImprovementsCount,
			"regressions_count":   s.RegressionsCount,
			"base_total_ns":       s.BaseTotalNS,
			"cmp_total_ns":        s.CmpTotalNS,
			"diff_ns":             s.DiffNS,
			"diff_pct":            s.DiffPct,
		})
	}
	return section
}

func topChangesSection(top []compare.TopChanges) Section {
	section := Section{Name: SectionTopChanges, Columns: topChangesColumns}
	for _, tc := range top {
		for rank, c := range tc.Improvements {
			section.Rows = append(section.Rows, changeRow(tc, KindImprovement, rank+1, c))
		}
		for rank, c := range tc.Regressions {
			section.Rows = append(section.Rows, changeRow(tc, KindRegression, rank+1, c))
		}
	}
	return section
}

func changeRow(tc compare.TopChanges, kind string, rank int, c compare.Change) map[string]any {
	return map[string]any{
		"compare_idx":   tc.CompareIdx,
		"file_name":     tc.FileName,
		"kind":          kind,
		"rank":          rank,
		"function_name": c.FunctionName,
		"diff_pct":      floatValue(c.DiffPct),
		"base_ns":       floatValue(c.BaseNS),
		"cmp_ns":        floatValue(c.CmpNS),
		"delta_ns":      c.DeltaNS,
	}
}

// cellValue types a raw CSV cell for storage: integers and reals become
// numbers, everything else stays text. Empty and non-finite cells become
// NULL.
func cellValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return s
}

func floatValue(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func countValue(c *int64) any {
	if c == nil {
		return nil
	}
	return *c
}
