package compare

import (
	"sort"

	"github.com/samber/lo"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

// Stats is one source's view of one function. Nil fields mean the function
// or the metric is absent from that source.
type Stats struct {
	Avg   *float64
	Min   *float64
	Max   *float64
	Count *int64
}

// Entry is one comparison block: a non-baseline source's stats for a
// function plus its deltas against the baseline.
type Entry struct {
	Stats
	// AvgDiffPct is nil when the baseline avg is nil or zero, or the
	// comparison avg is nil.
	AvgDiffPct *float64
	// AvgDiffNS is nil only when either avg is nil. A zero baseline still
	// yields an absolute delta.
	AvgDiffNS *float64
}

// FunctionRow compares one function across every source. Comparisons has one
// entry per non-baseline source, in source order.
type FunctionRow struct {
	FunctionName string
	Baseline     Stats
	Comparisons  []Entry
}

// Result is the output of one comparison run.
type Result struct {
	// Sources are the source names, baseline first.
	Sources []string
	// Columns is the detector outcome the rows were projected through.
	Columns trace.Columns
	// Rows holds one entry per distinct function, sorted by name. Nil in
	// degraded mode.
	Rows []FunctionRow
	// Raw is the merged input relation, kept so degraded runs can still be
	// persisted as-is.
	Raw *trace.Table
}

// Degraded reports whether the function and avg columns could not be
// resolved, in which case Rows is nil and consumers fall back to Raw.
func (r *Result) Degraded() bool {
	return !r.Columns.Resolved()
}

type rowKey struct {
	function string
	source   int
}

// Compare aligns functions across all sources of the merged table and
// computes per-function deltas against source 0. When the required columns
// cannot be resolved it degrades to wrapping the raw relation, with a
// warning rather than an error.
func Compare(ctx context.Context, table *trace.Table) *Result {
	result := &Result{
		Sources: table.SourceNames(),
		Columns: trace.DetectColumns(table.Columns),
		Raw:     table,
	}

	if result.Degraded() {
		ctx.Logger.Warnf("cannot resolve function/avg columns from %v, keeping raw data only", table.Columns)
		return result
	}

	numSources := table.NumSources()
	byKey := make(map[rowKey]trace.TimingRow)
	funcSet := make(map[string]struct{})

	for _, row := range table.TimingRows(result.Columns) {
		k := rowKey{function: row.FunctionName, source: row.SourceIndex}
		if _, ok := byKey[k]; ok {
			// duplicates within one source: first occurrence wins
			continue
		}
		byKey[k] = row
		funcSet[row.FunctionName] = struct{}{}
	}

	functions := lo.Keys(funcSet)
	sort.Strings(functions)

	for _, fn := range functions {
		fr := FunctionRow{FunctionName: fn}
		if base, ok := byKey[rowKey{function: fn, source: 0}]; ok {
			fr.Baseline = newStats(base)
		}

		for i := 1; i < numSources; i++ {
			var entry Entry
			if cmp, ok := byKey[rowKey{function: fn, source: i}]; ok {
				entry.Stats = newStats(cmp)
			}
			entry.AvgDiffPct, entry.AvgDiffNS = avgDiff(fr.Baseline.Avg, entry.Avg)
			fr.Comparisons = append(fr.Comparisons, entry)
		}
		result.Rows = append(result.Rows, fr)
	}

	ctx.Logger.V(3).Infof("compared %d functions across %d sources", len(result.Rows), numSources)
	return result
}

func newStats(r trace.TimingRow) Stats {
	return Stats{
		Avg:   r.AvgNS,
		Min:   r.MinNS,
		Max:   r.MaxNS,
		Count: lo.ToPtr(r.Count),
	}
}

func avgDiff(base, cmp *float64) (pct *float64, ns *float64) {
	if base == nil || cmp == nil {
		return nil, nil
	}
	ns = lo.ToPtr(*cmp - *base)
	if *base == 0 {
		return nil, ns
	}
	return lo.ToPtr((*cmp - *base) / *base * 100), ns
}
