package compare

import (
	"sort"

	"github.com/samber/lo"
)

// DefaultTopLimit caps each improvements/regressions list.
const DefaultTopLimit = 10

// Change is one ranked mover within a comparison.
type Change struct {
	FunctionName string   `json:"function_name"`
	DiffPct      *float64 `json:"diff_pct"`
	BaseNS       *float64 `json:"base_ns"`
	CmpNS        *float64 `json:"cmp_ns"`
	DeltaNS      float64  `json:"delta_ns"`
}

// TopChanges ranks the biggest movers of one comparison source against the
// baseline.
type TopChanges struct {
	CompareIdx   int      `json:"compare_idx"`
	FileName     string   `json:"file_name"`
	Improvements []Change `json:"improvements"`
	Regressions  []Change `json:"regressions"`
}

// TopN ranks the largest absolute-time movers per comparison source. Only
// rows with a computed nanosecond delta are eligible; a zero delta belongs
// to neither list. Limits <= 0 fall back to DefaultTopLimit. Degraded
// results yield an empty slice.
func TopN(result *Result, limit int) []TopChanges {
	if result.Degraded() {
		return nil
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	ranked := make([]TopChanges, 0, len(result.Sources)-1)
	for i := 1; i < len(result.Sources); i++ {
		tc := TopChanges{
			CompareIdx: i,
			FileName:   result.Sources[i],
		}

		var changes []Change
		for _, row := range result.Rows {
			entry := row.Comparisons[i-1]
			if entry.AvgDiffNS == nil {
				continue
			}
			changes = append(changes, Change{
				FunctionName: row.FunctionName,
				DiffPct:      entry.AvgDiffPct,
				BaseNS:       row.Baseline.Avg,
				CmpNS:        entry.Avg,
				DeltaNS:      *entry.AvgDiffNS,
			})
		}

		improvements := lo.Filter(changes, func(c Change, _ int) bool { return c.DeltaNS < 0 })
		regressions := lo.Filter(changes, func(c Change, _ int) bool { return c.DeltaNS > 0 })

		// stable sorts keep the engine's function order among equal deltas
		sort.SliceStable(improvements, func(a, b int) bool { return improvements[a].DeltaNS < improvements[b].DeltaNS })
		sort.SliceStable(regressions, func(a, b int) bool { return regressions[a].DeltaNS > regressions[b].DeltaNS })

		tc.Improvements = truncate(improvements, limit)
		tc.Regressions = truncate(regressions, limit)
		ranked = append(ranked, tc)
	}
	return ranked
}

func truncate(changes []Change, limit int) []Change {
	if len(changes) > limit {
		return changes[:limit]
	}
	return changes
}
