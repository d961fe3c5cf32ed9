package compare

// SignificantPct is the percent-delta magnitude beyond which a change counts
// as significant.
const SignificantPct = 5.0

// Summary aggregates one (baseline, comparison source) pair. Totals cover
// only the functions present on both sides so the total-time comparison
// stays fair.
type Summary struct {
	CompareIdx         int     `json:"compare_idx"`
	FileName           string  `json:"file_name"`
	BaselineName       string  `json:"baseline_name"`
	FuncsInCommon      int     `json:"funcs_in_common"`
	SignificantChanges int     `json:"significant_changes"`
	ImprovementsCount  int     `json:"improvements_count"`
	RegressionsCount   int     `json:"regressions_count"`
	BaseTotalNS        float64 `json:"base_total_ns"`
	CmpTotalNS         float64 `json:"cmp_total_ns"`
	DiffNS             float64 `json:"diff_ns"`
	DiffPct            float64 `json:"diff_pct"`
}

// Summarize computes one Summary per comparison source. Degraded results
// yield an empty slice.
func Summarize(result *Result) []Summary {
	if result.Degraded() {
		return nil
	}

	summaries := make([]Summary, 0, len(result.Sources)-1)
	for i := 1; i < len(result.Sources); i++ {
		s := Summary{
			CompareIdx:   i,
			FileName:     result.Sources[i],
			BaselineName: result.Sources[0],
		}

		for _, row := range result.Rows {
			entry := row.Comparisons[i-1]
			if row.Baseline.Avg == nil || entry.Avg == nil {
				continue
			}

			s.FuncsInCommon++
			s.BaseTotalNS += *row.Baseline.Avg
			s.CmpTotalNS += *entry.Avg

			if entry.AvgDiffPct == nil {
				continue
			}
			switch pct := *entry.AvgDiffPct; {
			case pct < -SignificantPct:
				s.ImprovementsCount++
				s.SignificantChanges++
			case pct > SignificantPct:
				s.RegressionsCount++
				s.SignificantChanges++
			}
		}

		s.DiffNS = s.CmpTotalNS - s.BaseTotalNS
		// a zero baseline total reports 0%, never an error
		if s.BaseTotalNS != 0 {
			s.DiffPct = s.DiffNS / s.BaseTotalNS * 100
		}
		summaries = append(summaries, s)
	}
	return summaries
}
