package report

import (
	"sort"

	"github.com/samber/lo"

	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/context"
)

// Artifact is a comparison report loaded back from its store.
type Artifact struct {
	RawData    *Section
	Comparison *Section
	Summaries  []compare.Summary
	TopChanges []compare.TopChanges
}

// Degraded reports whether the artifact was written without per-function
// analysis, recognized by the absent function_name column.
func (a *Artifact) Degraded() bool {
	return a.Comparison == nil || !lo.Contains(a.Comparison.Columns, "function_name")
}

// Read loads all four sections of a comparison artifact back.
func (s *Store) Read(ctx context.Context) (*Artifact, error) {
	artifact := &Artifact{}

	var err error
	if artifact.RawData, err = s.ReadSection(ctx, SectionRawData); err != nil {
		return nil, err
	}
	if artifact.Comparison, err = s.ReadSection(ctx, SectionComparison); err != nil {
		return nil, err
	}

	summarySection, err := s.ReadSection(ctx, SectionSummary)
	if err != nil {
		return nil, err
	}
	for _, row := range summarySection.Rows {
		artifact.Summaries = append(artifact.Summaries, compare.Summary{
			CompareIdx:         asInt(row["compare_idx"]),
			FileName:           asString(row["file_name"]),
			BaselineName:       asString(row["baseline_name"]),
			FuncsInCommon:      asInt(row["funcs_in_common"]),
			SignificantChanges: asInt(row["significant_changes"]),
			ImprovementsCount:  asInt(row["improvements_count"]),
			RegressionsCount:   asInt(row["regressions_count"]),
			BaseTotalNS:        lo.FromPtr(asFloat(row["base_total_ns"])),
			CmpTotalNS:         lo.FromPtr(asFloat(row["cmp_total_ns"])),
			DiffNS:             lo.FromPtr(asFloat(row["diff_ns"])),
			DiffPct:            lo.FromPtr(asFloat(row["diff_pct"])),
		})
	}
	sort.SliceStable(artifact.Summaries, func(a, b int) bool {
		return artifact.Summaries[a].CompareIdx < artifact.Summaries[b].CompareIdx
	})

	topSection, err := s.ReadSection(ctx, SectionTopChanges)
	if err != nil {
		return nil, err
	}
	artifact.TopChanges = assembleTopChanges(topSection)

	return artifact, nil
}

type rankedChange struct {
	rank   int
	change compare.Change
}

func assembleTopChanges(section *Section) []compare.TopChanges {
	type lists struct {
		fileName     string
		improvements []rankedChange
		regressions  []rankedChange
	}

	byIdx := make(map[int]*lists)
	var order []int

	for _, row := range section.Rows {
		idx := asInt(row["compare_idx"])
		l, ok := byIdx[idx]
		if !ok {
			l = &lists{fileName: asString(row["file_name"])}
			byIdx[idx] = l
			order = append(order, idx)
		}

		rc := rankedChange{
			rank: asInt(row["rank"]),
			change: compare.Change{
				FunctionName: asString(row["function_name"]),
				DiffPct:      asFloat(row["diff_pct"]),
				BaseNS:       asFloat(row["base_ns"]),
				CmpNS:        asFloat(row["cmp_ns"]),
				DeltaNS:      lo.FromPtr(asFloat(row["delta_ns"])),
			},
		}

		switch asString(row["kind"]) {
		case KindImprovement:
			l.improvements = append(l.improvements, rc)
		case KindRegression:
			l.regressions = append(l.regressions, rc)
		}
	}

	sort.Ints(order)

	var result []compare.TopChanges
	for _, idx := range order {
		l := byIdx[idx]
		result = append(result, compare.TopChanges{
			CompareIdx:   idx,
			FileName:     l.fileName,
			Improvements: sortByRank(l.improvements),
			Regressions:  sortByRank(l.regressions),
		})
	}
	return result
}

func sortByRank(ranked []rankedChange) []compare.Change {
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].rank < ranked[b].rank })
	return lo.Map(ranked, func(rc rankedChange, _ int) compare.Change { return rc.change })
}
