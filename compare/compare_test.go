package compare

import (
	"math"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

func row(src int, source string, values map[string]string) trace.Row {
	return trace.Row{SourceIndex: src, SourceName: source, Values: values}
}

func floatString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func abs(f float64) float64 {
	return math.Abs(f)
}

var timingColumns = []string{"name", "mean_ns", "min_ns", "max_ns", "counts"}

var _ = Describe("Compare", func() {
	ctx := context.New()

	It("aligns the union of functions across sources", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100", "counts": "5"}),
				row(0, "baseline", map[string]string{"name": "funcC", "mean_ns": "300"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "150", "counts": "5"}),
				row(1, "run2", map[string]string{"name": "funcB", "mean_ns": "400"}),
			},
		}

		result := Compare(ctx, table)
		Expect(result.Degraded()).To(BeFalse())
		Expect(result.Sources).To(Equal([]string{"baseline", "run2"}))

		// union of {funcA, funcC} and {funcA, funcB}, sorted, once each
		Expect(result.Rows).To(HaveLen(3))
		Expect(result.Rows[0].FunctionName).To(Equal("funcA"))
		Expect(result.Rows[1].FunctionName).To(Equal("funcB"))
		Expect(result.Rows[2].FunctionName).To(Equal("funcC"))

		for _, r := range result.Rows {
			Expect(r.Comparisons).To(HaveLen(1))
		}
	})

	It("computes percent and absolute deltas against the baseline", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "150"}),
			},
		}

		result := Compare(ctx, table)
		entry := result.Rows[0].Comparisons[0]
		Expect(entry.AvgDiffPct).ToNot(BeNil())
		Expect(*entry.AvgDiffPct).To(BeNumerically("~", 50.0, 1e-9))
		Expect(entry.AvgDiffNS).ToNot(BeNil())
		Expect(*entry.AvgDiffNS).To(Equal(50.0))
	})

	It("holds the percent delta identity", func() {
		cases := [][2]float64{
			{100, 150},
			{3, 7},
			{123456.789, 98765.4321},
			{0.001, 0.0005},
		}
		for _, c := range cases {
			base, cmp := c[0], c[1]
			table := &trace.Table{
				Columns: []string{"name", "mean_ns"},
				Rows: []trace.Row{
					row(0, "a", map[string]string{"name": "f", "mean_ns": floatString(base)}),
					row(1, "b", map[string]string{"name": "f", "mean_ns": floatString(cmp)}),
				},
			}
			entry := Compare(ctx, table).Rows[0].Comparisons[0]
			want := (cmp - base) / base * 100
			Expect(*entry.AvgDiffPct).To(BeNumerically("~", want, abs(want)*1e-9))
		}
	})

	It("leaves baseline fields null for functions new in a comparison source", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "funcB", "mean_ns": "400"}),
			},
		}

		result := Compare(ctx, table)
		funcB := result.Rows[1]
		Expect(funcB.FunctionName).To(Equal("funcB"))
		Expect(funcB.Baseline.Avg).To(BeNil())
		Expect(funcB.Baseline.Count).To(BeNil())
		Expect(funcB.Comparisons[0].Avg).ToNot(BeNil())
		Expect(funcB.Comparisons[0].AvgDiffPct).To(BeNil())
		Expect(funcB.Comparisons[0].AvgDiffNS).To(BeNil())
	})

	It("keeps the absolute delta when the baseline avg is zero", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "0"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "75"}),
			},
		}

		entry := Compare(ctx, table).Rows[0].Comparisons[0]
		Expect(entry.AvgDiffPct).To(BeNil())
		Expect(entry.AvgDiffNS).ToNot(BeNil())
		Expect(*entry.AvgDiffNS).To(Equal(75.0))
	})

	It("keeps only the first row per function and source", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "999"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "110"}),
			},
		}

		result := Compare(ctx, table)
		Expect(result.Rows).To(HaveLen(1))
		Expect(*result.Rows[0].Baseline.Avg).To(Equal(100.0))
	})

	It("propagates unparsable avg cells as nulls", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "NaN"}),
			},
		}

		entry := Compare(ctx, table).Rows[0].Comparisons[0]
		Expect(entry.Avg).To(BeNil())
		Expect(entry.AvgDiffPct).To(BeNil())
		Expect(entry.AvgDiffNS).To(BeNil())
	})

	It("degrades to the raw relation when columns cannot be resolved", func() {
		table := &trace.Table{
			Columns: []string{"symbolic", "duration"},
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"symbolic": "funcA", "duration": "100"}),
				row(1, "run2", map[string]string{"symbolic": "funcA", "duration": "150"}),
			},
		}

		result := Compare(ctx, table)
		Expect(result.Degraded()).To(BeTrue())
		Expect(result.Rows).To(BeNil())
		Expect(result.Raw).To(Equal(table))
	})

	It("builds one comparison block per non-baseline source", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "90"}),
				row(2, "run3", map[string]string{"name": "funcA", "mean_ns": "200"}),
			},
		}

		result := Compare(ctx, table)
		Expect(result.Sources).To(HaveLen(3))
		Expect(result.Rows[0].Comparisons).To(HaveLen(2))
		Expect(*result.Rows[0].Comparisons[0].AvgDiffPct).To(BeNumerically("~", -10.0, 1e-9))
		Expect(*result.Rows[0].Comparisons[1].AvgDiffPct).To(BeNumerically("~", 100.0, 1e-9))
	})
})
