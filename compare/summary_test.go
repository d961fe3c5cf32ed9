package compare

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

var _ = Describe("Summarize", func() {
	ctx := context.New()

	It("sums totals over the common subset only", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "funcC", "mean_ns": "300"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "150"}),
				row(1, "run2", map[string]string{"name": "funcB", "mean_ns": "400"}),
			},
		}

		summaries := Summarize(Compare(ctx, table))
		Expect(summaries).To(HaveLen(1))

		s := summaries[0]
		Expect(s.CompareIdx).To(Equal(1))
		Expect(s.FileName).To(Equal("run2"))
		Expect(s.BaselineName).To(Equal("baseline"))
		Expect(s.FuncsInCommon).To(Equal(1))
		Expect(s.BaseTotalNS).To(Equal(100.0))
		Expect(s.CmpTotalNS).To(Equal(150.0))
		Expect(s.DiffNS).To(Equal(50.0))
		Expect(s.DiffPct).To(BeNumerically("~", 50.0, 1e-9))
		Expect(s.SignificantChanges).To(Equal(1))
		Expect(s.RegressionsCount).To(Equal(1))
		Expect(s.ImprovementsCount).To(Equal(0))
	})

	It("treats the 5 percent threshold as strict", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "borderline", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "faster", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "slower", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "borderline", "mean_ns": "105"}),
				row(1, "run2", map[string]string{"name": "faster", "mean_ns": "94"}),
				row(1, "run2", map[string]string{"name": "slower", "mean_ns": "112"}),
			},
		}

		s := Summarize(Compare(ctx, table))[0]
		Expect(s.FuncsInCommon).To(Equal(3))
		Expect(s.SignificantChanges).To(Equal(2))
		Expect(s.ImprovementsCount).To(Equal(1))
		Expect(s.RegressionsCount).To(Equal(1))
	})

	It("reports zero percent when the baseline total is zero", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "0"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "10"}),
			},
		}

		s := Summarize(Compare(ctx, table))[0]
		Expect(s.FuncsInCommon).To(Equal(1))
		Expect(s.BaseTotalNS).To(Equal(0.0))
		Expect(s.CmpTotalNS).To(Equal(10.0))
		Expect(s.DiffNS).To(Equal(10.0))
		Expect(s.DiffPct).To(Equal(0.0))
	})

	It("produces one summary per comparison source", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "funcA", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "funcA", "mean_ns": "90"}),
				row(2, "run3", map[string]string{"name": "funcA", "mean_ns": "200"}),
			},
		}

		summaries := Summarize(Compare(ctx, table))
		Expect(summaries).To(HaveLen(2))
		Expect(summaries[0].FileName).To(Equal("run2"))
		Expect(summaries[1].FileName).To(Equal("run3"))
		Expect(summaries[1].CompareIdx).To(Equal(2))
		Expect(summaries[1].DiffPct).To(BeNumerically("~", 100.0, 1e-9))
	})

	It("yields nothing for a degraded result", func() {
		table := &trace.Table{
			Columns: []string{"foo", "bar"},
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"foo": "x"}),
				row(1, "run2", map[string]string{"foo": "y"}),
			},
		}

		Expect(Summarize(Compare(ctx, table))).To(BeEmpty())
	})
})
