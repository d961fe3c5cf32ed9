package compare

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

var _ = Describe("TopN", func() {
	ctx := context.New()

	moversTable := func() *trace.Table {
		return &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "imp_big", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "imp_small", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "reg_big", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "reg_small", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "unchanged", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "base_only", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "imp_big", "mean_ns": "70"}),
				row(1, "run2", map[string]string{"name": "imp_small", "mean_ns": "90"}),
				row(1, "run2", map[string]string{"name": "reg_big", "mean_ns": "120"}),
				row(1, "run2", map[string]string{"name": "reg_small", "mean_ns": "105"}),
				row(1, "run2", map[string]string{"name": "unchanged", "mean_ns": "100"}),
			},
		}
	}

	It("ranks improvements and regressions by absolute delta", func() {
		ranked := TopN(Compare(ctx, moversTable()), DefaultTopLimit)
		Expect(ranked).To(HaveLen(1))

		tc := ranked[0]
		Expect(tc.CompareIdx).To(Equal(1))
		Expect(tc.FileName).To(Equal("run2"))

		Expect(tc.Improvements).To(HaveLen(2))
		Expect(tc.Improvements[0].FunctionName).To(Equal("imp_big"))
		Expect(tc.Improvements[0].DeltaNS).To(Equal(-30.0))
		Expect(tc.Improvements[1].FunctionName).To(Equal("imp_small"))

		Expect(tc.Regressions).To(HaveLen(2))
		Expect(tc.Regressions[0].FunctionName).To(Equal("reg_big"))
		Expect(tc.Regressions[0].DeltaNS).To(Equal(20.0))
		Expect(tc.Regressions[1].FunctionName).To(Equal("reg_small"))
	})

	It("excludes zero deltas and rows without a delta", func() {
		tc := TopN(Compare(ctx, moversTable()), DefaultTopLimit)[0]
		for _, c := range append(tc.Improvements, tc.Regressions...) {
			Expect(c.FunctionName).ToNot(Equal("unchanged"))
			Expect(c.FunctionName).ToNot(Equal("base_only"))
		}
	})

	It("truncates both lists to the limit", func() {
		tc := TopN(Compare(ctx, moversTable()), 1)[0]
		Expect(tc.Improvements).To(HaveLen(1))
		Expect(tc.Regressions).To(HaveLen(1))
		Expect(tc.Improvements[0].FunctionName).To(Equal("imp_big"))
		Expect(tc.Regressions[0].FunctionName).To(Equal("reg_big"))
	})

	It("defaults the limit to ten", func() {
		rows := []trace.Row{}
		for i := 0; i < 12; i++ {
			name := fmt.Sprintf("func%02d", i)
			rows = append(rows,
				row(0, "baseline", map[string]string{"name": name, "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": name, "mean_ns": fmt.Sprintf("%d", 110+i)}),
			)
		}
		table := &trace.Table{Columns: timingColumns, Rows: rows}

		tc := TopN(Compare(ctx, table), 0)[0]
		Expect(tc.Regressions).To(HaveLen(DefaultTopLimit))
		Expect(tc.Improvements).To(BeEmpty())
		// biggest regression first
		Expect(tc.Regressions[0].FunctionName).To(Equal("func11"))
	})

	It("keeps function order among equal deltas", func() {
		table := &trace.Table{
			Columns: timingColumns,
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"name": "zebra", "mean_ns": "100"}),
				row(0, "baseline", map[string]string{"name": "apple", "mean_ns": "100"}),
				row(1, "run2", map[string]string{"name": "zebra", "mean_ns": "90"}),
				row(1, "run2", map[string]string{"name": "apple", "mean_ns": "90"}),
			},
		}

		tc := TopN(Compare(ctx, table), DefaultTopLimit)[0]
		Expect(tc.Improvements).To(HaveLen(2))
		// ties resolve to the engine's sorted function order
		Expect(tc.Improvements[0].FunctionName).To(Equal("apple"))
		Expect(tc.Improvements[1].FunctionName).To(Equal("zebra"))
	})

	It("yields nothing for a degraded result", func() {
		table := &trace.Table{
			Columns: []string{"foo"},
			Rows: []trace.Row{
				row(0, "baseline", map[string]string{"foo": "x"}),
				row(1, "run2", map[string]string{"foo": "y"}),
			},
		}

		Expect(TopN(Compare(ctx, table), DefaultTopLimit)).To(BeEmpty())
	})
})
