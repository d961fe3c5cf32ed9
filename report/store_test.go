package report

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

func timingRow(src int, source, name, mean string) trace.Row {
	return trace.Row{
		SourceIndex: src,
		SourceName:  source,
		Values:      map[string]string{"name": name, "mean_ns": mean},
	}
}

// two runs: funcA regresses 100 -> 150, funcB only exists in the second run
func movementTable() *trace.Table {
	return &trace.Table{
		Columns: []string{"name", "mean_ns"},
		Rows: []trace.Row{
			timingRow(0, "baseline", "funcA", "100"),
			timingRow(1, "run2", "funcA", "150"),
			timingRow(1, "run2", "funcB", "400"),
		},
	}
}

var _ = Describe("Store", func() {
	ctx := context.New()

	writeComparison := func(path string, table *trace.Table) *Store {
		result := compare.Compare(ctx, table)
		summaries := compare.Summarize(result)
		top := compare.TopN(result, compare.DefaultTopLimit)

		store := NewStore(path)
		Expect(store.Write(ctx, ComparisonSections(result, summaries, top))).To(Succeed())
		return store
	}

	It("round-trips a comparison artifact", func() {
		dir := GinkgoT().TempDir()
		store := writeComparison(filepath.Join(dir, "cmp.db"), movementTable())

		artifact, err := store.Read(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(artifact.Degraded()).To(BeFalse())

		Expect(artifact.Comparison.Columns[:5]).To(Equal([]string{
			"function_name", "baseline_avg", "baseline_min", "baseline_max", "baseline_count",
		}))
		Expect(artifact.Comparison.Columns).To(ContainElements(
			"cmp1_avg", "cmp1_avg_diff_pct", "cmp1_avg_diff_ns",
		))
		Expect(artifact.Comparison.Rows).To(HaveLen(2))

		funcA := artifact.Comparison.Rows[0]
		Expect(asString(funcA["function_name"])).To(Equal("funcA"))
		Expect(lo.FromPtr(asFloat(funcA["baseline_avg"]))).To(Equal(100.0))
		Expect(lo.FromPtr(asFloat(funcA["cmp1_avg"]))).To(Equal(150.0))
		Expect(lo.FromPtr(asFloat(funcA["cmp1_avg_diff_pct"]))).To(BeNumerically("~", 50.0, 1e-9))
		Expect(lo.FromPtr(asFloat(funcA["cmp1_avg_diff_ns"]))).To(Equal(50.0))

		// funcB is new in run2: null baseline, null deltas
		funcB := artifact.Comparison.Rows[1]
		Expect(asString(funcB["function_name"])).To(Equal("funcB"))
		Expect(funcB["baseline_avg"]).To(BeNil())
		Expect(funcB["cmp1_avg_diff_pct"]).To(BeNil())

		Expect(artifact.Summaries).To(HaveLen(1))
		s := artifact.Summaries[0]
		Expect(s.FileName).To(Equal("run2"))
		Expect(s.BaselineName).To(Equal("baseline"))
		Expect(s.FuncsInCommon).To(Equal(1))
		Expect(s.RegressionsCount).To(Equal(1))
		Expect(s.DiffPct).To(BeNumerically("~", 50.0, 1e-9))

		Expect(artifact.TopChanges).To(HaveLen(1))
		Expect(artifact.TopChanges[0].Regressions).To(HaveLen(1))
		Expect(artifact.TopChanges[0].Regressions[0].FunctionName).To(Equal("funcA"))
		Expect(artifact.TopChanges[0].Regressions[0].DeltaNS).To(Equal(50.0))
		Expect(artifact.TopChanges[0].Improvements).To(BeEmpty())
	})

	It("keeps the raw relation with source tags", func() {
		dir := GinkgoT().TempDir()
		store := writeComparison(filepath.Join(dir, "cmp.db"), movementTable())

		raw, err := store.ReadSection(ctx, SectionRawData)
		Expect(err).ToNot(HaveOccurred())
		Expect(raw.Columns).To(Equal([]string{"source_index", "source_name", "name", "mean_ns"}))
		Expect(raw.Rows).To(HaveLen(3))
		Expect(asInt(raw.Rows[0]["source_index"])).To(Equal(0))
		Expect(asString(raw.Rows[0]["source_name"])).To(Equal("baseline"))
		Expect(asInt(raw.Rows[2]["source_index"])).To(Equal(1))
	})

	It("truncates a pre-existing artifact instead of appending", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "cmp.db")

		writeComparison(path, movementTable())

		smaller := &trace.Table{
			Columns: []string{"name", "mean_ns"},
			Rows: []trace.Row{
				timingRow(0, "baseline", "funcZ", "10"),
				timingRow(1, "run2", "funcZ", "12"),
			},
		}
		store := writeComparison(path, smaller)

		artifact, err := store.Read(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(artifact.Comparison.Rows).To(HaveLen(1))
		Expect(asString(artifact.Comparison.Rows[0]["function_name"])).To(Equal("funcZ"))
	})

	It("stores the raw relation for degraded runs without a function_name column", func() {
		dir := GinkgoT().TempDir()
		degraded := &trace.Table{
			Columns: []string{"symbolic", "duration"},
			Rows: []trace.Row{
				{SourceIndex: 0, SourceName: "baseline", Values: map[string]string{"symbolic": "funcA", "duration": "100"}},
				{SourceIndex: 1, SourceName: "run2", Values: map[string]string{"symbolic": "funcA", "duration": "150"}},
			},
		}
		store := writeComparison(filepath.Join(dir, "degraded.db"), degraded)

		artifact, err := store.Read(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(artifact.Degraded()).To(BeTrue())
		Expect(artifact.Comparison.Columns).ToNot(ContainElement("function_name"))
		Expect(artifact.Comparison.Rows).To(HaveLen(2))
		Expect(artifact.Summaries).To(BeEmpty())
		Expect(artifact.TopChanges).To(BeEmpty())
	})

	It("fails with a persistence error for an unwritable destination", func() {
		store := NewStore(filepath.Join(GinkgoT().TempDir(), "missing", "cmp.db"))
		result := compare.Compare(ctx, movementTable())

		err := store.Write(ctx, ComparisonSections(result, compare.Summarize(result), compare.TopN(result, 0)))
		Expect(err).To(HaveOccurred())
		Expect(IsPersistence(err)).To(BeTrue())
	})

	It("renders the comparison artifact to html", func() {
		dir := GinkgoT().TempDir()
		store := writeComparison(filepath.Join(dir, "cmp.db"), movementTable())

		outPath := filepath.Join(dir, "cmp.html")
		Expect(RenderComparisonHTML(ctx, store, outPath)).To(Succeed())

		html, err := os.ReadFile(outPath)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(html)).To(ContainSubstring("funcA"))
		Expect(string(html)).To(ContainSubstring("perf-new"))
		Expect(string(html)).To(ContainSubstring("Top Improvements"))
		Expect(string(html)).To(ContainSubstring("baseline"))
	})
})
