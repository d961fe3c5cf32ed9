package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/context"
)

//go:embed templates/*.html
var templateFS embed.FS

var htmlTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// sub-100ms changes regress softer: flagged as a warning, not an error
const subHundredMS = 100 * 1e6

type filePanel struct {
	Label string
	Name  string
}

type metricPanel struct {
	FileName     string
	Funcs        int
	Significant  int
	Improvements int
	Regressions  int
	Diff         template.HTML
	Class        string
}

type changeItem struct {
	Function string
	Value    template.HTML
	Range    string
	Class    string
}

type changesPanel struct {
	FileName     string
	Improvements []changeItem
	Regressions  []changeItem
}

type htmlTable struct {
	Headers []string
	Rows    [][]template.HTML
}

type comparisonPage struct {
	Title          string
	GenerationDate string
	Files          []filePanel
	TotalFunctions int
	Degraded       bool
	Metrics        []metricPanel
	Changes        []changesPanel
	Table          htmlTable
}

// RenderComparisonHTML reads a comparison artifact back and writes a
// self-contained HTML report next to it.
func RenderComparisonHTML(ctx context.Context, store *Store, outPath string) error {
	artifact, err := store.Read(ctx)
	if err != nil {
		return err
	}

	page := buildComparisonPage(artifact)
	if err := renderToFile(ctx, "comparison.html", outPath, page); err != nil {
		return err
	}

	ctx.Logger.Infof("comparison HTML saved to %s", outPath)
	return nil
}

func buildComparisonPage(artifact *Artifact) comparisonPage {
	page := comparisonPage{
		Title:          "Tracy Performance Comparison Report",
		GenerationDate: time.Now().Format("January 2, 2006 at 3:04 PM"),
		Degraded:       artifact.Degraded(),
	}

	for i, name := range sourceNames(artifact) {
		label := "Baseline"
		if i > 0 {
			label = fmt.Sprintf("Compare %d", i)
		}
		page.Files = append(page.Files, filePanel{Label: label, Name: name})
	}

	if page.Degraded {
		page.Table = rawTable(artifact.Comparison)
		return page
	}

	page.TotalFunctions = len(artifact.Comparison.Rows)

	for _, s := range artifact.Summaries {
		page.Metrics = append(page.Metrics, metricPanel{
			FileName:     s.FileName,
			Funcs:        s.FuncsInCommon,
			Significant:  s.SignificantChanges,
			Improvements: s.ImprovementsCount,
			Regressions:  s.RegressionsCount,
			Diff:         totalDiffCell(s),
			Class:        totalDiffClass(s.DiffPct),
		})
	}

	for _, tc := range artifact.TopChanges {
		page.Changes = append(page.Changes, changesPanel{
			FileName:     tc.FileName,
			Improvements: changeItems(tc.Improvements, "perf-good", "saved"),
			Regressions:  changeItems(tc.Regressions, "perf-bad", "lost"),
		})
	}

	page.Table = comparisonTable(artifact)
	return page
}

func sourceNames(artifact *Artifact) []string {
	if artifact.RawData == nil {
		return nil
	}

	var names []string
	for _, row := range artifact.RawData.Rows {
		idx := asInt(row["source_index"])
		for len(names) <= idx {
			names = append(names, "")
		}
		if names[idx] == "" {
			names[idx] = asString(row["source_name"])
		}
	}
	return names
}

func comparisonTable(artifact *Artifact) htmlTable {
	names := sourceNames(artifact)
	nameFor := func(idx int) string {
		if idx >= 0 && idx < len(names) && names[idx] != "" {
			return names[idx]
		}
		return fmt.Sprintf("compare %d", idx)
	}

	var table htmlTable
	var columns []string
	for _, col := range artifact.Comparison.Columns {
		// the nanosecond delta renders inside the percent cell
		if strings.HasSuffix(col, "_avg_diff_ns") {
			continue
		}
		columns = append(columns, col)
		table.Headers = append(table.Headers, comparisonHeader(col, nameFor))
	}

	for _, row := range artifact.Comparison.Rows {
		var cells []template.HTML
		for _, col := range columns {
			cells = append(cells, comparisonCell(col, row))
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func comparisonHeader(col string, nameFor func(int) string) string {
	if col == "function_name" {
		return "Function Name"
	}

	var prefix string
	rest := col
	if strings.HasPrefix(col, "baseline_") {
		prefix = "Baseline"
		rest = strings.TrimPrefix(col, "baseline_")
	} else if n, tail, ok := splitCmpColumn(col); ok {
		prefix = nameFor(n)
		rest = tail
	}

	switch rest {
	case "avg":
		return prefix + " Avg"
	case "min":
		return prefix + " Min"
	case "max":
		return prefix + " Max"
	case "count":
		return prefix + " Calls"
	case "avg_diff_pct":
		return "Avg Δ%"
	}
	return col
}

// splitCmpColumn decomposes "cmp3_avg_diff_pct" into (3, "avg_diff_pct").
func splitCmpColumn(col string) (int, string, bool) {
	if !strings.HasPrefix(col, "cmp") {
		return 0, "", false
	}
	rest := strings.TrimPrefix(col, "cmp")
	underscore := strings.Index(rest, "_")
	if underscore <= 0 {
		return 0, "", false
	}
	var n int
	if _, err := fmt.Sscanf(rest[:underscore], "%d", &n); err != nil {
		return 0, "", false
	}
	return n, rest[underscore+1:], true
}

func comparisonCell(col string, row map[string]any) template.HTML {
	if col == "function_name" {
		return template.HTML("<strong>" + template.HTMLEscapeString(asString(row[col])) + "</strong>")
	}

	if strings.HasSuffix(col, "_avg_diff_pct") {
		n, _, _ := splitCmpColumn(col)
		base := asFloat(row["baseline_avg"])
		cmp := asFloat(row[fmt.Sprintf("cmp%d_avg", n)])
		return pctCell(asFloat(row[col]), base, cmp)
	}

	if strings.HasSuffix(col, "_count") {
		if v := row[col]; v != nil {
			return template.HTML(template.HTMLEscapeString(asString(v)))
		}
		return "-"
	}

	return timeCell(asFloat(row[col]))
}

func timeCell(ns *float64) template.HTML {
	if ns == nil {
		return `<span class='perf-missing'>N/A</span>`
	}
	return template.HTML(humanTime(*ns))
}

// pctCell renders a percent delta with its absolute time delta, colored by
// direction and significance. A function with no baseline shows as NEW.
func pctCell(pct, base, cmp *float64) template.HTML {
	if pct == nil {
		if base == nil && cmp != nil {
			return `<span class='perf-new'>NEW</span>`
		}
		return `<span class='perf-missing'>N/A</span>`
	}

	cls := pctClass(*pct, base, cmp)
	sign := ""
	if *pct > 0 {
		sign = "+"
	}

	delta := ""
	if base != nil && cmp != nil {
		delta = fmt.Sprintf("<br><span class='delta-time'>%s</span>", humanTime(*cmp-*base))
	}
	return template.HTML(fmt.Sprintf("<span class='%s'>%s%.1f%%%s</span>", cls, sign, *pct, delta))
}

func pctClass(pct float64, base, cmp *float64) string {
	switch {
	case pct < -compare.SignificantPct:
		return "perf-good"
	case pct > compare.SignificantPct:
		if base != nil && cmp != nil && *base < subHundredMS && *cmp < subHundredMS {
			return "perf-warning"
		}
		return "perf-bad"
	default:
		return "perf-neutral"
	}
}

func totalDiffCell(s compare.Summary) template.HTML {
	return template.HTML(fmt.Sprintf("%s (%+.1f%%)", humanTime(s.DiffNS), s.DiffPct))
}

func totalDiffClass(pct float64) string {
	switch {
	case pct < -2:
		return "perf-good"
	case pct > 2:
		return "perf-bad"
	default:
		return "perf-neutral"
	}
}

func changeItems(changes []compare.Change, cls, verb string) []changeItem {
	items := make([]changeItem, 0, len(changes))
	for _, c := range changes {
		pct := ""
		if c.DiffPct != nil {
			pct = fmt.Sprintf("%+.1f%% ", *c.DiffPct)
		}
		item := changeItem{
			Function: c.FunctionName,
			Value:    template.HTML(fmt.Sprintf("%s(%s %s)", pct, humanTime(c.DeltaNS), verb)),
			Class:    cls,
		}
		if c.BaseNS != nil && c.CmpNS != nil {
			item.Range = fmt.Sprintf("%s → %s", humanTime(*c.BaseNS), humanTime(*c.CmpNS))
		}
		items = append(items, item)
	}
	return items
}

func rawTable(section *Section) htmlTable {
	var table htmlTable
	table.Headers = append(table.Headers, section.Columns...)
	for _, row := range section.Rows {
		var cells []template.HTML
		for _, col := range section.Columns {
			cells = append(cells, rawCell(col, row[col]))
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func rawCell(col string, v any) template.HTML {
	if v == nil {
		return "-"
	}
	if strings.HasSuffix(col, "_ns") {
		if f := asFloat(v); f != nil {
			return template.HTML(humanTime(*f))
		}
	}
	return template.HTML(template.HTMLEscapeString(asString(v)))
}

// humanTime formats a nanosecond quantity at a precision fit for the
// magnitude. Negative deltas format by magnitude.
func humanTime(ns float64) string {
	if ns < 0 {
		ns = -ns
	}
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0f ns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1f µs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1f ms", ns/1e6)
	default:
		return fmt.Sprintf("%.2f s", ns/1e9)
	}
}

type tracePage struct {
	Title          string
	GenerationDate string
	SourceName     string
	Table          htmlTable
}

// RenderTraceHTML renders a single-run report artifact as an HTML table.
func RenderTraceHTML(ctx context.Context, store *Store, outPath string) error {
	section, err := store.ReadSection(ctx, SectionTrace)
	if err != nil {
		return err
	}

	names := ""
	if len(section.Rows) > 0 {
		names = asString(section.Rows[0]["source_name"])
	}

	page := tracePage{
		Title:          "Tracy Report",
		GenerationDate: time.Now().Format("January 2, 2006 at 3:04 PM"),
		SourceName:     names,
		Table:          rawTable(section),
	}

	if err := renderToFile(ctx, "trace.html", outPath, page); err != nil {
		return err
	}

	ctx.Logger.Infof("report HTML saved to %s", outPath)
	return nil
}

func renderToFile(ctx context.Context, templateName, outPath string, data any) error {
	oops := ctx.Oops().With("path", outPath).Code(CodePersistence)

	f, err := os.Create(outPath)
	if err != nil {
		return oops.Wrap(err)
	}

	if err := htmlTemplates.ExecuteTemplate(f, templateName, data); err != nil {
		f.Close()
		return oops.Wrap(err)
	}
	return oops.Wrap(f.Close())
}
