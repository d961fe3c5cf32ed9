package trace

// Synonym lists for resolving the logical timing columns, in priority order.
// Matching is exact and case sensitive; the first present synonym wins.
var (
	functionColumns = []string{"name", "function", "zone_name", "symbol"}
	avgColumns      = []string{"mean_ns", "avg_ns", "average_ns"}
	minColumns      = []string{"min_ns", "minimum_ns"}
	maxColumns      = []string{"max_ns", "maximum_ns"}
	countColumns    = []string{"counts", "count", "calls"}
)

// Columns holds the physical column name resolved for each logical role.
// An empty string means the role could not be resolved.
type Columns struct {
	Function string
	Avg      string
	Min      string
	Max      string
	Count    string
}

// Resolved reports whether the columns required for comparison are present.
// Min, max and count are optional and may stay empty.
func (c Columns) Resolved() bool {
	return c.Function != "" && c.Avg != ""
}

// DetectColumns resolves logical roles against a set of observed column
// names, typically the union of headers across all loaded sources.
func DetectColumns(names []string) Columns {
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}

	pick := func(synonyms []string) string {
		for _, s := range synonyms {
			if _, ok := present[s]; ok {
				return s
			}
		}
		return ""
	}

	return Columns{
		Function: pick(functionColumns),
		Avg:      pick(avgColumns),
		Min:      pick(minColumns),
		Max:      pick(maxColumns),
		Count:    pick(countColumns),
	}
}
