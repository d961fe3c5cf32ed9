package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ComparisonFilename names a comparison artifact. An explicit name wins,
// otherwise the number of compared files is encoded in the name.
func ComparisonFilename(numFiles int, name string) string {
	if name != "" {
		return name + ".db"
	}
	return fmt.Sprintf("tracy_comparison_%d_files.db", numFiles)
}

// TraceFilename names a single-run report artifact after its source.
func TraceFilename(sourceName string) string {
	return fmt.Sprintf("tracy_report_%s.db", sourceName)
}

// HTMLFilename derives the html path from an artifact path.
func HTMLFilename(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".html"
}
