package quiktracy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/report"
	"github.com/mtreglia-gpsw/quik-tracy/tools"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

// CompareMode selects what a comparison produces.
type CompareMode string

const (
	// CompareModeDB writes only the sqlite artifact.
	CompareModeDB CompareMode = "db"
	// CompareModeHTML writes the sqlite artifact plus a rendered page.
	CompareModeHTML CompareMode = "html"
)

func ParseCompareMode(s string) (CompareMode, error) {
	switch mode := CompareMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return CompareModeHTML, nil
	case CompareModeDB, CompareModeHTML:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported compare mode %q (want db or html)", s)
	}
}

// CompareRequest describes one comparison run.
type CompareRequest struct {
	// Sources are the trace files to compare, baseline first. CSV files load
	// directly, anything else is exported to CSV first.
	Sources []string

	Mode CompareMode

	// OutDir receives the artifacts. Empty means the current directory.
	OutDir string

	// Name overrides the artifact base name, without extension.
	Name string

	// Limit caps each top change list. Zero applies the default.
	Limit int

	// ToolMode picks the backend for trace exports.
	ToolMode tools.Mode
}

type CompareResponse struct {
	ArtifactPath string
	HTMLPath     string
	Result       *compare.Result
	Summaries    []compare.Summary
	TopChanges   []compare.TopChanges
}

// Compare runs the whole pipeline: convert, load, align, compute deltas,
// persist, and optionally render. The first source is the baseline.
func Compare(ctx context.Context, req CompareRequest) (*CompareResponse, error) {
	if len(req.Sources) < 2 {
		return nil, ctx.Oops().Code(CodeInsufficientSources).
			Errorf("at least 2 trace files are required for a comparison, got %d", len(req.Sources))
	}

	outDir, err := ensureOutDir(ctx, req.OutDir)
	if err != nil {
		return nil, err
	}

	csvPaths := make([]string, 0, len(req.Sources))
	for _, source := range req.Sources {
		csvPath, err := ensureCSV(ctx, source, req.ToolMode)
		if err != nil {
			return nil, err
		}
		csvPaths = append(csvPaths, csvPath)
	}

	sources := lo.Map(csvPaths, func(p string, _ int) trace.Source { return trace.Source{Path: p} })
	table, err := trace.Load(ctx, sources)
	if err != nil {
		return nil, err
	}

	result := compare.Compare(ctx, table)
	summaries := compare.Summarize(result)
	top := compare.TopN(result, req.Limit)

	artifactPath := filepath.Join(outDir, report.ComparisonFilename(len(req.Sources), req.Name))
	store := report.NewStore(artifactPath)
	if err := store.Write(ctx, report.ComparisonSections(result, summaries, top)); err != nil {
		return nil, err
	}

	resp := &CompareResponse{
		ArtifactPath: artifactPath,
		Result:       result,
		Summaries:    summaries,
		TopChanges:   top,
	}

	if req.Mode == CompareModeHTML || req.Mode == "" {
		htmlPath := report.HTMLFilename(artifactPath)
		if err := report.RenderComparisonHTML(ctx, store, htmlPath); err != nil {
			return nil, err
		}
		resp.HTMLPath = htmlPath
	}

	ctx.Logger.Infof("comparison artifact written to %s", artifactPath)
	return resp, nil
}

// ensureCSV converts trace files on the fly and passes CSVs through.
func ensureCSV(ctx context.Context, path string, mode tools.Mode) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return path, nil
	}
	return tools.Export(ctx, tools.ExportOptions{Input: path, Mode: mode})
}

func ensureOutDir(ctx context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", ctx.Oops().With("dir", dir).Wrap(err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", ctx.Oops().With("dir", abs).Wrap(err)
	}
	return abs, nil
}
