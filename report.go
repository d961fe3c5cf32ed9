package quiktracy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/report"
	"github.com/mtreglia-gpsw/quik-tracy/tools"
	"github.com/mtreglia-gpsw/quik-tracy/trace"
)

// ReportMode selects what a single-run report produces.
type ReportMode string

const (
	ReportModeDB   ReportMode = "db"
	ReportModeHTML ReportMode = "html"
)

func ParseReportMode(s string) (ReportMode, error) {
	switch mode := ReportMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ReportModeHTML, nil
	case ReportModeDB, ReportModeHTML:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported report mode %q (want db or html)", s)
	}
}

// ReportRequest describes a single-run report.
type ReportRequest struct {
	// Trace is the trace or CSV file to report on.
	Trace string

	Mode ReportMode

	// OutDir receives the artifacts. Empty means the current directory.
	OutDir string

	// ToolMode picks the backend for trace exports.
	ToolMode tools.Mode
}

type ReportResponse struct {
	ArtifactPath string
	HTMLPath     string
	Rows         int
}

// Report loads one run and persists its raw timing table, the single-trace
// counterpart of Compare.
func Report(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	outDir, err := ensureOutDir(ctx, req.OutDir)
	if err != nil {
		return nil, err
	}

	csvPath, err := ensureCSV(ctx, req.Trace, req.ToolMode)
	if err != nil {
		return nil, err
	}

	source := trace.Source{Path: csvPath}
	table, err := trace.Load(ctx, []trace.Source{source})
	if err != nil {
		return nil, err
	}

	artifactPath := filepath.Join(outDir, report.TraceFilename(source.Name()))
	store := report.NewStore(artifactPath)
	if err := store.Write(ctx, []report.Section{report.TableSection(report.SectionTrace, table)}); err != nil {
		return nil, err
	}

	resp := &ReportResponse{ArtifactPath: artifactPath, Rows: len(table.Rows)}

	if req.Mode == ReportModeHTML || req.Mode == "" {
		htmlPath := report.HTMLFilename(artifactPath)
		if err := report.RenderTraceHTML(ctx, store, htmlPath); err != nil {
			return nil, err
		}
		resp.HTMLPath = htmlPath
	}

	ctx.Logger.Infof("report artifact written to %s", artifactPath)
	return resp, nil
}
