package quiktracy

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/tools"
)

// SessionRequest configures one capture, export, report run.
type SessionRequest struct {
	// Name is the capture file name, e.g. capture.tracy.
	Name string

	// Host and Port locate the instrumented application.
	Host string
	Port int

	// Seconds stops the capture after a fixed duration. Zero records until
	// the application disconnects.
	Seconds int

	CaptureMode tools.Mode
	ExportMode  tools.Mode
	ReportMode  ReportMode

	// OutDir is the parent of the session directory. Empty means the
	// current directory.
	OutDir string
}

type SessionResponse struct {
	SessionDir string
	TracePath  string
	CSVPath    string
	ReportPath string
	HTMLPath   string
}

// RunSession captures a trace, converts it, and writes the single-run report
// into a fresh timestamped directory.
func RunSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	outDir, err := ensureOutDir(ctx, req.OutDir)
	if err != nil {
		return nil, err
	}

	sessionDir := filepath.Join(outDir, "tracy_session_"+time.Now().Format("2006.01.02_15.04.05"))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, ctx.Oops().With("dir", sessionDir).Wrap(err)
	}

	tracePath, err := tools.Capture(ctx, tools.CaptureOptions{
		Name:    req.Name,
		Host:    req.Host,
		Port:    req.Port,
		Seconds: req.Seconds,
		Mode:    req.CaptureMode,
		Dir:     sessionDir,
	})
	if err != nil {
		return nil, err
	}

	csvPath, err := tools.Export(ctx, tools.ExportOptions{Input: tracePath, Mode: req.ExportMode})
	if err != nil {
		return nil, err
	}

	reportResp, err := Report(ctx, ReportRequest{Trace: csvPath, Mode: req.ReportMode, OutDir: sessionDir})
	if err != nil {
		return nil, err
	}

	ctx.Logger.Infof("session completed in %s", sessionDir)
	return &SessionResponse{
		SessionDir: sessionDir,
		TracePath:  tracePath,
		CSVPath:    csvPath,
		ReportPath: reportResp.ArtifactPath,
		HTMLPath:   reportResp.HTMLPath,
	}, nil
}

// Status probes every tracy tool in both backends.
func Status(ctx context.Context) []tools.Status {
	return tools.ProbeAll(ctx)
}
