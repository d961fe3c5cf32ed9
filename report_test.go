package quiktracy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/report"
)

func TestReport(t *testing.T) {
	ctx := context.New()
	csv := writeFile(t, filepath.Join(t.TempDir(), "frame.csv"), baselineCSV)

	outDir := t.TempDir()
	resp, err := Report(ctx, ReportRequest{Trace: csv, OutDir: outDir})
	if err != nil {
		t.Fatalf("report failed: %s", err)
	}

	if resp.ArtifactPath != filepath.Join(outDir, "tracy_report_frame.db") {
		t.Errorf("artifact path = %q", resp.ArtifactPath)
	}
	if resp.Rows != 3 {
		t.Errorf("rows = %d, want 3", resp.Rows)
	}
	if _, err := os.Stat(resp.HTMLPath); err != nil {
		t.Fatalf("html missing: %s", err)
	}

	section, err := report.NewStore(resp.ArtifactPath).ReadSection(ctx, report.SectionTrace)
	if err != nil {
		t.Fatalf("read back failed: %s", err)
	}
	if len(section.Rows) != 3 {
		t.Errorf("stored rows = %d, want 3", len(section.Rows))
	}
	if len(section.Columns) < 2 || section.Columns[0] != "source_index" || section.Columns[1] != "source_name" {
		t.Errorf("columns = %v", section.Columns)
	}
}

func TestReportDBMode(t *testing.T) {
	ctx := context.New()
	csv := writeFile(t, filepath.Join(t.TempDir(), "frame.csv"), baselineCSV)

	resp, err := Report(ctx, ReportRequest{Trace: csv, Mode: ReportModeDB, OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("report failed: %s", err)
	}
	if resp.HTMLPath != "" {
		t.Errorf("html path = %q, want none", resp.HTMLPath)
	}
}

func TestParseReportMode(t *testing.T) {
	testData := []struct {
		input   string
		mode    ReportMode
		wantErr bool
	}{
		{input: "", mode: ReportModeHTML},
		{input: "html", mode: ReportModeHTML},
		{input: "db", mode: ReportModeDB},
		{input: "xlsx", wantErr: true},
	}

	for _, td := range testData {
		mode, err := ParseReportMode(td.input)
		if td.wantErr {
			if err == nil {
				t.Errorf("ParseReportMode(%q) expected an error", td.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReportMode(%q) failed: %s", td.input, err)
		} else if mode != td.mode {
			t.Errorf("ParseReportMode(%q) = %q, want %q", td.input, mode, td.mode)
		}
	}
}
