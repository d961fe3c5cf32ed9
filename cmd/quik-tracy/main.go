package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/flanksource/commons/console"
	"github.com/flanksource/commons/logger"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	quiktracy "github.com/mtreglia-gpsw/quik-tracy"
	"github.com/mtreglia-gpsw/quik-tracy/compare"
	"github.com/mtreglia-gpsw/quik-tracy/context"
	"github.com/mtreglia-gpsw/quik-tracy/shutdown"
	"github.com/mtreglia-gpsw/quik-tracy/tools"
)

const banner = `
╔══════════════════════════╗
║    Q U I K  T R A C Y    ║
╚══════════════════════════╝
`

var (
	verbosity      int
	propertiesFile string
	propertyFlags  []string

	name    string
	host    string
	port    int
	seconds int
	runMode string
	outDir  string

	artifactMode string
	artifactName string
	topLimit     int
	toolMode     string

	captureMode string
	exportMode  string
	reportMode  string
)

func bindGlobalFlags(flags *pflag.FlagSet) {
	flags.CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity")
	flags.StringVar(&propertiesFile, "properties", quiktracy.DefaultPropertiesFile, "Path to a key=value properties file")
	flags.StringArrayVarP(&propertyFlags, "prop", "D", nil, "Override a property, e.g. -D capture.timeout=5m")
}

var root = &cobra.Command{
	Use:           "quik-tracy",
	Short:         "Capture, convert and compare tracy profiler traces",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.StandardLogger().SetLogLevel(verbosity)
		fmt.Print(console.Greenf("%s", banner))

		ctx := context.New()
		if err := quiktracy.LoadPropertiesFile(ctx, propertiesFile); err != nil {
			return err
		}
		return quiktracy.ApplyPropertyOverrides(ctx, propertyFlags)
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record a trace from a running application",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := tools.ParseMode(runMode)
		if err != nil {
			return err
		}

		ctx, cancel := context.New().WithCancel()
		shutdown.AddHookWithPriority("capture", shutdown.PriorityCaptures, cancel)

		path, err := tools.Capture(ctx, tools.CaptureOptions{
			Name:    name,
			Host:    host,
			Port:    port,
			Seconds: seconds,
			Mode:    mode,
			Dir:     outDir,
		})
		if err != nil {
			return err
		}

		fmt.Println(path)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <trace>",
	Short: "Convert a .tracy file to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := tools.ParseMode(runMode)
		if err != nil {
			return err
		}

		ctx, cancel := context.New().WithCancel()
		shutdown.AddHookWithPriority("export", shutdown.PriorityCaptures, cancel)

		path, err := tools.Export(ctx, tools.ExportOptions{Input: args[0], Mode: mode})
		if err != nil {
			return err
		}

		fmt.Println(path)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <trace>",
	Short: "Persist a single run as a queryable artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := quiktracy.ParseReportMode(artifactMode)
		if err != nil {
			return err
		}
		tm, err := tools.ParseMode(toolMode)
		if err != nil {
			return err
		}

		resp, err := quiktracy.Report(context.New(), quiktracy.ReportRequest{
			Trace:    args[0],
			Mode:     mode,
			OutDir:   outDir,
			ToolMode: tm,
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.ArtifactPath)
		if resp.HTMLPath != "" {
			fmt.Println(resp.HTMLPath)
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <trace> <trace> [trace...]",
	Short: "Compare trace files against the first one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := quiktracy.ParseCompareMode(artifactMode)
		if err != nil {
			return err
		}
		tm, err := tools.ParseMode(toolMode)
		if err != nil {
			return err
		}

		resp, err := quiktracy.Compare(context.New(), quiktracy.CompareRequest{
			Sources:  args,
			Mode:     mode,
			OutDir:   outDir,
			Name:     artifactName,
			Limit:    topLimit,
			ToolMode: tm,
		})
		if err != nil {
			return err
		}

		printComparison(resp)

		fmt.Println(resp.ArtifactPath)
		if resp.HTMLPath != "" {
			fmt.Println(resp.HTMLPath)
		}
		return nil
	},
}

func printComparison(resp *quiktracy.CompareResponse) {
	if resp.Result.Degraded() {
		return
	}

	tbl := table.New("FILE", "BASELINE", "COMMON FUNCS", "SIGNIFICANT", "IMPROVED", "REGRESSED", "TOTAL DIFF")
	for _, s := range resp.Summaries {
		tbl.AddRow(s.FileName, s.BaselineName, s.FuncsInCommon, s.SignificantChanges,
			s.ImprovementsCount, s.RegressionsCount, fmt.Sprintf("%+.2f%%", s.DiffPct))
	}
	tbl.Print()

	for _, tc := range resp.TopChanges {
		if len(tc.Improvements) == 0 && len(tc.Regressions) == 0 {
			continue
		}
		fmt.Printf("\ntop movers in %s:\n", tc.FileName)
		for _, c := range tc.Improvements {
			fmt.Println(console.Greenf("  %-40s %s", c.FunctionName, changeLabel(c)))
		}
		for _, c := range tc.Regressions {
			fmt.Println(console.Redf("  %-40s %s", c.FunctionName, changeLabel(c)))
		}
	}
}

func changeLabel(c compare.Change) string {
	label := humanize.SIWithDigits(c.DeltaNS/1e9, 1, "s")
	if c.DiffPct != nil {
		label = fmt.Sprintf("%s (%+.1f%%)", label, *c.DiffPct)
	}
	return label
}

var profilerCmd = &cobra.Command{
	Use:   "profiler [trace]",
	Short: "Open a trace in the tracy profiler, or connect it to a live application",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := tools.ParseMode(runMode)
		if err != nil {
			return err
		}

		opts := tools.ProfileOptions{Host: host, Port: port, Mode: mode, Dir: outDir}
		if len(args) == 1 {
			opts.Trace = args[0]
		}
		return tools.Profile(context.New(), opts)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Capture, export and report in one timestamped directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := tools.ParseMode(captureMode)
		if err != nil {
			return err
		}
		em, err := tools.ParseMode(exportMode)
		if err != nil {
			return err
		}
		rm, err := quiktracy.ParseReportMode(reportMode)
		if err != nil {
			return err
		}

		ctx, cancel := context.New().WithCancel()
		shutdown.AddHookWithPriority("session", shutdown.PriorityCaptures, cancel)

		resp, err := quiktracy.RunSession(ctx, quiktracy.SessionRequest{
			Name:        name,
			Host:        host,
			Port:        port,
			Seconds:     seconds,
			CaptureMode: cm,
			ExportMode:  em,
			ReportMode:  rm,
			OutDir:      outDir,
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.SessionDir)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how each tracy tool can run on this machine",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.New()

		tbl := table.New("TOOL", "BINARY", "IMAGE", "IMAGE SIZE")
		for _, s := range quiktracy.Status(ctx) {
			size := "-"
			if s.ImageSize > 0 {
				size = humanize.Bytes(uint64(s.ImageSize))
			}
			tbl.AddRow(s.Tool, orDash(s.Path), orDash(s.Image), size)
		}
		tbl.Print()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	bindGlobalFlags(root.PersistentFlags())

	for _, cmd := range []*cobra.Command{captureCmd, sessionCmd} {
		cmd.Flags().StringVar(&name, "name", "capture.tracy", "Name of the capture file")
		cmd.Flags().StringVar(&host, "host", "", "Host to connect to (default host.docker.internal)")
		cmd.Flags().IntVar(&port, "port", 0, "Port to connect to (default 8086)")
		cmd.Flags().IntVar(&seconds, "seconds", 0, "Stop the capture after this many seconds")
	}

	captureCmd.Flags().StringVar(&runMode, "mode", "", "Run mode: auto, process or docker (default auto)")
	captureCmd.Flags().StringVar(&outDir, "path", "", "Directory to save the capture file")

	exportCmd.Flags().StringVar(&runMode, "mode", "", "Run mode: auto, process or docker (default auto)")

	reportCmd.Flags().StringVar(&artifactMode, "mode", "", "Report format: db or html (default html)")
	reportCmd.Flags().StringVar(&toolMode, "tool-mode", "", "Run mode for trace exports (default auto)")
	reportCmd.Flags().StringVar(&outDir, "path", "", "Directory to save the report")

	compareCmd.Flags().StringVar(&artifactMode, "mode", "", "Comparison format: db or html (default html)")
	compareCmd.Flags().StringVar(&artifactName, "name", "", "Custom name for the comparison artifact, without extension")
	compareCmd.Flags().IntVar(&topLimit, "limit", 0, "Top changes to keep per list (default 10)")
	compareCmd.Flags().StringVar(&toolMode, "tool-mode", "", "Run mode for trace exports (default auto)")
	compareCmd.Flags().StringVar(&outDir, "path", "", "Directory to save the comparison")

	profilerCmd.Flags().StringVar(&host, "host", "", "Host to connect to for live profiling (default host.docker.internal)")
	profilerCmd.Flags().IntVar(&port, "port", 0, "Port to connect to for live profiling (default 8086)")
	profilerCmd.Flags().StringVar(&runMode, "mode", "", "Run mode: auto, process or docker (default auto)")
	profilerCmd.Flags().StringVar(&outDir, "path", "", "Directory exposed to the containerized profiler")

	sessionCmd.Flags().StringVar(&captureMode, "capture-mode", "", "Capture run mode (default auto)")
	sessionCmd.Flags().StringVar(&exportMode, "export-mode", "", "Export run mode (default auto)")
	sessionCmd.Flags().StringVar(&reportMode, "report-mode", "", "Report format: db or html (default html)")
	sessionCmd.Flags().StringVar(&outDir, "path", "", "Parent directory for the session")

	root.AddCommand(captureCmd, exportCmd, reportCmd, compareCmd, profilerCmd, sessionCmd, statusCmd)
}

func main() {
	shutdown.WaitForSignal()

	if err := root.Execute(); err != nil {
		shutdown.ShutdownAndExit(1, err.Error())
	}
	shutdown.Shutdown()
}
