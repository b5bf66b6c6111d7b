// secpack builds SEC EDGAR filing packs: one ZIP per company holding the
// filings that matter as of a date, their high-signal exhibits, audit files
// and an analysis prompt.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/secpack/api"
	"github.com/seenimoa/secpack/internal/config"
	"github.com/seenimoa/secpack/internal/edgar"
	"github.com/seenimoa/secpack/internal/logging"
	"github.com/seenimoa/secpack/internal/pack"
	"github.com/seenimoa/secpack/internal/telemetry"
	"github.com/seenimoa/secpack/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global state set up by the root command.
var (
	cfg           *config.Config
	logger        *zap.Logger
	shutdownTrace func(context.Context) error
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "secpack",
	Short: "Build SEC EDGAR filing packs",
	Long: `secpack resolves a ticker against SEC EDGAR, selects the filings that
matter as of a date (latest 10-K, two latest 10-Qs, recent 8-Ks, shelf and
proxy filings, Form 4s), triages their exhibits under a size budget and
writes everything into one ZIP archive with manifests and audit files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		shutdownTrace, err = telemetry.InitTracing(cfg.Tracing.Exporter, version)
		if err != nil {
			return err
		}
		api.Version = version
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTrace != nil {
			if err := shutdownTrace(context.Background()); err != nil {
				return err
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	addRequestFlags(packCmd)
	packCmd.Flags().StringP("out", "o", ".", "directory the archives are written to")
	packCmd.Flags().Int("jobs", 2, "packs built concurrently")

	addRequestFlags(selectCmd)
	selectCmd.Flags().Bool("json", false, "print JSON instead of a table")
	selectCmd.Flags().Bool("audit", false, "list every filing with the reason it was or was not selected")

	serveCmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
	serveCmd.Flags().Bool("no-ui", false, "do not serve the embedded request form")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("secpack %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Request flags ---

func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("as-of", "", "as-of date YYYY-MM-DD (default: today)")
	f.Int("days-back", 0, "8-K and Form 4 window in days (30-730)")
	f.Int("max-ex", 0, "exhibits per filing (1-100)")
	f.Int("max-mb", 0, "total exhibit budget in MB (5-500)")
	f.Bool("exhibits", true, "download exhibits")
	f.Bool("deep", false, "include low-signal exhibits")
	f.String("mode", "", "history listing: recent, full or feed")
}

// requestFromFlags starts from the configured defaults and applies every
// flag the user set.
func requestFromFlags(cmd *cobra.Command, ticker string) (pack.Request, error) {
	req := pack.DefaultRequest(ticker, cfg.Pack)
	f := cmd.Flags()
	if f.Changed("days-back") {
		req.DaysBack, _ = f.GetInt("days-back")
	}
	if f.Changed("max-ex") {
		req.MaxExhibits, _ = f.GetInt("max-ex")
	}
	if f.Changed("max-mb") {
		req.MaxMB, _ = f.GetInt("max-mb")
	}
	if f.Changed("exhibits") {
		req.Exhibits, _ = f.GetBool("exhibits")
	}
	if f.Changed("deep") {
		req.Deep, _ = f.GetBool("deep")
	}
	if f.Changed("mode") {
		m, _ := f.GetString("mode")
		req.Mode = strings.ToLower(strings.TrimSpace(m))
	}
	if s, _ := f.GetString("as-of"); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			return req, &pack.InvalidRequestError{Field: "asOf", Detail: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
		}
		req.AsOf = t
	}
	return req, nil
}

func newBuilder() (*edgar.Client, *pack.Builder) {
	opts := edgar.OptionsFromConfig(cfg.SEC)
	opts.Logger = logger
	client := edgar.NewClient(opts)
	return client, pack.NewBuilder(client, logger)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// --- Pack Command ---

var packCmd = &cobra.Command{
	Use:   "pack [ticker...]",
	Short: "Build filing packs and write them as ZIP files",
	Example: `  secpack pack AAPL
  secpack pack AAPL MSFT --as-of 2024-01-01 --max-mb 50 -o packs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")
		jobs, _ := cmd.Flags().GetInt("jobs")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		reqs := make([]pack.Request, 0, len(args))
		for _, ticker := range args {
			req, err := requestFromFlags(cmd, ticker)
			if err != nil {
				return err
			}
			reqs = append(reqs, req)
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		_, builder := newBuilder()
		g, ctx := errgroup.WithContext(ctx)
		if jobs > 0 {
			g.SetLimit(jobs)
		}
		for _, req := range reqs {
			g.Go(func() error {
				return writePack(ctx, builder, req, outDir)
			})
		}
		return g.Wait()
	},
}

// writePack streams one pack into outDir, renaming it into place only once
// the archive is complete.
func writePack(ctx context.Context, builder *pack.Builder, req pack.Request, outDir string) error {
	p, err := builder.Prepare(ctx, req)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(outDir, ".secpack-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	res, err := p.Stream(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", p.Company.Ticker, err)
	}

	dest := filepath.Join(outDir, p.FileName())
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}

	fmt.Printf("%s  %d filing(s), %d exhibit(s) (%s), %d missing  ->  %s (%s)\n",
		p.Company.Ticker, res.FilingsArchived, res.ExhibitsDownloaded,
		humanize.IBytes(uint64(res.ExhibitBytes)), len(res.Missing),
		dest, humanize.IBytes(uint64(res.ArchiveBytes)))
	return nil
}

// --- Select Command ---

var selectCmd = &cobra.Command{
	Use:   "select [ticker]",
	Short: "Show which filings a pack would contain, without downloading them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		withAudit, _ := cmd.Flags().GetBool("audit")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		_, builder := newBuilder()
		p, err := builder.Prepare(ctx, req)
		if err != nil {
			return err
		}

		if asJSON {
			out := map[string]interface{}{
				"company":  p.Company,
				"as_of":    p.AsOfString(),
				"listing":  p.Listing,
				"selected": p.Selected,
			}
			if withAudit {
				out["audit"] = p.Audit
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("%s (CIK %s) as of %s, %s listing, %d filing(s) listed\n\n",
			p.Company.Ticker, p.Company.CIK, p.AsOfString(), p.Listing, len(p.Filings))
		const row = "  %-10s  %-1s %-10s  %-20s  %s\n"
		fmt.Printf(row, "DATE", "", "FORM", "ACCESSION", "REASON")
		if withAudit {
			for _, c := range p.Audit {
				mark := ""
				if c.Selected {
					mark = "*"
				}
				fmt.Printf(row, c.DateString(), mark, c.Form, c.AccessionNo, c.Reason)
			}
			return nil
		}
		for _, sf := range p.Selected {
			fmt.Printf(row, sf.DateString(), "", sf.Form, sf.AccessionNo, sf.Reason)
		}
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Addr()
		}
		noUI, _ := cmd.Flags().GetBool("no-ui")

		if err := cfg.Validate(); err != nil {
			logger.Warn("EDGAR client not configured; pack requests will fail", zap.Error(err))
		}

		client, _ := newBuilder()
		srv := api.NewServer(cfg, client, logger)
		if noUI {
			srv.SetServeUI(false)
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  secpack status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    EDGAR rate:    %.1f req/s\n", cfg.SEC.RequestsPerSecond)
		fmt.Printf("    Retries:       %d attempts\n", cfg.SEC.Retry.MaxAttempts)
		fmt.Printf("    Defaults:      daysBack=%d maxEx=%d maxMb=%d exhibits=%t deep=%t full=%t\n",
			cfg.Pack.DaysBack, cfg.Pack.MaxExhibits, cfg.Pack.MaxMB,
			cfg.Pack.Exhibits, cfg.Pack.Deep, cfg.Pack.FullHistory)
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Printf("    Tracing:       %s\n", cfg.Tracing.Exporter)
		fmt.Println()

		fmt.Println("  Settings:")
		for _, k := range config.CheckSettings(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
