package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/anime-corsair/config"
	"github.com/aluiziolira/anime-corsair/jikan"
	"github.com/aluiziolira/anime-corsair/models"
	"github.com/aluiziolira/anime-corsair/parser"
	"github.com/aluiziolira/anime-corsair/pipeline"
	"github.com/aluiziolira/anime-corsair/server"
	"github.com/aluiziolira/anime-corsair/state"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath  string
	query       string
	top         bool
	page        int
	id          int
	serve       bool
	export      int
	output      string
	format      string
	metricsAddr string
	verbose     bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("corsair", flag.ExitOnError)
	opts := registerFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(fs, opts, cfg)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		slog.Error("corsair failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func registerFlags(fs *flag.FlagSet) *options {
	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Optional config file (yaml, json or toml)")
	fs.StringVar(&opts.query, "q", "", "Search query")
	fs.BoolVar(&opts.top, "top", false, "List the top-ranked anime")
	fs.IntVar(&opts.page, "page", 1, "Listing page")
	fs.IntVar(&opts.id, "id", 0, "Show details for one anime id")
	fs.BoolVar(&opts.serve, "serve", false, "Run the HTTP API")
	fs.IntVar(&opts.export, "export", 0, "Export this many listing pages to -output")
	fs.StringVar(&opts.output, "output", "", "Export output file path")
	fs.StringVar(&opts.format, "format", "", "Export format: csv, json, or dual")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	return opts
}

// applyFlags lets explicitly set flags override file and environment values.
func applyFlags(fs *flag.FlagSet, opts *options, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "export":
			cfg.ExportPages = opts.export
		case "output":
			cfg.OutputFile = opts.output
		case "format":
			cfg.OutputFormat = strings.ToLower(opts.format)
		case "metrics-addr":
			cfg.MetricsAddr = opts.metricsAddr
		case "v":
			cfg.Verbose = opts.verbose
		}
	})
}

func run(ctx context.Context, cfg *config.Config, opts *options, out io.Writer) error {
	client, err := jikan.New(cfg, jikan.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("initialise client: %w", err)
	}
	defer client.Close()

	query := opts.query
	if opts.top {
		query = ""
	}

	switch {
	case opts.serve:
		return serve(ctx, cfg, client)
	case opts.export > 0:
		return export(ctx, cfg, client, query, out)
	case opts.id > 0:
		return showDetail(ctx, client, opts.id, out)
	default:
		return showListing(ctx, client, query, opts.page, out)
	}
}

func serve(ctx context.Context, cfg *config.Config, client *jikan.Client) error {
	query := state.NewQueryStore(ctx, client, slog.Default())
	detail := state.NewDetailStore(ctx, client, slog.Default())

	handlerOpts := server.Options{Logger: slog.Default()}
	if cfg.MetricsAddr == "" {
		handlerOpts.Gatherer = client.Metrics.Registry
	}

	servers := []*http.Server{{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(query, detail, handlerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		})
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		query.Wait()
		detail.Wait()
		return errors.Join(errs...)
	})

	return g.Wait()
}

func export(ctx context.Context, cfg *config.Config, client *jikan.Client, query string, out io.Writer) error {
	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting export",
		slog.String("query", query),
		slog.Int("pages", cfg.ExportPages),
		slog.String("output", cfg.OutputFile),
	)

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, exportErr := pipeline.NewExporter(client, slog.Default()).Export(ctx, p, query, cfg.ExportPages)
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if result != nil {
		printExportSummary(out, result, p.Stats(), cfg.OutputFile)
	}
	if exportErr != nil {
		return exportErr
	}
	return writer.Validate()
}

func showListing(ctx context.Context, client *jikan.Client, query string, page int, out io.Writer) error {
	store := state.NewQueryStore(ctx, client, slog.Default())
	if strings.TrimSpace(query) == "" {
		store.LoadTopRanked(page)
	} else {
		store.LoadTextSearch(strings.TrimSpace(query), page)
	}
	store.Wait()

	snap := store.Snapshot()
	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	printListing(out, snap)
	return nil
}

func showDetail(ctx context.Context, client *jikan.Client, id int, out io.Writer) error {
	store := state.NewDetailStore(ctx, client, slog.Default())
	store.LoadByID(id)
	store.Wait()

	snap := store.Snapshot()
	if snap.Error != "" {
		return errors.New(snap.Error)
	}
	if snap.Item == nil {
		return fmt.Errorf("anime %d not loaded", id)
	}
	printDetail(out, snap.Item)
	return nil
}

func printListing(out io.Writer, snap state.QueryState) {
	title := "Top anime"
	if snap.Query != "" {
		title = fmt.Sprintf("Results for %q", snap.Query)
	}
	fmt.Fprintf(out, "%s (page %d of %d, %d total)\n", title, snap.CurrentPage, snap.TotalPages, snap.TotalResults)
	for _, item := range snap.Results {
		fmt.Fprintf(out, "  %-7d %-5s %-4s %-6s %s\n",
			item.ID,
			parser.ScoreLabel(&item),
			parser.YearLabel(&item),
			parser.TypeLabel(&item),
			item.Title,
		)
	}
	if !snap.HasResults() {
		fmt.Fprintln(out, "  no results")
	}
	if snap.HasNextPage {
		fmt.Fprintf(out, "next: -page %d\n", snap.CurrentPage+1)
	}
}

func printDetail(out io.Writer, a *models.Anime) {
	fmt.Fprintf(out, "%s (#%d)\n", a.Title, a.ID)
	if a.TitleEnglish != "" && a.TitleEnglish != a.Title {
		fmt.Fprintf(out, "  English:  %s\n", a.TitleEnglish)
	}
	fmt.Fprintf(out, "  Score:    %s\n", parser.ScoreLabel(a))
	fmt.Fprintf(out, "  Type:     %s\n", parser.TypeLabel(a))
	fmt.Fprintf(out, "  Year:     %s\n", parser.YearLabel(a))
	if a.Episodes != nil {
		fmt.Fprintf(out, "  Episodes: %d\n", *a.Episodes)
	}
	if a.Status != "" {
		fmt.Fprintf(out, "  Status:   %s\n", a.Status)
	}
	if genres := parser.GenreNames(a); len(genres) > 0 {
		fmt.Fprintf(out, "  Genres:   %s\n", strings.Join(genres, ", "))
	}
	if img := parser.PrimaryImage(a); img != "" {
		fmt.Fprintf(out, "  Image:    %s\n", img)
	}
	if trailer := parser.TrailerURL(a); trailer != "" {
		fmt.Fprintf(out, "  Trailer:  %s\n", trailer)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(out, "\n%s\n", a.Synopsis)
	}
}

func printExportSummary(out io.Writer, result *models.ExportResult, stats pipeline.Stats, outputFile string) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Export complete")
	fmt.Fprintf(out, "  Source:        %s\n", result.Source)
	fmt.Fprintf(out, "  Pages:         %d\n", result.Pages)
	fmt.Fprintf(out, "  Fetched:       %d\n", result.Fetched)
	fmt.Fprintf(out, "  Written:       %d\n", stats.Processed)
	if len(stats.Rejected) > 0 {
		fmt.Fprintf(out, "  Rejected:      %v\n", stats.Rejected)
	}
	if result.FailedPage > 0 {
		fmt.Fprintf(out, "  Failed page:   %d\n", result.FailedPage)
		fmt.Fprintf(out, "  Error types:   %v\n", result.Errors)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", duration)
	fmt.Fprintf(out, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(out, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
