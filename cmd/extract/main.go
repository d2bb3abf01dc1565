// Command extract runs the minimum-wage extraction once and writes the CSV
// dataset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/parser"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/repository"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/retriever"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service"
	"github.com/FACorreiaa/salarios-minimos/pkg/config"
	"github.com/FACorreiaa/salarios-minimos/pkg/db"
	"github.com/FACorreiaa/salarios-minimos/pkg/money"
	"github.com/FACorreiaa/salarios-minimos/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "extract:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	url      string
	pdf      string
	out      string
	xlsx     string
	edition  string
	workers  int
	offline  bool
	mirror   bool
	jsonOut  bool
	logLevel string
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.url, "url", cfg.Source.URL, "source PDF URL")
	fs.StringVar(&o.pdf, "pdf", "", "local PDF to extract instead of downloading")
	fs.StringVar(&o.out, "out", cfg.Extraction.OutputPath, "output CSV path")
	fs.StringVar(&o.xlsx, "xlsx", cfg.Extraction.XLSXPath, "optional XLSX output path")
	fs.StringVar(&o.edition, "edition", cfg.Extraction.Edition, "edition label stored with the mirror")
	fs.IntVar(&o.workers, "workers", cfg.Extraction.Workers, "grids decoded in parallel")
	fs.BoolVar(&o.offline, "offline", cfg.Source.Offline, "use the cached document without downloading")
	fs.BoolVar(&o.mirror, "mirror", cfg.Database.Enabled, "copy the edition to Postgres")
	fs.BoolVar(&o.jsonOut, "json", false, "print the run report as JSON")
	fs.StringVar(&o.logLevel, "log-level", cfg.Observability.LogLevel.String(), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.pdf == "" && o.url == "" {
		return o, errors.New("one of -url or -pdf is required")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	var source service.DocumentSource
	if o.pdf != "" {
		source = retriever.NewLocalSource(o.pdf)
	} else {
		store, err := storage.NewLocalStorage(cfg.Source.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to init document store: %w", err)
		}
		source = retriever.NewRetriever(store, o.url, logger).
			WithTimeout(cfg.Source.DownloadTimeout).
			WithOffline(o.offline)
	}

	pipeline := service.NewPipelineService(source, parser.NewPDFParser(parser.DefaultStreamConfig(), logger), o.out, logger).
		WithWorkers(o.workers).
		WithXLSX(o.xlsx)

	if o.mirror {
		database, err := db.New(ctx, db.Config{DSN: cfg.Database.DSN(), MaxConns: 2}, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.RunMigrations(ctx, repository.Migrations()); err != nil {
			return err
		}
		pipeline.WithMirror(repository.NewPostgresMirror(database.Pool, logger), o.edition)
	}

	report, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printSummary(stdout, report)
}

func printSummary(w io.Writer, r *service.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "document\t%s\n", r.Document.Path)
	if r.Document.FromCache {
		fmt.Fprintf(tw, "\t(cached copy)\n")
	}
	fmt.Fprintf(tw, "pages\t%d (%d without tables, %d unreadable)\n", r.Pages, r.PagesWithoutGrids, r.PageErrors)
	fmt.Fprintf(tw, "grids\t%d\n", r.Grids)
	fmt.Fprintf(tw, "found\t%d\n", r.Found)
	fmt.Fprintf(tw, "retained\t%d\n", r.Retained)
	fmt.Fprintf(tw, "dropped\t%d\n", r.Dropped)
	if r.Retained > 0 {
		fmt.Fprintf(tw, "salaries\t%s .. %s\n",
			money.Colones(r.MinSalary).Display(),
			money.Colones(r.MaxSalary).Display())
	}
	fmt.Fprintf(tw, "output\t%s\n", r.OutputPath)
	if r.XLSXPath != "" {
		fmt.Fprintf(tw, "xlsx\t%s\n", r.XLSXPath)
	}
	if r.MirrorError != "" {
		fmt.Fprintf(tw, "mirror\tfailed: %s\n", r.MirrorError)
	} else if r.Mirrored {
		fmt.Fprintf(tw, "mirror\tok\n")
	}
	fmt.Fprintf(tw, "elapsed\t%s\n", r.Duration.Round(time.Millisecond))
	return tw.Flush()
}
