package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contact-metrics/engine"
	"contact-metrics/formatter"
	"contact-metrics/metrics"
	"contact-metrics/parser"
	"contact-metrics/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	input          string
	format         string
	table          string
	delimiter      string
	inputDelimiter string
	filter         engine.FilterSpec
	now            string
	persist        bool
	metricsAddr    string
	pushURL        string
	wait           bool
}

func newReportCmd(a *app) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the metric tables for an event file",
		Long: `Compute episodes, handle times, capacity targets and recurrence profiles
for a CSV export of contact events.

Examples:
  contact-metrics report --input events.csv
  contact-metrics report --input events.csv --format json
  contact-metrics report --input events.csv --format csv --table recurrence --delimiter ';'
  contact-metrics report --input - --date 2024-03-04 --sector sac --now "2024-03-04 15:00"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "input CSV file, - for stdin (required)")
	f.StringVarP(&opts.format, "format", "f", "text", "output format: text|json|csv")
	f.StringVarP(&opts.table, "table", "t", formatter.TableCapacity, "table written by --format csv")
	f.StringVarP(&opts.delimiter, "delimiter", "d", ",", "output delimiter for --format csv")
	f.StringVar(&opts.inputDelimiter, "input-delimiter", ",", "input field delimiter")
	f.StringVar(&opts.filter.From, "from", "", "first day to include (YYYY-MM-DD)")
	f.StringVar(&opts.filter.To, "to", "", "last day to include (YYYY-MM-DD)")
	f.StringVar(&opts.filter.Date, "date", "", "single day to include (YYYY-MM-DD), overrides --from/--to")
	f.StringSliceVar(&opts.filter.Sectors, "sector", nil, "sector categories or labels to include")
	f.StringSliceVar(&opts.filter.Agents, "agent", nil, "agents to include")
	f.StringSliceVar(&opts.filter.Channels, "channel", nil, "channels to include")
	f.StringVar(&opts.now, "now", "", "current time for projection (default: wall clock)")
	f.BoolVar(&opts.persist, "persist", false, "persist capacity and recurrence rows to the configured store")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics (e.g., :9090)")
	f.StringVar(&opts.pushURL, "push-url", "", "Pushgateway URL to push metrics to (e.g., http://localhost:9091)")
	f.BoolVar(&opts.wait, "wait", false, "keep running after completion to allow metric scraping")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runReport(cmd *cobra.Command, a *app, opts *reportOptions) error {
	validFormats := map[string]bool{"text": true, "json": true, "csv": true}
	if !validFormats[opts.format] {
		return fmt.Errorf("format must be one of: text, json, csv (got: %s)", opts.format)
	}
	delimiter, err := formatter.ParseDelimiter(opts.delimiter)
	if err != nil {
		return err
	}
	inputDelimiter, err := formatter.ParseDelimiter(opts.inputDelimiter)
	if err != nil {
		return fmt.Errorf("input %w", err)
	}

	loc := a.cfg.Location()
	filter, err := opts.filter.Build(loc)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	if opts.now != "" {
		if now, err = engine.ParseTime(opts.now, loc); err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
	}

	settings, err := engine.SettingsFromConfig(a.cfg)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			a.logger.Info().Msgf("metrics server listening on %s/metrics", opts.metricsAddr)
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				a.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	in, closeInput, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	defer closeInput()

	res, err := parser.Parse(in, parser.Options{
		Location:     loc,
		UnknownLabel: a.cfg.UnknownLabel,
		Comma:        inputDelimiter,
	})
	if err != nil {
		return fmt.Errorf("parse %s: %w", opts.input, err)
	}

	report := engine.New(settings, a.logger).RunParsed(res, engine.Query{Filter: filter, Now: now})

	if opts.persist {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := storage.NewStore(ctx, a.logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		runID := uuid.NewString()
		if err := store.SaveReport(ctx, runID, report, now); err != nil {
			return fmt.Errorf("persist report: %w", err)
		}
		a.logger.Info().Str("run_id", runID).Msg("report persisted")
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		body, err := formatter.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, body)
	case "csv":
		body, err := formatter.FormatCSV(report, opts.table, delimiter)
		if err != nil {
			return err
		}
		fmt.Fprint(out, body)
	default:
		fmt.Fprint(out, formatter.FormatText(report))
	}

	if opts.pushURL != "" {
		if err := push.New(opts.pushURL, "contact_metrics").Gatherer(metrics.Registry).Push(); err != nil {
			a.logger.Error().Err(err).Msg("failed to push to Pushgateway")
		} else {
			a.logger.Info().Msg("metrics pushed to Pushgateway")
		}
	}

	if opts.wait && opts.metricsAddr != "" {
		a.logger.Info().Msg("process kept alive for metric scraping, press Ctrl+C to exit")
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
	}
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return file, func() { file.Close() }, nil
}
