package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/ritzau/graph-analyzer/pkg/analysis"
	"github.com/ritzau/graph-analyzer/pkg/config"
	"github.com/ritzau/graph-analyzer/pkg/dims"
	"github.com/ritzau/graph-analyzer/pkg/graphdef"
	"github.com/ritzau/graph-analyzer/pkg/heuristics"
	"github.com/ritzau/graph-analyzer/pkg/logging"
	"github.com/ritzau/graph-analyzer/pkg/output"
	"github.com/ritzau/graph-analyzer/pkg/pubsub"
	"github.com/ritzau/graph-analyzer/pkg/search"
	"github.com/ritzau/graph-analyzer/pkg/watcher"
	"github.com/ritzau/graph-analyzer/pkg/web"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("graph-analyzer", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: graph-analyzer [flags] [model.pb|model.yaml]\n\n")
		flags.PrintDefaults()
	}
	flags.StringP("input", "i", "", "Frozen GraphDef (.pb) or its YAML form")
	flags.IntSlice("input-dims", nil, "Dimensions of the first input, e.g. 1,300,300,3")
	flags.StringP("target", "t", "all", fmt.Sprintf("Converter target %v", analysis.Targets))
	flags.String("family", heuristics.DefaultFamily, fmt.Sprintf("Model family %v", heuristics.Families()))
	flags.Float64("q-mean", heuristics.DefaultQuantStats.Mean, "Mean of quantized inputs")
	flags.Float64("q-std", heuristics.DefaultQuantStats.Std, "Standard deviation of quantized inputs")
	flags.Int("search-budget", search.DefaultBudget, "Nodes expanded per search before giving up")
	flags.Bool("track-visited", false, "Expand each node at most once per search")
	flags.Bool("json", false, "Print the report as JSON")
	flags.String("write-graphdef", "", "Write the parsed graph to this path (.pb or .yaml)")
	flags.BoolP("watch", "w", false, "Analyze again whenever the model file changes")
	flags.Bool("web", false, "Serve the report over HTTP")
	flags.Int("port", 8080, "Port for web server (only used with --web)")
	flags.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	flags.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	flags.Bool("log-json", false, "Write logs as JSON lines")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if cfg.Input == "" {
		flags.Usage()
		os.Exit(2)
	}

	base, err := logging.ParseLevel(cfg.Verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logging.Configure(logging.Options{
		Level: logging.VerboseLevel(base, cfg.VerboseCnt),
		JSON:  cfg.LogJSON,
	})

	opts, err := analysisOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		logging.Fatal("analysis failed", "error", err)
	}
}

func analysisOptions(cfg *config.Config) (analysis.Options, error) {
	target, err := analysis.ParseTarget(cfg.Target)
	if err != nil {
		return analysis.Options{}, err
	}
	return analysis.Options{
		Target:       target,
		Family:       cfg.Family,
		DeclaredDims: cfg.DeclaredDims(),
		Stats:        heuristics.QuantStats{Mean: cfg.QuantMean, Std: cfg.QuantStd},
		SearchBudget: cfg.SearchBudget,
		TrackVisited: cfg.TrackVisited,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, opts analysis.Options) error {
	// The runner accepts a nil publisher; keep the interface nil unless serving
	var publisher pubsub.Publisher
	if cfg.WebMode {
		p := pubsub.NewAnalysisPublisher()
		defer p.Close()
		publisher = p
	}

	runner := analysis.NewRunner(cfg.Input, opts, dims.NewTerminal(os.Stdin, os.Stderr), publisher)
	if err := analyzeOnce(ctx, runner, cfg, "initial analysis"); err != nil {
		if !cfg.Watch && !cfg.WebMode {
			return err
		}
		logging.Warn("continuing without a report until the next successful run")
	}

	if !cfg.Watch && !cfg.WebMode {
		return nil
	}

	serverErr := make(chan error, 1)
	if cfg.WebMode {
		server := web.NewServer(runner, publisher)
		go func() {
			serverErr <- server.Start(ctx, cfg.Port)
		}()
	}

	if cfg.Watch {
		if err := watch(ctx, runner, cfg); err != nil {
			return err
		}
	}

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logging.Info("shutting down")
		if cfg.WebMode {
			return <-serverErr
		}
		return nil
	}
}

// analyzeOnce runs the analysis and prints its report; failures are logged in watch and web mode
func analyzeOnce(ctx context.Context, runner *analysis.Runner, cfg *config.Config, reason string) error {
	report, err := runner.Run(ctx, reason)
	if err != nil {
		return err
	}

	if cfg.WriteGraphDef != "" {
		if _, idx := runner.Latest(); idx != nil {
			if err := graphdef.WriteFile(cfg.WriteGraphDef, idx.Model()); err != nil {
				return err
			}
			logging.Info("graph written", "path", cfg.WriteGraphDef)
		}
	}

	if cfg.JSON {
		return output.WriteJSON(os.Stdout, report)
	}
	output.PrintReport(os.Stdout, report)
	return nil
}

// watch re-analyzes on every debounced change until ctx is done
func watch(ctx context.Context, runner *analysis.Runner, cfg *config.Config) error {
	fw, err := watcher.NewFileWatcher(runner.Path())
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return errors.WithMessage(err, "watch")
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		change := watcher.AnalyzeChanges(event)
		if !change.Rerun {
			logging.Warn("keeping last report", "reason", change.Reason, "files", len(change.ChangedFiles))
			continue
		}
		if err := analyzeOnce(ctx, runner, cfg, change.Reason); err != nil {
			logging.Error("re-analysis failed", "error", err)
		}
	}
	return nil
}
