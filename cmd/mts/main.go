// Command mts runs a train manifest through the crossing scheduler and
// prints the event log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anggasct/mts"
	"github.com/anggasct/mts/pkg/eventlog"
	"github.com/anggasct/mts/pkg/manifest"
	"github.com/anggasct/mts/pkg/observers"
	"github.com/anggasct/mts/visualization"
)

type options struct {
	manifest string
	cap      int
	scale    float64
	output   string
	events   string
	dot      string
	stats    bool
	validate bool
	verbose  bool
}

var errViolations = errors.New("scheduler invariants violated")

func main() {
	opts := options{}
	flag.IntVar(&opts.cap, "cap", mts.DefaultFairnessCap, "consecutive same-direction crossings allowed while the other side waits")
	flag.Float64Var(&opts.scale, "scale", 1, "wall seconds per simulated second")
	flag.StringVar(&opts.output, "o", "", "write the event log to this file instead of stdout")
	flag.StringVar(&opts.events, "events", "", "write JSON-lines events to this file")
	flag.StringVar(&opts.dot, "dot", "", "write a Graphviz crossing timeline to this file")
	flag.BoolVar(&opts.stats, "stats", false, "log crossing statistics after the run")
	flag.BoolVar(&opts.validate, "validate", false, "check scheduler invariants and fail on violations")
	flag.BoolVar(&opts.verbose, "v", false, "log every admission decision")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: mts [flags] <manifest>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	opts.manifest = flag.Arg(0)

	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !opts.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
	defer zap.S().Sync()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		zap.S().Fatalf("mts: %s", err)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	specs, err := manifest.ParseFile(opts.manifest)
	if err != nil {
		return err
	}

	config := mts.DefaultConfig()
	config.FairnessCap = opts.cap
	config.TimeScale = opts.scale
	sim, err := mts.NewSimulation(specs, config)
	if err != nil {
		return err
	}

	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer := eventlog.NewWriter(out)
	sim.AddObserver(writer)

	level := observers.LogWarning
	if opts.verbose {
		level = observers.LogDebug
	}
	sim.AddObserver(observers.NewLoggingObserver(zap.S(), level, "sim"))

	var recorder *eventlog.JSONRecorder
	if opts.events != "" {
		recorder, err = eventlog.CreateJSONRecorder(opts.events)
		if err != nil {
			return err
		}
		defer recorder.Close()
		sim.AddObserver(recorder)
	}

	var timeline *visualization.TimelineRecorder
	if opts.dot != "" {
		timeline = visualization.NewTimelineRecorder()
		sim.AddObserver(timeline)
	}

	var metrics *observers.MetricsObserver
	if opts.stats {
		metrics = observers.NewMetricsObserver()
		sim.AddObserver(metrics)
	}

	var validation *observers.ValidationObserver
	if opts.validate {
		validation = observers.NewValidationObserver(opts.cap)
		sim.AddObserver(validation)
	}

	zap.S().Debugw("starting run", "run", sim.ID(), "trains", len(specs), "cap", opts.cap, "scale", opts.scale)
	res, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	if err := writer.Err(); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
	}

	if timeline != nil {
		gen := visualization.NewDOTGenerator(timeline.Crossings())
		if err := gen.GenerateToFile(opts.dot); err != nil {
			return err
		}
	}

	if metrics != nil {
		streak, dir := metrics.LongestStreak()
		waitID, wait := metrics.LongestWait()
		zap.S().Infow("run statistics",
			"run", res.RunID,
			"crossed", res.Crossed,
			"makespan", eventlog.FormatTimestamp(res.Makespan),
			"crossings", metrics.GetCrossingCounts(),
			"rules", metrics.GetRuleCounts(),
			"average_wait", metrics.AverageWait(),
			"longest_wait_train", waitID,
			"longest_wait", wait,
			"longest_streak", streak,
			"longest_streak_direction", dir.String(),
		)
	}

	if validation != nil && validation.HasViolations() {
		for _, v := range validation.GetViolations() {
			zap.S().Errorw("violation", "detail", v)
		}
		return errViolations
	}
	return nil
}
