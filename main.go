package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile       string
	ObservationsFile string
	Strategy         string
	IncludeInliers   bool
	Seed             int64
	Workers          int
	GeoJSONOut       string
	LineLength       float64
	EstimateOnly     bool
	CompareOnly      bool
	MqttMode         bool
	HttpMode         bool
	HttpPort         int
}

// runner is the set of modes main can dispatch to
type runner interface {
	ApplyOptions(opts AppOptions)
	RunEstimate() error
	RunCompare() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("tablesight: %v", err)
	}
}

// run parses args, prints the banner to out and dispatches to one mode of app
func run(args []string, out io.Writer, app runner) error {
	fs := flag.NewFlagSet("tablesight", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.ObservationsFile, "observations", "", "Observation set (YAML or JSON) for --estimate and --compare")
	fs.StringVar(&opts.Strategy, "strategy", "", "Search strategy: ransac, adaptive, ternary, gradient, multi-start, dense, legacy (default ransac)")
	fs.BoolVar(&opts.IncludeInliers, "inliers", false, "Include inlier indices in the result")
	fs.Int64Var(&opts.Seed, "seed", 0, "Random seed for consensus sampling (0 keeps the configured seed)")
	fs.IntVar(&opts.Workers, "workers", 0, "Concurrent consensus workers (0 keeps the configured value)")
	fs.StringVar(&opts.GeoJSONOut, "geojson", "", "Write the estimate as GeoJSON to this file")
	fs.Float64Var(&opts.LineLength, "line-length", 0, "Sight line length in GeoJSON output (0 overshoots each landmark range by 10%)")
	fs.BoolVar(&opts.EstimateOnly, "estimate", false, "Estimate one observation set and exit")
	fs.BoolVar(&opts.CompareOnly, "compare", false, "Run every strategy on one observation set and exit")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Serve estimate requests over MQTT")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve estimates over HTTP")
	fs.IntVar(&opts.HttpPort, "http-port", 4040, "HTTP server port")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "tablesight version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.EstimateOnly:
		return app.RunEstimate()
	case opts.CompareOnly:
		return app.RunCompare()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	}

	fmt.Fprintln(out, "tablesight service starting...")
	fmt.Fprintln(out, "Use --estimate --observations FILE to estimate one table")
	fmt.Fprintln(out, "Use --compare --observations FILE to benchmark every strategy")
	fmt.Fprintln(out, "Use --mqtt to serve estimate requests over MQTT")
	fmt.Fprintln(out, "Use --http to serve estimates over HTTP")
	fmt.Fprintln(out, "Use --mqtt --http to run both together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT settings, estimator tuning and tables")
	return nil
}
