package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kwv/tablesight/sight"
	"golang.org/x/sync/errgroup"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *sight.Config
	Tracker    *sight.EstimateTracker
	MQTTClient *sight.MQTTClient
	Publisher  *sight.Publisher
	Out        io.Writer

	// initMQTT connects the service to the broker; tests swap in a mock
	initMQTT func(*sight.Config, sight.RequestHandler) (*sight.MQTTClient, error)

	// CLI flags
	ConfigFile       string
	ObservationsFile string
	Strategy         string
	IncludeInliers   bool
	Seed             int64
	Workers          int
	GeoJSONOut       string
	LineLength       float64
	HttpPort         int
	MqttMode         bool
	HttpMode         bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Tracker:  sight.NewEstimateTracker(),
		Out:      os.Stdout,
		initMQTT: sight.InitMQTT,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.ObservationsFile = opts.ObservationsFile
	a.Strategy = opts.Strategy
	a.IncludeInliers = opts.IncludeInliers
	a.Seed = opts.Seed
	a.Workers = opts.Workers
	a.GeoJSONOut = opts.GeoJSONOut
	a.LineLength = opts.LineLength
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadOptionalConfig loads the config file for estimator tuning in the
// one-shot modes; a missing file is not an error there
func (a *App) loadOptionalConfig() error {
	if a.Config != nil || a.ConfigFile == "" {
		return nil
	}
	if _, err := os.Stat(a.ConfigFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	config, err := sight.LoadConfig(a.ConfigFile)
	if err != nil {
		return err
	}
	a.Config = config
	log.Printf("Loaded config from %s", a.ConfigFile)
	return nil
}

// estimator builds an estimator from the loaded config with CLI overrides
func (a *App) estimator() *sight.Estimator {
	cfg := sight.DefaultEstimatorConfig()
	if a.Config != nil {
		cfg = a.Config.Estimator
	}
	if a.Seed != 0 {
		cfg.Seed = a.Seed
	}
	if a.Workers > 0 {
		cfg.Workers = a.Workers
	}
	return sight.NewEstimator(cfg)
}

func (a *App) loadObservations() ([]sight.Observation, error) {
	if a.ObservationsFile == "" {
		return nil, fmt.Errorf("--observations is required")
	}
	set, err := sight.LoadObservations(a.ObservationsFile)
	if err != nil {
		return nil, err
	}
	return set.Observations, nil
}

// RunEstimate estimates one observation set and prints the result
func (a *App) RunEstimate() error {
	if err := a.loadOptionalConfig(); err != nil {
		return err
	}
	obs, err := a.loadObservations()
	if err != nil {
		return err
	}
	strategy, err := sight.ParseStrategy(a.Strategy)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := a.estimator().Estimate(obs, strategy, a.IncludeInliers)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(a.Out, "Observations: %d\n", len(obs))
	fmt.Fprintf(a.Out, "Strategy: %s\n", res.Strategy)
	fmt.Fprintf(a.Out, "Origin: (%.3f, %.3f)\n", res.Origin.X, res.Origin.Y)
	fmt.Fprintf(a.Out, "Phi: %.4f°\n", res.PhiDeg)
	fmt.Fprintf(a.Out, "Residual: %.4f\n", res.Residual)
	if a.IncludeInliers {
		fmt.Fprintf(a.Out, "Inliers: %v (%d/%d)\n", res.Inliers, len(res.Inliers), len(obs))
	}
	fmt.Fprintf(a.Out, "Time: %v\n", elapsed.Round(time.Microsecond))

	if a.GeoJSONOut != "" {
		if err := writeGeoJSON(a.GeoJSONOut, obs, res, a.LineLength); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "GeoJSON written to %s\n", a.GeoJSONOut)
	}
	return nil
}

// RunCompare runs every strategy on one observation set and prints a table
func (a *App) RunCompare() error {
	if err := a.loadOptionalConfig(); err != nil {
		return err
	}
	obs, err := a.loadObservations()
	if err != nil {
		return err
	}
	est := a.estimator()

	tw := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tPHI\tORIGIN X\tORIGIN Y\tRESIDUAL\tINLIERS\tTIME")
	for _, s := range sight.Strategies {
		start := time.Now()
		res, err := est.Estimate(obs, s, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.3f\t%.3f\t%.4f\t%d/%d\t%v\n",
			s, res.PhiDeg, res.Origin.X, res.Origin.Y, res.Residual,
			len(res.Inliers), len(obs), time.Since(start).Round(time.Microsecond))
	}
	return tw.Flush()
}

func writeGeoJSON(path string, obs []sight.Observation, res sight.Result, lineLength float64) error {
	data, err := json.MarshalIndent(sight.FeatureCollection(obs, res, lineLength), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

// estimateService estimates tables and fans results out to the tracker and,
// once MQTT is up, the publisher. Safe for concurrent use.
type estimateService struct {
	estimator *sight.Estimator
	tracker   *sight.EstimateTracker

	mu        sync.RWMutex
	publisher *sight.Publisher
}

func (s *estimateService) setPublisher(p *sight.Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// estimate runs one request for tableID and records the result
func (s *estimateService) estimate(tableID string, req *sight.EstimateRequest) (*sight.TableEstimate, error) {
	if len(req.Observations) == 0 {
		return nil, sight.ErrNoObservations
	}

	start := time.Now()
	res, err := s.estimator.Estimate(req.Observations, req.Strategy, req.IncludeInliers)
	if err != nil {
		return nil, err
	}
	log.Printf("[ESTIMATE] %s: %s over %d observations -> origin=(%.2f, %.2f) phi=%.3f° residual=%.4f (%v)",
		tableID, res.Strategy, len(req.Observations), res.Origin.X, res.Origin.Y, res.PhiDeg, res.Residual,
		time.Since(start).Round(time.Microsecond))

	est := s.tracker.Update(tableID, req.Observations, res)

	s.mu.RLock()
	publisher := s.publisher
	s.mu.RUnlock()
	if publisher != nil {
		if err := publisher.PublishEstimate(est); err != nil {
			log.Printf("[MQTT] error publishing estimate for %s: %v", tableID, err)
		}
	}
	return est, nil
}

// handleRequest adapts the service to MQTT request messages
func (s *estimateService) handleRequest(tableID string, req *sight.EstimateRequest, err error) {
	if err != nil {
		log.Printf("[MQTT] dropping request for %s: %v", tableID, err)
		return
	}
	if _, err := s.estimate(tableID, req); err != nil {
		log.Printf("[ESTIMATE] %s: %v", tableID, err)
	}
}

// estimateTables estimates every configured table that has observations,
// inline or at its source URL, in parallel. Per-table failures are joined
// and returned after every table was attempted.
func estimateTables(ctx context.Context, config *sight.Config, svc *estimateService, opts ...sight.FetchOption) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	for _, tc := range config.Tables {
		g.Go(func() error {
			obs := tc.Observations
			if len(obs) == 0 && tc.SourceURL != "" {
				set, err := sight.FetchObservations(gctx, tc.SourceURL, opts...)
				if err != nil {
					fail(fmt.Errorf("table %s: %w", tc.ID, err))
					return nil
				}
				obs = set.Observations
			}
			if len(obs) == 0 {
				log.Printf("[ESTIMATE] %s: no observations configured, waiting for requests", tc.ID)
				return nil
			}

			req := &sight.EstimateRequest{Strategy: config.StrategyFor(tc.ID), IncludeInliers: true, Observations: obs}
			if _, err := svc.estimate(tc.ID, req); err != nil {
				fail(fmt.Errorf("table %s: %w", tc.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// RunService runs MQTT and/or HTTP until interrupted
func (a *App) RunService() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	fmt.Fprintln(a.Out, "Starting tablesight service...")

	config, err := sight.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.ConfigFile, err)
	}
	a.Config = config
	log.Printf("Loaded config from %s (%d tables)", a.ConfigFile, len(config.Tables))

	svc := &estimateService{estimator: a.estimator(), tracker: a.Tracker}

	if a.MqttMode {
		mqttClient, err := a.initMQTT(config, svc.handleRequest)
		if err != nil {
			return fmt.Errorf("initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured in %s", a.ConfigFile)
		}
		a.MQTTClient = mqttClient
		a.Publisher = sight.NewPublisher(mqttClient.Client(), config.MQTT.PublishPrefix)
		svc.setPublisher(a.Publisher)
		fmt.Fprintln(a.Out, "MQTT estimate publisher initialized")
	}

	if err := estimateTables(ctx, config, svc); err != nil {
		log.Printf("[ESTIMATE] startup estimation incomplete: %v", err)
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
			}
		}()
	}

	a.printServiceInfo()

	<-ctx.Done()

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] shutdown: %v", err)
		}
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo() {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintln(a.Out, "  Subscribed topics:")
		for _, tc := range a.Config.Tables {
			if tc.Topic != "" {
				fmt.Fprintf(a.Out, "    - %s (%s)\n", tc.Topic, tc.ID)
			}
		}
		prefix := a.Publisher.Prefix()
		fmt.Fprintf(a.Out, "  Publishing to: %s/{tableId}\n", prefix)
		fmt.Fprintf(a.Out, "  Combined estimates: %s/tables\n", prefix)
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.Out, "  GET  /health                 - Health check")
		fmt.Fprintln(a.Out, "  POST /estimate               - Estimate an observation set")
		fmt.Fprintln(a.Out, "  GET  /tables                 - Latest estimate per table")
		fmt.Fprintln(a.Out, "  GET  /tables/{id}            - Latest estimate for one table")
		fmt.Fprintln(a.Out, "  POST /tables/{id}/estimate   - Estimate and record a table")
		fmt.Fprintln(a.Out, "  GET  /tables/{id}/geojson    - Latest estimate as GeoJSON")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}
