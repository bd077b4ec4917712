package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/config"
	"github.com/leonunix/esdoc/internal/logger"
	"github.com/leonunix/esdoc/internal/maintenance"
	"github.com/leonunix/esdoc/internal/service"
)

func main() {
	configPath := flag.String("config", "esdoc.yaml", "path to configuration file")
	once := flag.Bool("once", false, "run every job once and exit (ignore schedules)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("esdoc-maint starting",
		zap.Strings("addresses", cfg.Elasticsearch.Addresses),
		zap.String("index", cfg.Service.Index),
		zap.Int("jobs", len(cfg.Maintenance.Jobs)),
		zap.String("metrics_listen", cfg.Metrics.Listen),
	)

	client, err := backend.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("failed to create Elasticsearch client", zap.Error(err))
	}
	caps, err := backend.CapabilitiesFor(cfg.Elasticsearch.Version, cfg.Elasticsearch.DocType)
	if err != nil {
		log.Fatal("unsupported engine version", zap.String("version", cfg.Elasticsearch.Version), zap.Error(err))
	}
	engine := backend.NewElasticsearch(client, caps)
	for _, job := range cfg.Maintenance.Jobs {
		if !slices.Contains(engine.RawMethods(), job.Method) {
			log.Fatal("unknown raw method in maintenance job",
				zap.String("job", job.Name),
				zap.String("method", job.Method),
				zap.Strings("known", engine.RawMethods()),
			)
		}
	}
	log.Debug("engine capabilities", zap.Any("capabilities", engine.Capabilities()))

	svc, err := service.New(engine, service.OptionsFromConfig(cfg), service.WithLogger(log))
	if err != nil {
		log.Fatal("failed to initialize service", zap.Error(err))
	}

	runner, err := maintenance.NewRunner(cfg.Maintenance.Jobs, svc, maintenance.WithLogger(log))
	if err != nil {
		log.Fatal("failed to initialize maintenance runner", zap.Error(err))
	}

	if *once {
		if err := runner.RunAll(context.Background()); err != nil {
			log.Error("maintenance run failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("maintenance run completed, exiting")
		return
	}

	c := cron.New()
	if err := runner.Schedule(c); err != nil {
		log.Fatal("failed to schedule jobs", zap.Error(err))
	}
	c.Start()
	log.Info("maintenance scheduler started")

	server := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           runner.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	<-c.Stop().Done()
	log.Info("esdoc-maint stopped")
}
