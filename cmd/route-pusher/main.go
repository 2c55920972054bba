package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/route-beacon/route-pusher/internal/config"
	"github.com/route-beacon/route-pusher/internal/db"
	"github.com/route-beacon/route-pusher/internal/export"
	pusherhttp "github.com/route-beacon/route-pusher/internal/http"
	"github.com/route-beacon/route-pusher/internal/inject"
	"github.com/route-beacon/route-pusher/internal/journal"
	"github.com/route-beacon/route-pusher/internal/metrics"
	"github.com/route-beacon/route-pusher/internal/report"
	"github.com/route-beacon/route-pusher/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "push":
		runPush()
	case "check":
		runCheck()
	case "prune":
		runPrune()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: route-pusher <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  push    Bring up the BGP session and advertise the import file")
	fmt.Println("  check   Validate config and preview the import file without a session")
	fmt.Println("  prune   Delete journal rows past the retention window")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// reportWriter returns the stream route lines go to: stdout, or the
// configured output file appended alongside it.
func reportWriter(cfg *config.Config, logger *zap.Logger) (io.Writer, func()) {
	if cfg.Service.OutputFile == "" {
		return os.Stdout, func() {}
	}
	f, err := os.OpenFile(cfg.Service.OutputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Fatal("failed to open output file", zap.Error(err))
	}
	return io.MultiWriter(os.Stdout, f), func() { f.Close() }
}

func buildPipeline(cfg *config.Config, reporter *report.Reporter, sinks []inject.Sink, logger *zap.Logger) *inject.Pipeline {
	filters, err := cfg.BuildFilters()
	if err != nil {
		logger.Fatal("failed to compile filters", zap.Error(err))
	}
	opts := inject.Options{
		File:            cfg.Inject.File,
		DryRun:          cfg.Inject.DryRun,
		PrefixLimit:     cfg.Inject.PrefixLimit,
		LocalIP:         cfg.Session.LocalIP,
		IBGP:            cfg.Session.IBGP(),
		LocalPref:       cfg.Inject.LocalPref,
		NextHopSelf:     cfg.Inject.NextHopSelf,
		NextHopOverride: cfg.Inject.NextHop,
	}
	return inject.NewPipeline(opts, filters, reporter, sinks, logger.Named("inject"))
}

func runPush() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	logger.Info("starting route-pusher",
		zap.Uint32("local_as", cfg.Session.LocalAS),
		zap.Uint32("peer_as", cfg.Session.PeerAS),
		zap.String("peer_ip", cfg.Session.PeerIP),
		zap.Bool("ibgp", cfg.Session.IBGP()),
		zap.Bool("dry_run", cfg.Inject.DryRun),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, closeOut := reportWriter(cfg, logger)
	defer closeOut()
	reporter := report.New(logger.Named("report"), out)

	// Optional sinks.
	var sinks []inject.Sink
	var jrnl *journal.Journal
	if cfg.Journal.Enabled() {
		pool, err := db.NewPool(ctx, cfg.Journal.DSN, cfg.Journal.MaxConns, cfg.Journal.MinConns)
		if err != nil {
			logger.Fatal("failed to connect to journal database", zap.Error(err))
		}
		defer pool.Close()

		jrnl = journal.New(pool, logger.Named("journal"), cfg.Journal.StoreRaw, cfg.Journal.CompressRaw)
		if err := jrnl.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to ensure journal schema", zap.Error(err))
		}
		sinks = append(sinks, jrnl)
	}
	if cfg.Export.Enabled() {
		producer, err := export.NewProducer(cfg.Export, logger.Named("export"))
		if err != nil {
			logger.Fatal("failed to create export producer", zap.Error(err))
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := producer.Close(closeCtx); err != nil {
				logger.Error("export producer close error", zap.Error(err))
			}
		}()
		sinks = append(sinks, producer)
	}

	pipeline := buildPipeline(cfg, reporter, sinks, logger)

	// Dry run previews the import file and exits; no session comes up.
	if cfg.Inject.DryRun {
		n, err := pipeline.Run(ctx, nil)
		if err != nil {
			logger.Fatal("dry run failed", zap.Error(err))
		}
		logger.Info("dry run complete", zap.Int("previewed", n))
		return
	}

	engine, err := session.NewCoreEngine(cfg.Session, logger.Named("engine"))
	if err != nil {
		logger.Fatal("failed to create session engine", zap.Error(err))
	}

	controller := session.NewController(
		engine,
		pipeline,
		cfg.Inject.File != "",
		time.Duration(cfg.Session.TickIntervalSeconds)*time.Second,
		reporter,
		sinks,
		logger.Named("session"),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("engine stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := controller.Run(ctx, engine.Events()); err != nil && ctx.Err() == nil {
			logger.Error("controller stopped", zap.Error(err))
		}
	}()

	var dbChecker pusherhttp.DBChecker
	if jrnl != nil {
		dbChecker = jrnl
	}
	httpServer := pusherhttp.NewServer(cfg.Service.HTTPListen, controller, dbChecker, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("session controller and HTTP server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("session stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, some goroutines may not have finished")
	}

	logger.Info("route-pusher stopped")
}

// runCheck validates the configuration and previews the import file
// without bringing up a session or writing to any sink.
func runCheck() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if cfg.Inject.File == "" {
		logger.Info("config valid, no import file to preview")
		return
	}
	cfg.Inject.DryRun = true

	reporter := report.New(logger.Named("report"), os.Stdout)
	pipeline := buildPipeline(cfg, reporter, nil, logger)

	n, err := pipeline.Run(context.Background(), nil)
	if err != nil {
		logger.Fatal("check failed", zap.Error(err))
	}
	logger.Info("check complete", zap.Int("previewed", n))
}

func runPrune() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	if !cfg.Journal.Enabled() {
		logger.Fatal("prune requires journal.dsn to be configured")
	}

	logger.Info("pruning journal",
		zap.String("dsn", redactDSN(cfg.Journal.DSN)),
		zap.Int("retention_days", cfg.Journal.RetentionDays),
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Journal.DSN, cfg.Journal.MaxConns, cfg.Journal.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to journal database", zap.Error(err))
	}
	defer pool.Close()

	jrnl := journal.New(pool, logger.Named("journal"), cfg.Journal.StoreRaw, cfg.Journal.CompressRaw)
	removed, err := jrnl.Prune(ctx, cfg.Journal.RetentionDays)
	if err != nil {
		logger.Fatal("prune failed", zap.Error(err))
	}

	logger.Info("prune complete", zap.Int64("rows", removed))
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
