// Vectord is a multi-device text embedding daemon.
//
// This binary starts the vectord HTTP server with full service
// initialization: device resolution, the encoder backend (local ONNX
// via fastembed or remote TEI replicas), the vector store (embedded
// chromem or Qdrant) and telemetry.
//
// Configuration is loaded from ~/.config/vectord/config.yaml with
// environment variable overrides. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	vectord
//
//	# Explicit config file
//	vectord -config /etc/vectord/config.yaml
//
//	# Configure via environment
//	DEVICES_TARGETS=cuda:0,cuda:1 SERVER_HTTP_PORT=9611 vectord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/devices"
	"github.com/fyrsmithlabs/vectord/internal/embedder"
	"github.com/fyrsmithlabs/vectord/internal/encode"
	"github.com/fyrsmithlabs/vectord/internal/logging"
	"github.com/fyrsmithlabs/vectord/internal/server"
	"github.com/fyrsmithlabs/vectord/internal/telemetry"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/vectord/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  vectord           Start the vectord daemon\n")
			fmt.Fprintf(os.Stderr, "  vectord version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("vectord by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the vectord server and blocks until context cancellation.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Create the encoder backend and warm it
//  4. Build the embedder service over the resolved devices
//  5. Open the vector store sized to the encoder's dimension
//  6. Start the HTTP server
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logWrapper, err := logging.NewLogger(logging.FromObservability(cfg.Observability))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logWrapper.Sync() // Best-effort sync on shutdown
	}()
	logger := logWrapper.Underlying()

	logger.Info("Starting vectord",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("encoder", cfg.Encoder.Provider),
		zap.String("model", cfg.Encoder.Model),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close(logger)

	srv, err := server.NewServer(deps.service, deps.store, logger, &server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		ServiceName:     cfg.Observability.ServiceName,
		Model:           cfg.Encoder.Model,
		Dimension:       deps.provider.Dimension(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Strings("targets", deps.service.Targets()))

	// Start server (blocks until context cancellation)
	return srv.Start(ctx)
}

// dependencies holds the encoder and storage stack.
type dependencies struct {
	provider embedder.Provider
	service  *embedder.Service
	store    vectorstore.Store
}

// Close releases encoder and store resources.
func (d *dependencies) Close(logger *zap.Logger) {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.Warn("Vector store close failed", zap.Error(err))
		}
	}
	if d.provider != nil {
		if err := d.provider.Close(); err != nil {
			logger.Warn("Encoder close failed", zap.Error(err))
		}
	}
}

// initDependencies creates the encoder backend, warms it, builds the
// embedder service and opens the vector store.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	provider, err := embedder.NewProvider(embedder.ProviderConfig{
		Provider:          cfg.Encoder.Provider,
		Model:             cfg.Encoder.Model,
		CacheDir:          cfg.Encoder.CacheDir,
		MaxLength:         cfg.Encoder.MaxLength,
		Endpoints:         cfg.Encoder.TEI.Endpoints,
		APIKey:            cfg.Encoder.TEI.APIKey.Value(),
		RequestsPerSecond: cfg.Encoder.TEI.RequestsPerSecond,
		Burst:             cfg.Encoder.TEI.Burst,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	service, err := embedder.NewService(embedder.Config{
		Targets: devices.ParseList(cfg.Devices.Targets),
		Model:   cfg.Encoder.Model,
		Options: encode.Options{
			BatchSize: cfg.Encoder.BatchSize,
			MaxLength: cfg.Encoder.MaxLength,
		},
		QueryInstruction:         cfg.Encoder.QueryInstruction,
		QueryInstructionFormat:   cfg.Encoder.QueryInstructionFormat,
		PassageInstruction:       cfg.Encoder.PassageInstruction,
		PassageInstructionFormat: cfg.Encoder.PassageInstructionFormat,
	}, provider, embedder.WithLogger(logger))
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create embedder service: %w", err)
	}

	// Load the model before accepting traffic. First run downloads it,
	// which can take a while.
	warmStart := time.Now()
	if err := service.Warm(ctx); err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to warm encoder: %w", err)
	}

	logger.Info("Encoder ready",
		zap.String("model", cfg.Encoder.Model),
		zap.Int("dimension", provider.Dimension()),
		zap.Strings("targets", service.Targets()),
		zap.Duration("warmup", time.Since(warmStart)))

	store, err := vectorstore.NewStore(cfg.VectorStore, provider.Dimension(), logger)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	logger.Info("Vector store ready",
		zap.String("provider", cfg.VectorStore.Provider))

	return &dependencies{
		provider: provider,
		service:  service,
		store:    store,
	}, nil
}
