// Folio serves the portfolio API: profile, inbox, assistant and live chat.
//
// Configuration is loaded from environment variables and an optional YAML
// file. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults (in-memory storage)
//	folio
//
//	# Persist to disk and replicate the inbox over NATS
//	FOLIO_STORAGE_PATH=/var/lib/folio/folio.db FOLIO_REPLICATION_URL=nats://localhost:4222 folio
//
//	# Read a YAML config file
//	folio -config ~/.config/folio/config.yaml
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

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/assistant"
	"github.com/fyrsmithlabs/folio/internal/auth"
	"github.com/fyrsmithlabs/folio/internal/chatbridge"
	"github.com/fyrsmithlabs/folio/internal/config"
	httpserver "github.com/fyrsmithlabs/folio/internal/http"
	"github.com/fyrsmithlabs/folio/internal/inbox"
	"github.com/fyrsmithlabs/folio/internal/logging"
	"github.com/fyrsmithlabs/folio/internal/profile"
	"github.com/fyrsmithlabs/folio/internal/replication"
	"github.com/fyrsmithlabs/folio/internal/services"
	"github.com/fyrsmithlabs/folio/internal/storage"
	"github.com/fyrsmithlabs/folio/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath = flag.String("config", "", "path to a YAML config file")

func main() {
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
			fmt.Fprintf(os.Stderr, "  folio           Start the folio server\n")
			fmt.Fprintf(os.Stderr, "  folio version   Show version information\n")
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

	if err := run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("folio by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the folio server and blocks until ctx is cancelled.
//
// Startup order:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Opens local storage
//  4. Builds the profile, inbox, assistant, auth and chat services
//  5. Starts replication when credentials are saved or configured
//  6. Serves HTTP until ctx is cancelled, then shuts down gracefully
func run(ctx context.Context) error {
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting folio",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.Bool("persistent", cfg.Storage.Path != ""),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	if health := tel.Health(); !health.Healthy {
		logger.Warn("telemetry degraded, using no-op providers", zap.String("reason", health.Degraded))
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close(tel)

	logger.Info("Dependencies initialized",
		zap.String("inbox_mode", string(deps.inbox.Mode())),
		zap.Bool("assistant_available", deps.assistant.Available()))

	reg := services.NewRegistry(services.Options{
		Profile:     deps.profile,
		Inbox:       deps.inbox,
		Replication: deps.replication,
		Assistant:   deps.assistant,
		Auth:        deps.auth,
		Sessions:    deps.sessions,
		Chat:        deps.chat,
	})

	srv, err := httpserver.NewServer(reg, logger, &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		Version:       version,
		ChatWebsiteID: cfg.Chat.WebsiteID,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// loadConfig reads the YAML file when a path is given, or environment
// variables only otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("FOLIO_CONFIG")
	}
	if path != "" {
		return config.LoadWithFile(path)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*zap.Logger, error) {
	logCfg, err := logging.ConfigFromObservability(cfg.Observability)
	if err != nil {
		return nil, err
	}
	if tel.LoggerProvider() == nil {
		logCfg.Output.OTEL = false
		logCfg.Output.Stdout = true
	}
	l, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, err
	}
	return l.Underlying(), nil
}

// dependencies holds the storage handle and the services built on it.
type dependencies struct {
	store       storage.Store
	profile     *profile.Store
	inbox       *inbox.Service
	replication *replication.Manager
	assistant   *assistant.Client
	auth        *auth.Authenticator
	sessions    *auth.Sessions
	chat        *chatbridge.Hub
	logger      *zap.Logger
}

// initDependencies opens storage and builds every service.
//
// Replication failures are not fatal: the inbox stays on local storage and
// the manager reports the error through its status.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %q: %w", cfg.Storage.Path, err)
	}

	profiles := profile.NewStore(store, cfg.Profile.SeedFile, logger.Named("profile"))
	profiles.Load(ctx)

	assistantClient, err := assistant.New(cfg.Assistant, logger.Named("assistant"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create assistant client: %w", err)
	}

	var classifier inbox.Classifier
	if assistantClient.Available() {
		classifier = assistantClient
	}
	inboxSvc := inbox.NewService(inbox.NewLocalRepository(store), classifier, logger.Named("inbox"), inbox.Config{
		ClassifyTimeout: cfg.Assistant.Timeout,
		WriteTimeout:    cfg.Replication.WriteTimeout,
	})
	inboxSvc.Load(ctx)

	manager := replication.NewManager(inboxSvc, store, cfg.Replication.ConnectTimeout, logger.Named("replication"))
	manager.Start(ctx, cfg.Replication)
	if cfg.Replication.ConfigFile != "" {
		if err := manager.WatchConfigFile(ctx, cfg.Replication.ConfigFile); err != nil {
			logger.Warn("replication config file not watched",
				zap.String("path", cfg.Replication.ConfigFile), zap.Error(err))
		}
	}

	chat := chatbridge.NewHub(store, chatbridge.Config{
		DedupWindow:   cfg.Chat.DedupWindow,
		TypingTimeout: cfg.Chat.TypingTimeout,
	}, logger.Named("chat"))

	return &dependencies{
		store:       store,
		profile:     profiles,
		inbox:       inboxSvc,
		replication: manager,
		assistant:   assistantClient,
		auth:        auth.NewAuthenticator(store, cfg.Auth.DefaultPassword.Value(), cfg.Auth.RecoveryCode.Value(), logger.Named("auth")),
		sessions:    auth.NewSessions(store),
		chat:        chat,
		logger:      logger,
	}, nil
}

// Close releases services in reverse order of construction.
func (d *dependencies) Close(tel *telemetry.Telemetry) {
	d.chat.Close()
	if err := d.inbox.Close(); err != nil {
		d.logger.Warn("closing inbox", zap.Error(err))
	}
	if err := d.store.Close(); err != nil {
		d.logger.Warn("closing storage", zap.Error(err))
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		d.logger.Warn("telemetry shutdown", zap.Error(err))
	}
}
