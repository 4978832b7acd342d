package main

import (
	"context"
	"fmt"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tyrowin/ichat/internal/auth"
	"github.com/Tyrowin/ichat/internal/chat"
	"github.com/Tyrowin/ichat/internal/config"
	"github.com/Tyrowin/ichat/internal/files"
	"github.com/Tyrowin/ichat/internal/logging"
	"github.com/Tyrowin/ichat/internal/metrics"
	"github.com/Tyrowin/ichat/internal/server"
)

var (
	servePort     string
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen address, overrides the configured port")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads .env, the config file and the command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	cfg.Sanitize()
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	collector := metrics.New()
	coordinator := chat.New(chat.NewGateway(log.Named("gateway"), collector), log.Named("chat"), chat.Options{
		HistoryLimit: cfg.RoomHistoryLimit,
		Recorder:     collector,
		Presence: chat.PresenceOptions{
			SweepInterval: cfg.Presence.SweepInterval,
			IdleAfter:     cfg.Presence.IdleAfter,
			AwayAfter:     cfg.Presence.AwayAfter,
			ManualTTL:     cfg.Presence.ManualTTL,
		},
	})

	store, err := files.NewDiskStore(cfg.Files.UploadDir)
	if err != nil {
		return fmt.Errorf("preparing upload directory: %w", err)
	}
	fileService := files.NewService(files.NewTable(), store, files.Options{
		MaxSize:  cfg.Files.MaxUploadSize,
		Notifier: coordinator,
		Recorder: collector,
		Logger:   log.Named("files"),
	})

	tokens := auth.NewJWTManager(auth.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	srv := server.New(server.Deps{
		Config:      cfg,
		Logger:      log.Named("http"),
		Coordinator: coordinator,
		Files:       fileService,
		Verifier:    tokens,
		Metrics:     collector,
	})

	runCtx, stopCoordinator := context.WithCancel(context.Background())
	coordinatorDone := make(chan struct{})
	go func() {
		defer close(coordinatorDone)
		coordinator.Run(runCtx)
	}()

	httpServer := server.CreateServer(cfg.Port, srv.SetupRoutes())
	go func() {
		if err := server.StartServer(httpServer, log); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	log.Info("ichat started",
		zap.String("addr", cfg.Port),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("anonymous", cfg.Auth.AllowAnonymous),
		zap.String("uploads", store.Dir()),
	)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				defer srv.Close()
				return server.ShutdownServer(ctx, httpServer, log)
			},
			"chat": func(ctx context.Context) error {
				// clients must detach before the coordinator stops
				hubErr := srv.Hub().Shutdown(remaining(ctx, cfg.ShutdownTimeout))
				stopCoordinator()
				select {
				case <-coordinatorDone:
				case <-ctx.Done():
					return ctx.Err()
				}
				return hubErr
			},
		},
	)

	exitCode := <-wait
	log.Info("ichat stopped", zap.Int("exit_code", exitCode))
	_ = log.Sync()
	os.Exit(exitCode)
	return nil
}

// remaining returns the time left before ctx expires, or fallback when it
// has no deadline.
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return fallback
}
