package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/girderhq/girder/internal/auth"
	"github.com/girderhq/girder/internal/common/cnst"
	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/credential"
	"github.com/girderhq/girder/internal/credential/storage"
	"github.com/girderhq/girder/internal/provider"
	"github.com/girderhq/girder/internal/ratelimit"
	"github.com/girderhq/girder/internal/server"
	"github.com/girderhq/girder/pkg/helper"
	"github.com/girderhq/girder/pkg/logger"
	"github.com/girderhq/girder/pkg/metrics"
	"github.com/girderhq/girder/pkg/trace"
	"github.com/girderhq/girder/pkg/utils"
	"github.com/girderhq/girder/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "Girder credential gateway",
		Long:  `Girder holds construction platform credentials behind a single trust boundary and serves the OAuth2, connect, webhook and status endpoints around it`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of girder",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("girder version %s\n", version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Test the configuration without starting the service",
		Run: func(cmd *cobra.Command, args []string) {
			_, cfgPath, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "configuration test failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("configuration file %s test is successful\n", cfgPath)
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the running girder service",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, _, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			if cfg.Server.PID == "" {
				fmt.Fprintln(os.Stderr, "no PID file configured under server.pid")
				os.Exit(1)
			}
			if err := utils.SignalPIDFile(helper.GetPIDPath(cfg.Server.PID), syscall.SIGTERM); err != nil {
				fmt.Fprintf(os.Stderr, "failed to stop service: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("stop signal sent")
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", cnst.GirderYaml, "path to the configuration file")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(stopCmd)
}

func loadConfig() (*config.GirderConfig, string, error) {
	cfg, cfgPath, err := config.LoadConfig[config.GirderConfig](configPath)
	if err != nil {
		return nil, cfgPath, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

func run() {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.OAuth2 == nil {
		fmt.Fprintln(os.Stderr, "invalid configuration: auth.oauth2 section is required")
		os.Exit(1)
	}

	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting girder",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath),
	)

	if cfg.Server.PID != "" {
		pidPath := helper.GetPIDPath(cfg.Server.PID)
		pidFile := utils.NewPIDFile(pidPath)
		if err := pidFile.Write(); err != nil {
			zapLogger.Fatal("failed to write PID file",
				zap.String("path", pidPath),
				zap.Error(err))
		}
		defer func() {
			_ = pidFile.Remove()
		}()
		zapLogger.Info("PID file written", zap.String("path", pidPath))
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		shutdownTracing, err := trace.InitTracing(context.Background(), cfg.Tracing, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				zapLogger.Error("failed to shut down tracing", zap.Error(err))
			}
		}()
	}

	credStore, err := storage.NewStore(&cfg.Vault.Storage)
	if err != nil {
		zapLogger.Fatal("failed to initialize credential storage", zap.Error(err))
	}
	defer func() {
		_ = credStore.Close()
	}()

	vault, err := credential.NewVault(&cfg.Vault, credStore, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize credential vault", zap.Error(err))
	}
	defer vault.Close()

	registry, err := provider.NewRegistry(cfg.Providers)
	if err != nil {
		zapLogger.Fatal("failed to build provider registry", zap.Error(err))
	}

	limiter := ratelimit.New(cfg.RateLimit, zapLogger)
	defer limiter.Close()

	authSrv, err := auth.NewServer(zapLogger, cfg.Auth.OAuth2)
	if err != nil {
		zapLogger.Fatal("failed to initialize authorization server", zap.Error(err))
	}
	defer func() {
		_ = authSrv.Close()
	}()

	srv, err := server.NewServer(zapLogger, cfg, authSrv, vault, registry, limiter, metrics.New(cfg.Metrics))
	if err != nil {
		zapLogger.Fatal("failed to initialize HTTP server", zap.Error(err))
	}
	srv.RegisterRoutes()
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("received signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown error", zap.Error(err))
	}
	zapLogger.Info("girder stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
