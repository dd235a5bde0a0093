package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphan267/xui-hub/api"
	"github.com/tphan267/xui-hub/pkg/config"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/providers/analytics"
	"github.com/tphan267/xui-hub/pkg/providers/auth"
	"github.com/tphan267/xui-hub/pkg/providers/panel"
	"github.com/tphan267/xui-hub/pkg/providers/servers"
	"github.com/tphan267/xui-hub/pkg/storage"
	"github.com/tphan267/xui-hub/pkg/utils"
)

var version = "dev"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "xui-hub",
	Short: "Dashboard for managing multiple 3x-ui panels",
	Long: `xui-hub keeps a registry of remote 3x-ui / x-ui panels and proxies
status and inbound operations to one panel or to all of them at once.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Reset the password of a dashboard admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		return resetPassword(cmd.Context(), username, password)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "log level (debug, info, warn, error)")

	passwdCmd.Flags().String("username", "admin", "admin username")
	passwdCmd.Flags().String("password", "", "new password")
	_ = passwdCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(passwdCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config and storage and initializes every service
func bootstrap(ctx context.Context) (*providers.Registry, *logger.Logger, error) {
	cfg, err := config.Load(version, cfgFile, logLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.NewDefault("XUIHUB")
	appLogger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	store, err := storage.NewSQLiteStorage(cfg.DBPath, appLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := createServiceRegistry(store, appLogger, cfg)
	if err := registry.InitializeAll(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return registry, appLogger, nil
}

func serve() error {
	ctx := context.Background()

	registry, appLogger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer registry.DB().Close()

	cfg := registry.Config()
	appLogger.Info("Starting xui-hub %s", version)
	appLogger.Info("Using config %s and database %s", cfg.File(), cfg.DBPath)
	appLogger.Info("JWT secret: %s", utils.MaskSecret(cfg.JWTSecret))

	if err := registry.StartRunnable(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	srv, err := api.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ServerAddr)
	}()

	for _, url := range utils.ListenURLs(cfg.ServerAddr) {
		appLogger.Info("Dashboard available at %s", url)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown error: %v", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Service shutdown error: %v", err)
	}

	appLogger.Info("Server exited")
	return nil
}

func resetPassword(ctx context.Context, username, password string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	registry, appLogger, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer registry.DB().Close()

	authProvider, err := registry.GetAuth()
	if err != nil {
		return err
	}
	if err := authProvider.ResetPassword(ctx, username, password); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	appLogger.Info("Password updated for %q", username)
	return nil
}

// createServiceRegistry registers the services in dependency order
func createServiceRegistry(store storage.Storage, log *logger.Logger, cfg *config.Config) *providers.Registry {
	registry := providers.NewRegistry(store, log, cfg)

	registry.MustRegister(auth.NewService())
	registry.MustRegister(analytics.NewService())
	registry.MustRegister(servers.NewService())
	registry.MustRegister(panel.NewService())

	return registry
}
