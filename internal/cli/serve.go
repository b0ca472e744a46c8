package cli

import (
	"compare-app/internal/app"
	"compare-app/internal/config"
	"compare-app/internal/handlers"
	"compare-app/internal/logger"
	"compare-app/internal/repository/postgres"
	"compare-app/internal/service/compare"
	"compare-app/internal/service/llm"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	skipMigrations bool
	seedDemo       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compare streaming HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		appConfig, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		database, err := postgres.NewPostgresDB(appConfig.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if !skipMigrations {
			if err := database.RunMigrations(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		if seedDemo {
			if err := postgres.SeedDemoUser(database); err != nil {
				return fmt.Errorf("failed to seed demo user: %w", err)
			}
		}

		cfg := &app.Config{DB: database, AppConfig: appConfig}
		provider := llm.GetProviderFromConfig(&appConfig.LLM, appConfig.Models)

		compareService := compare.NewService(database, provider, appConfig.Compare)
		defer compareService.Close()

		router := handlers.NewRouter(cfg, compareService)

		server := &http.Server{
			Addr:    ":" + appConfig.Server.Port,
			Handler: router,
			// No global write timeout: compare streams are long-lived and
			// bounded per request by the compare timeout instead.
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Log.WithField("port", appConfig.Server.Port).Info("Server starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-stop:
			logger.Log.WithField("signal", sig.String()).Info("Shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not run database migrations on startup")
	serveCmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Create the demo user if it does not exist")
}
