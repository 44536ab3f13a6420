package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/site-payroll/api"
	"github.com/warp/site-payroll/documents"
	"github.com/warp/site-payroll/rules"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}
}

// runServe starts the server and blocks until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for active requests to complete (30s timeout)
//  3. Stop the payroll scheduler
//  4. Close database connection
func runServe(cmd *cobra.Command, v *viper.Viper) error {
	a, err := openApp(cmd, v)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	a.handler.Documents = documents.NewService(a.handler.Registry, cfg.Uploads.Dir, cfg.Uploads.URLPrefix, cfg.Uploads.MaxDocumentBytes)

	if cfg.Seed.TradeCategories {
		created, err := rules.EnsureDefaults(cmd.Context(), a.handler.Registry, a.handler.TradeDefaults)
		if err != nil {
			log.Printf("Warning: Failed to seed trade categories: %v", err)
		} else if len(created) > 0 {
			log.Printf("Seeded trade categories: %v", created)
		}
	}

	scheduler := api.NewPayrollScheduler(a.handler, cfg.Payroll.AutoRecalculateInterval)
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Server.DemoScenarios {
		log.Println("Warning: demo scenarios are enabled; POST /api/scenarios/load wipes the database")
	}
	router := api.NewRouter(a.handler, api.RouterOptions{
		CORSOrigins:   cfg.Server.CORSOrigins,
		DemoScenarios: cfg.Server.DemoScenarios,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost%s", cfg.Addr())
		log.Printf("API available at http://localhost%s/api (database %s)", cfg.Addr(), cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}
