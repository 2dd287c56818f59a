package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryantjarrett/CTSI-2024/internal/dosed"
	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
)

var (
	serveHTTPAddr       string
	servePopulationPath string
	serveEnginePath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dosing engine HTTP daemon",
	Long: `serve starts the HTTP API: synchronous solves, asynchronous jobs
with cancellation and progress streaming, and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&servePopulationPath, "population", "", "population spec YAML (built-in cohort when empty)")
	serveCmd.Flags().StringVar(&serveEnginePath, "engine", "", "engine settings YAML (built-in defaults when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	spec, err := loadPopulation(servePopulationPath)
	if err != nil {
		return err
	}
	engine, err := loadEngine(serveEnginePath)
	if err != nil {
		return err
	}

	fingerprint, err := spec.Fingerprint()
	if err != nil {
		return err
	}
	logger.Info("population loaded",
		"size", spec.Population.Size,
		"seed", spec.Population.Seed,
		"fingerprint", fingerprint)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	solver := regimen.NewSolver(engine)
	store := dosed.NewJobStore()
	metrics := dosed.NewMetrics()
	executor := dosed.NewJobExecutor(store, solver, spec, dosed.NewNotifier(), metrics)

	httpSrv := &http.Server{
		Addr:              serveHTTPAddr,
		Handler:           dosed.NewHTTPServer(store, executor, solver, spec, metrics).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// No WriteTimeout: progress streams stay open until the job ends.
	}

	go func() {
		logger.Info("HTTP server listening", "addr", serveHTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}
