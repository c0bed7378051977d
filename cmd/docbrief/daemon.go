package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avermeer/docbrief/internal/audit"
	"github.com/avermeer/docbrief/internal/config"
	"github.com/avermeer/docbrief/internal/controlplane"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/avermeer/docbrief/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the docbrief daemon",
	Long:  `Starts the docbrief daemon which provides the HTTP API and runs project workers.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logrus.New()
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	projects, err := store.NewProjectStore(cfg.ProjectsPath())
	if err != nil {
		return err
	}
	tools, err := store.NewAIToolStore(cfg.ToolsPath())
	if err != nil {
		return err
	}
	events, err := audit.Open(cfg.AuditPath())
	if err != nil {
		return err
	}

	registry := worker.NewRegistry(cfg.MaxWorkers)
	service := controlplane.NewService(projects, tools, events, registry, cfg.ReportDir, logger)
	server := controlplane.NewServer(service, cfg.Listen, logger)

	// Projects left in processing by a previous daemon have no worker
	// attached anymore; fail them before accepting new runs.
	if n, err := service.RecoverStaleRuns(); err != nil {
		events.Close()
		return err
	} else if n > 0 {
		logger.WithField("count", n).Warn("recovered stale processing projects")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("server error")
			events.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}

	logger.Info("waiting for in-flight workers")
	if err := registry.Wait(shutdownCtx); err != nil {
		logger.WithError(err).Warn("workers still running at shutdown deadline")
	}

	if err := events.Close(); err != nil {
		logger.WithError(err).Error("audit log close error")
	}

	logger.Info("shutdown complete")
	return nil
}
