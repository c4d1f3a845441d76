package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobtrack/api"
	audithook "github.com/xraph/jobtrack/audit_hook"
	"github.com/xraph/jobtrack/engine"
	"github.com/xraph/jobtrack/report"
)

func newServeCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job engine and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.Log, os.Stderr))
		},
	}
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	s, closeBackend, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing backend client", slog.String("error", err.Error()))
		}
	}()

	opts := []engine.Option{
		engine.WithConfig(cfg.Engine),
		engine.WithLogger(logger),
	}
	if cfg.Audit.Enabled {
		auditOpts := []audithook.Option{audithook.WithLogger(logger)}
		if len(cfg.Audit.Actions) > 0 {
			auditOpts = append(auditOpts, audithook.WithActions(cfg.Audit.Actions...))
		}
		opts = append(opts, engine.WithExtension(audithook.New(audithook.NewSlogRecorder(logger), auditOpts...)))
	}

	eng, err := engine.New(s, opts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	engine.Register(eng, report.Definition(cfg.Report.StepDelay))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(eng, logger).Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", cfg.Engine.ShutdownTimeout))

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Engine.ShutdownTimeout)
		defer cancel()

		// Stop intake first so the drain sees a fixed set of jobs.
		httpErr := srv.Shutdown(sctx)
		return errors.Join(httpErr, eng.Stop(sctx))
	})
	return g.Wait()
}
