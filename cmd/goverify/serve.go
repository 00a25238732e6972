package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/internal/server"
	promexport "github.com/MrEthical07/goVerify/metrics/export/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var memoryRedis bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the verification HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if memoryRedis {
				a.cfg.Redis.Memory = true
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&memoryRedis, "memory-redis", false, "run against an in-process redis (dev only)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	ec, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	rdb, closeRedis, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	b := goVerify.New().WithConfig(ec).WithRedis(rdb).WithLogger(logger)

	if cfg.Postgres.DSN != "" {
		pool, err := openPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.Postgres.Records {
			b.WithPostgres(pool)
		}
		creds, err := credentialProvider(cfg, pool)
		if err != nil {
			return err
		}
		b.WithCredentialProvider(creds)
	} else {
		creds, err := credentialProvider(cfg, nil)
		if err != nil {
			return err
		}
		b.WithCredentialProvider(creds)
	}

	engine, err := b.WithSender(newSender(cfg, logger)).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.Bool("secret_configured", report.SecretConfigured),
		zap.Int("code_digits", report.CodeDigits),
		zap.Int("max_attempts", report.MaxAttempts),
		zap.Bool("ip_throttle", report.IPThrottleActive),
		zap.Bool("reset_links", report.ResetLinkEnabled),
		zap.Bool("signin_tokens", report.SignInTokensEnabled),
	)

	handler := server.NewRouter(server.Deps{
		Engine:         engine,
		Logger:         logger,
		Metrics:        promexport.NewExporter(engine).Handler(),
		TrustForwarded: cfg.Server.TrustForwarded,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
