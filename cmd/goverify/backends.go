package main

import (
	"context"
	"fmt"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/delivery"
	"github.com/MrEthical07/goVerify/internal/accounts"
	"github.com/MrEthical07/goVerify/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// openRedis connects to cfg.Redis, or starts an in-process miniredis when
// cfg.Redis.Memory is set. The returned func releases both.
func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Redis.Memory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using in-memory redis; records are lost on exit", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		pcfg.MaxConns = cfg.Postgres.MaxConns
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connCtx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// credentialProvider prefers the Postgres accounts table, then the YAML
// accounts file.
func credentialProvider(cfg *config.Config, pool *pgxpool.Pool) (goVerify.CredentialProvider, error) {
	if pool != nil {
		return accounts.NewPostgres(pool), nil
	}
	if cfg.Accounts.File != "" {
		return accounts.LoadFile(cfg.Accounts.File)
	}
	return nil, fmt.Errorf("no account source: set postgres.dsn or accounts.file")
}

func newSender(cfg *config.Config, logger *zap.Logger) goVerify.Sender {
	if cfg.SMTPEnabled() {
		return delivery.NewSMTPSender(cfg.SMTPConfig(), logger)
	}
	logger.Warn("smtp not configured; codes and links are written to the log")
	return delivery.NewLogSender(logger)
}
