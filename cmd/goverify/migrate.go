package main

import (
	"fmt"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/internal/accounts"
	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables and optionally seed accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Postgres.DSN == "" {
				return fmt.Errorf("postgres dsn is required (postgres.dsn or POSTGRES_DSN)")
			}
			ctx := cmd.Context()

			pool, err := openPostgres(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := stores.MigratePostgres(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("schema applied")

			if seedFile == "" {
				return nil
			}
			src, err := accounts.LoadFile(seedFile)
			if err != nil {
				return err
			}
			dst := accounts.NewPostgres(pool)
			n := 0
			err = src.Each(func(acc goVerify.Account) error {
				n++
				return dst.Upsert(ctx, acc)
			})
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			a.logger.Info("accounts seeded", zap.Int("count", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML accounts file to upsert after migrating")
	return cmd
}
