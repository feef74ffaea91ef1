package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/infrastructure/persistence"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hierarchy-doctor",
		Short:         "Inspect and repair materialized-path hierarchies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRepairCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// openService connects to the configured database and wires the hierarchy
// service over the pg-backed store. The returned close func releases the
// pool.
func openService(ctx context.Context) (*services.HierarchyService, func(), error) {
	conf := configuration.Use()

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := persistence.NewPgHierarchyStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	svc := services.NewHierarchyService(store, services.WithLogger(conf.Logger()))
	return svc, pool.Close, nil
}

func parseTenant(raw string) (uuid.UUID, error) {
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --tenant value %q: %w", raw, err)
	}
	return tenantID, nil
}
