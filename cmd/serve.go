package main

import (
	"context"
	"errors"

	"github.com/frequency-chain/frequency-ops/api"
	"github.com/frequency-chain/frequency-ops/config"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored messages, checkpoints and upgrade batches over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().String("port", "", "API port")
	bindFlags(a.v, cmd.Flags(), map[string]string{"port": config.KeyAPIPort})

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New(config.KeyDatabaseURI + " is required to serve the API")
	}
	defer db.Close(context.Background())

	server, err := api.NewServer(api.ServerOpts{
		Logger:   a.logger.With("component", "api-server"),
		Store:    db,
		Port:     a.cfg.APIPort,
		Gatherer: a.registry,
	})
	if err != nil {
		return err
	}

	return server.StartServer(ctx)
}
