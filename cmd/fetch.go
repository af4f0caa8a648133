package main

import (
	"context"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/frequency"
	"github.com/frequency-chain/frequency-ops/indexer"
	"github.com/frequency-chain/frequency-ops/output"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-messages",
		Short: "Export messages of a schema id range to a JSON-lines file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWithMetrics(cmd.Context(), a.fetchMessages)
		},
	}

	flags := cmd.Flags()
	flags.String("rpc-url", "", "messages RPC endpoint")
	flags.Uint("schema-from", 0, "first schema id")
	flags.Uint("schema-to", 0, "schema id to stop before")
	flags.Uint32("start-block", 0, "first block")
	flags.Uint32("last-block", 0, "block to stop before")
	flags.Uint32("step", 0, "blocks per request window")
	flags.Uint32("page-size", 0, "messages per page")
	flags.Bool("stop-on-empty", true, "stop a schema at the first window without messages")
	flags.String("output", "", "message file, appended to")
	flags.String("checkpoint", "", "checkpoint file, used when no database is configured")
	bindFlags(a.v, flags, map[string]string{
		"rpc-url":       config.KeyMessagesRPCURL,
		"schema-from":   config.KeySchemaFrom,
		"schema-to":     config.KeySchemaTo,
		"start-block":   config.KeyStartBlock,
		"last-block":    config.KeyLastBlock,
		"step":          config.KeyBlockStep,
		"page-size":     config.KeyPageSize,
		"stop-on-empty": config.KeyStopOnEmpty,
		"output":        config.KeyMessagesFile,
		"checkpoint":    config.KeyCheckpointFile,
	})

	return cmd
}

func (a *app) fetchMessages(ctx context.Context) error {
	client, err := frequency.NewMessagesClient(ctx, frequency.MessagesClientOpts{
		Endpoint: a.cfg.RPC.MessagesURL,
		Logger:   a.logger.With("component", "messages-client"),
		Timeout:  a.cfg.RPC.Timeout,
		RPS:      a.cfg.RPC.RPS,
		Retry:    a.retryConfig(),
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	file, err := output.NewMessageFile(a.cfg.Fetch.OutputFile)
	if err != nil {
		return err
	}
	defer file.Close()

	opts := indexer.IndexerOpts{
		Source:  client,
		Sinks:   []indexer.Sink{file},
		Fetch:   a.cfg.Fetch,
		Metrics: a.metrics,
		Logger:  a.logger.With("component", "message-fetcher"),
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close(context.Background())
		opts.Sinks = append(opts.Sinks, db)
		opts.Checkpoint = db
	} else if a.cfg.Fetch.CheckpointFile != "" {
		ckpt, err := output.NewFileCheckpoint(a.cfg.Fetch.CheckpointFile)
		if err != nil {
			return err
		}
		opts.Checkpoint = ckpt
	}

	idx, err := indexer.NewIndexer(opts)
	if err != nil {
		return err
	}

	a.logger.Info("writing messages", "file", file.Path())
	return idx.Run(ctx)
}
