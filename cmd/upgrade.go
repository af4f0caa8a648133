package main

import (
	"context"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/frequency"
	"github.com/frequency-chain/frequency-ops/upgrader"
	"github.com/spf13/cobra"
)

func newUpgradeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade-accounts",
		Short: "Upgrade every account still on the old balance storage logic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWithMetrics(cmd.Context(), a.upgradeAccounts)
		},
	}

	flags := cmd.Flags()
	flags.String("ws-url", "", "chain websocket endpoint")
	flags.String("sender-uri", "", "secret URI of the signing account")
	flags.Int("accounts-per-call", 0, "accounts per upgrade_accounts extrinsic")
	flags.String("output-dir", "", "directory of the eligible accounts file")
	flags.Bool("dry-run", false, "scan and write the eligible accounts file without submitting")
	flags.String("from-file", "", "upgrade the accounts listed in a previously written file instead of scanning")
	bindFlags(a.v, flags, map[string]string{
		"ws-url":            config.KeyChainWSURL,
		"sender-uri":        config.KeySenderURI,
		"accounts-per-call": config.KeyAccountsPerCall,
		"output-dir":        config.KeyOutputDir,
		"dry-run":           config.KeyDryRun,
		"from-file":         config.KeyFromFile,
	})

	return cmd
}

func (a *app) upgradeAccounts(ctx context.Context) error {
	chain, err := frequency.NewChainClient(ctx, frequency.ChainClientOpts{
		Endpoint:  a.cfg.RPC.ChainURL,
		SenderURI: a.cfg.Upgrade.SenderURI,
		Logger:    a.logger.With("component", "chain-client"),
		Retry:     a.retryConfig(),
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}
	defer chain.Close()

	opts := upgrader.UpgraderOpts{
		Chain:   chain,
		Upgrade: a.cfg.Upgrade,
		Metrics: a.metrics,
		Logger:  a.logger.With("component", "account-upgrader"),
	}

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close(context.Background())
		opts.Store = db
	}

	u, err := upgrader.NewUpgrader(opts)
	if err != nil {
		return err
	}
	return u.Run(ctx)
}
