package upgrader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/database/models"
	"github.com/frequency-chain/frequency-ops/frequency"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/output"
	"github.com/frequency-chain/frequency-ops/ss58"
	"github.com/frequency-chain/frequency-ops/types"
)

// weightSecond is one second of ref_time, in picoseconds.
const weightSecond = 1e12

type Chain interface {
	Info() frequency.ChainInfo
	ScanAccounts(ctx context.Context, pageSize int, fn func(types.AccountRecord) error) error
	UpgradeAccounts(ctx context.Context, ids []types.AccountID) (*frequency.Receipt, error)
}

// BatchStore records the outcome of every submitted chunk.
type BatchStore interface {
	CreateUpgradeBatch(ctx context.Context, batch models.UpgradeBatch) error
}

type Upgrader struct {
	chain   Chain
	store   BatchStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	Opts    *UpgraderOpts
}

type UpgraderOpts struct {
	Chain Chain
	// Store is optional.
	Store   BatchStore
	Upgrade config.UpgradeConfig
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewUpgrader(opts UpgraderOpts) (*Upgrader, error) {
	if opts.Chain == nil {
		return nil, errors.New("upgrader requires a chain client")
	}
	if opts.Upgrade.AccountsPerCall <= 0 {
		return nil, errors.New("accounts per call must be positive")
	}
	if opts.Upgrade.PageSize <= 0 {
		return nil, errors.New("accounts page size must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	return &Upgrader{
		chain:   opts.Chain,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		Opts:    &opts,
	}, nil
}

// Run finds the accounts still on the old balance logic, writes them to the
// eligible accounts file and upgrades them chunk by chunk.
func (u *Upgrader) Run(ctx context.Context) error {
	info := u.chain.Info()
	cfg := u.Opts.Upgrade

	var accounts []types.AccountID
	if cfg.FromFile != "" {
		var err error
		if accounts, err = u.load(cfg.FromFile); err != nil {
			return err
		}
		u.logger.Info("Loaded eligible accounts", "file", cfg.FromFile, "accounts", len(accounts))
	} else {
		var err error
		if accounts, err = u.Scan(ctx); err != nil {
			return err
		}

		addrs, err := encodeAll(accounts, info.SS58Prefix)
		if err != nil {
			return err
		}
		path, err := output.WriteAccounts(cfg.OutputDir, info.Chain, addrs)
		if err != nil {
			return err
		}
		u.logger.Info("Wrote accounts", "file", path)
	}

	if cfg.DryRun {
		u.logger.Info("Dry run, not submitting upgrades", "accounts", len(accounts))
		return nil
	}

	return u.Submit(ctx, accounts)
}

// Scan returns the ids of all accounts whose flags lack types.NewLogicFlag.
func (u *Upgrader) Scan(ctx context.Context) ([]types.AccountID, error) {
	every := u.Opts.Upgrade.ProgressEvery
	var (
		accounts []types.AccountID
		i        int
	)

	err := u.chain.ScanAccounts(ctx, u.Opts.Upgrade.PageSize, func(record types.AccountRecord) error {
		u.metrics.AccountsScanned.Inc()
		if types.Eligible(record.Flags) {
			accounts = append(accounts, record.ID)
			u.metrics.AccountsEligible.Inc()
		}

		if every > 0 && i%every == 0 && i > 0 {
			u.logger.Info(fmt.Sprintf("Checked %d accounts; %d (%s %%) are eligible for upgrade",
				i, len(accounts), Percent(len(accounts), i+1)))
		}
		i++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}

	u.logger.Info(fmt.Sprintf("Found %d eligible accounts in total", len(accounts)))
	return accounts, nil
}

// Submit upgrades accounts in chunks of AccountsPerCall. The first failing
// chunk aborts the rest.
func (u *Upgrader) Submit(ctx context.Context, accounts []types.AccountID) error {
	info := u.chain.Info()

	for i, chunk := range types.Chunks(accounts, u.Opts.Upgrade.AccountsPerCall) {
		if err := ctx.Err(); err != nil {
			return err
		}

		u.logger.Info(fmt.Sprintf("Extrinsic %d: upgrading %d accounts", i+1, len(chunk)))

		batch := models.UpgradeBatch{
			Chain:     info.Chain,
			Batch:     i + 1,
			CreatedAt: time.Now().UTC(),
		}
		var err error
		if batch.Accounts, err = encodeAll(chunk, info.SS58Prefix); err != nil {
			return err
		}

		receipt, err := u.chain.UpgradeAccounts(ctx, chunk)
		if err != nil {
			u.logger.Error("Failed to submit extrinsic", "batch", i+1, "error", err)
			batch.Status = types.Failed
			batch.Error = err.Error()
			u.record(ctx, batch)
			return fmt.Errorf("failed to submit upgrade batch %d: %w", i+1, err)
		}

		u.logger.Info(fmt.Sprintf("Extrinsic included in block %s: consumed %s seconds of weight and paid %s %s",
			receipt.BlockHash,
			WeightSeconds(receipt.RefTime),
			FormatBalance(receipt.Fee, info.TokenDecimals),
			info.TokenSymbol))
		switch {
		case receipt.ExtrinsicIndex < 0:
			u.logger.Warn("Could not locate the extrinsic in its block; event count unknown", "blockHash", receipt.BlockHash)
		case receipt.Events < len(chunk):
			u.logger.Warn(fmt.Sprintf("!! Emitted fewer events than expected: %d < %d", receipt.Events, len(chunk)))
		}

		batch.Status = types.InBlock
		batch.BlockHash = receipt.BlockHash
		batch.ExtrinsicHash = receipt.ExtrinsicHash
		batch.RefTime = receipt.RefTime
		batch.Events = receipt.Events
		if receipt.Fee != nil {
			batch.Fee = receipt.Fee.String()
		}
		u.record(ctx, batch)
	}

	return nil
}

func (u *Upgrader) record(ctx context.Context, batch models.UpgradeBatch) {
	u.metrics.UpgradeBatches.WithLabelValues(string(batch.Status)).Inc()
	if u.store == nil {
		return
	}
	// the batch already happened on chain, a lost record must not stop the run
	if err := u.store.CreateUpgradeBatch(context.WithoutCancel(ctx), batch); err != nil {
		u.logger.Warn("failed to record upgrade batch", "batch", batch.Batch, "error", err)
	}
}

func (u *Upgrader) load(path string) ([]types.AccountID, error) {
	addrs, err := output.ReadAccounts(path)
	if err != nil {
		return nil, err
	}

	accounts := make([]types.AccountID, len(addrs))
	for i, addr := range addrs {
		pub, _, err := ss58.Decode(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to decode account %q: %w", addr, err)
		}
		if len(pub) != len(accounts[i]) {
			return nil, fmt.Errorf("account %q is %d bytes, want %d", addr, len(pub), len(accounts[i]))
		}
		copy(accounts[i][:], pub)
	}
	return accounts, nil
}

func encodeAll(ids []types.AccountID, prefix uint16) ([]string, error) {
	addrs := make([]string, len(ids))
	for i, id := range ids {
		addr, err := ss58.Encode(id[:], prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to encode account %s: %w", id.Hex(), err)
		}
		addrs[i] = addr
	}
	return addrs, nil
}

// Percent is 100*n/total rounded to two decimals.
func Percent(n, total int) string {
	if total == 0 {
		return "0"
	}
	p := math.Round(10000*float64(n)/float64(total)) / 100
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// WeightSeconds converts ref_time to seconds.
func WeightSeconds(refTime uint64) string {
	return strconv.FormatFloat(float64(refTime)/weightSecond, 'f', -1, 64)
}

// FormatBalance renders v planck as a decimal token amount. A nil v is zero.
func FormatBalance(v *big.Int, decimals uint32) string {
	if v == nil {
		return "0"
	}

	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	digits := new(big.Int).Abs(v).String()
	if decimals == 0 {
		return sign + digits
	}

	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return sign + whole
	}
	return sign + whole + "." + frac
}
