package upgrader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/database/models"
	"github.com/frequency-chain/frequency-ops/frequency"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/output"
	"github.com/frequency-chain/frequency-ops/ss58"
	"github.com/frequency-chain/frequency-ops/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	info     frequency.ChainInfo
	records  []types.AccountRecord
	scanErr  error
	failAt   int
	receipts int
	// uninspected returns receipts whose extrinsic was not found in the block
	uninspected bool
	batches     [][]types.AccountID
}

func (f *fakeChain) Info() frequency.ChainInfo { return f.info }

func (f *fakeChain) ScanAccounts(_ context.Context, _ int, fn func(types.AccountRecord) error) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	for _, r := range f.records {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeChain) UpgradeAccounts(_ context.Context, ids []types.AccountID) (*frequency.Receipt, error) {
	f.batches = append(f.batches, ids)
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return nil, errors.New("extrinsic rejected: invalid")
	}
	events := len(ids) + 2
	if f.receipts > 0 {
		events = f.receipts
	}
	receipt := &frequency.Receipt{
		BlockHash:     "0xabc",
		ExtrinsicHash: "0xdef",
		RefTime:       2_500_000_000,
		Fee:           big.NewInt(1_234_500_000),
		Events:        events,
	}
	if f.uninspected {
		receipt.ExtrinsicIndex = -1
		receipt.Events = 0
	}
	return receipt, nil
}

type memStore struct {
	batches []models.UpgradeBatch
}

func (m *memStore) CreateUpgradeBatch(_ context.Context, batch models.UpgradeBatch) error {
	m.batches = append(m.batches, batch)
	return nil
}

func accountID(b byte) types.AccountID {
	var id types.AccountID
	for i := range id {
		id[i] = b
	}
	return id
}

func records(n int, eligible func(i int) bool) []types.AccountRecord {
	out := make([]types.AccountRecord, n)
	for i := range out {
		flags := new(big.Int).Set(types.NewLogicFlag)
		if eligible(i) {
			flags = big.NewInt(0)
		}
		out[i] = types.AccountRecord{ID: accountID(byte(i)), Flags: flags}
	}
	return out
}

func upgradeConfig(t *testing.T) config.UpgradeConfig {
	return config.UpgradeConfig{
		SenderURI:       "//Alice",
		PageSize:        1000,
		AccountsPerCall: 2,
		ProgressEvery:   5000,
		OutputDir:       t.TempDir(),
	}
}

func chainInfo() frequency.ChainInfo {
	return frequency.ChainInfo{Chain: "Development", TokenDecimals: 8, TokenSymbol: "UNIT", SS58Prefix: 42}
}

func TestScanFiltersByFlag(t *testing.T) {
	chain := &fakeChain{
		info: chainInfo(),
		records: []types.AccountRecord{
			{ID: accountID(1), Flags: big.NewInt(0)},
			{ID: accountID(2), Flags: new(big.Int).Set(types.NewLogicFlag)},
			{ID: accountID(3), Flags: nil},
		},
	}
	m := metrics.New(nil)
	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: upgradeConfig(t), Metrics: m})
	require.NoError(t, err)

	got, err := u.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.AccountID{accountID(1), accountID(3)}, got)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.AccountsScanned))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AccountsEligible))
}

func TestScanProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	chain := &fakeChain{info: chainInfo(), records: records(7, func(i int) bool { return i%2 == 0 })}
	cfg := upgradeConfig(t)
	cfg.ProgressEvery = 3
	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: cfg, Logger: logger})
	require.NoError(t, err)

	_, err = u.Scan(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "Checked 0 accounts")
	// index 3: accounts 0 and 2 eligible out of 4 seen
	assert.Contains(t, out, "Checked 3 accounts; 2 (50 %) are eligible for upgrade")
	assert.Contains(t, out, "Checked 6 accounts; 4 (57.14 %) are eligible for upgrade")
	assert.Contains(t, out, "Found 4 eligible accounts in total")
}

func TestScanError(t *testing.T) {
	chain := &fakeChain{info: chainInfo(), scanErr: errors.New("connection reset")}
	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: upgradeConfig(t)})
	require.NoError(t, err)

	assert.ErrorContains(t, u.Run(context.Background()), "connection reset")
	assert.Empty(t, chain.batches)
}

func TestRunWritesFileAndSubmitsChunks(t *testing.T) {
	chain := &fakeChain{info: chainInfo(), records: records(5, func(i int) bool { return i != 1 })}
	store := &memStore{}
	m := metrics.New(nil)
	cfg := upgradeConfig(t)

	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Store: store, Upgrade: cfg, Metrics: m})
	require.NoError(t, err)
	require.NoError(t, u.Run(context.Background()))

	addrs, err := output.ReadAccounts(filepath.Join(cfg.OutputDir, "upgradable-accs-Development.json"))
	require.NoError(t, err)
	require.Len(t, addrs, 4)
	pub, prefix, err := ss58.Decode(addrs[1])
	require.NoError(t, err)
	assert.Equal(t, uint16(42), prefix)
	want := accountID(2)
	assert.Equal(t, want[:], pub)

	require.Len(t, chain.batches, 2)
	assert.Equal(t, []types.AccountID{accountID(0), accountID(2)}, chain.batches[0])
	assert.Equal(t, []types.AccountID{accountID(3), accountID(4)}, chain.batches[1])

	require.Len(t, store.batches, 2)
	assert.Equal(t, types.InBlock, store.batches[0].Status)
	assert.Equal(t, 2, store.batches[1].Batch)
	assert.Equal(t, "1234500000", store.batches[0].Fee)
	assert.Equal(t, addrs[:2], store.batches[0].Accounts)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.UpgradeBatches.WithLabelValues("IN_BLOCK")))
}

func TestRunLogsReceipt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	chain := &fakeChain{info: chainInfo(), records: records(3, func(int) bool { return true }), receipts: 1}
	cfg := upgradeConfig(t)
	cfg.AccountsPerCall = 1024

	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: cfg, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, u.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Extrinsic 1: upgrading 3 accounts")
	assert.Contains(t, out, "Extrinsic included in block 0xabc: consumed 0.0025 seconds of weight and paid 12.345 UNIT")
	assert.Contains(t, out, "!! Emitted fewer events than expected: 1 < 3")
}

func TestRunUninspectedReceipt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	chain := &fakeChain{info: chainInfo(), records: records(3, func(int) bool { return true }), uninspected: true}
	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: upgradeConfig(t), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, u.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Could not locate the extrinsic in its block")
	assert.NotContains(t, out, "Emitted fewer events than expected")
}

func TestSubmitFailureAborts(t *testing.T) {
	chain := &fakeChain{info: chainInfo(), records: records(6, func(int) bool { return true }), failAt: 2}
	store := &memStore{}

	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Store: store, Upgrade: upgradeConfig(t)})
	require.NoError(t, err)

	err = u.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "batch 2")

	// the third chunk is never attempted
	assert.Len(t, chain.batches, 2)
	require.Len(t, store.batches, 2)
	assert.Equal(t, types.Failed, store.batches[1].Status)
	assert.Contains(t, store.batches[1].Error, "invalid")
}

func TestDryRun(t *testing.T) {
	chain := &fakeChain{info: chainInfo(), records: records(4, func(int) bool { return true })}
	cfg := upgradeConfig(t)
	cfg.DryRun = true

	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: cfg})
	require.NoError(t, err)
	require.NoError(t, u.Run(context.Background()))

	assert.Empty(t, chain.batches)
	_, err = os.Stat(filepath.Join(cfg.OutputDir, output.AccountsFileName("Development")))
	assert.NoError(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	seven, nine := accountID(7), accountID(9)
	a, err := ss58.Encode(seven[:], 42)
	require.NoError(t, err)
	b, err := ss58.Encode(nine[:], 0)
	require.NoError(t, err)
	path, err := output.WriteAccounts(dir, "Development", []string{a, b})
	require.NoError(t, err)

	// scanning would fail, so the file must be used
	chain := &fakeChain{info: chainInfo(), scanErr: errors.New("must not scan")}
	cfg := upgradeConfig(t)
	cfg.FromFile = path

	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: cfg})
	require.NoError(t, err)
	require.NoError(t, u.Run(context.Background()))

	require.Len(t, chain.batches, 1)
	assert.Equal(t, []types.AccountID{accountID(7), accountID(9)}, chain.batches[0])
}

func TestFromFileInvalidAddress(t *testing.T) {
	path, err := output.WriteAccounts(t.TempDir(), "Development", []string{"not-an-address"})
	require.NoError(t, err)

	cfg := upgradeConfig(t)
	cfg.FromFile = path
	u, err := NewUpgrader(UpgraderOpts{Chain: &fakeChain{info: chainInfo()}, Upgrade: cfg})
	require.NoError(t, err)

	assert.Error(t, u.Run(context.Background()))
}

func TestNoEligibleAccounts(t *testing.T) {
	chain := &fakeChain{info: chainInfo(), records: records(3, func(int) bool { return false })}
	u, err := NewUpgrader(UpgraderOpts{Chain: chain, Upgrade: upgradeConfig(t)})
	require.NoError(t, err)

	require.NoError(t, u.Run(context.Background()))
	assert.Empty(t, chain.batches)
}

func TestNewUpgraderValidation(t *testing.T) {
	_, err := NewUpgrader(UpgraderOpts{Upgrade: upgradeConfig(t)})
	assert.Error(t, err)

	cfg := upgradeConfig(t)
	cfg.AccountsPerCall = 0
	_, err = NewUpgrader(UpgraderOpts{Chain: &fakeChain{}, Upgrade: cfg})
	assert.Error(t, err)
}

func TestFormatBalance(t *testing.T) {
	tests := []struct {
		v        *big.Int
		decimals uint32
		want     string
	}{
		{nil, 8, "0"},
		{big.NewInt(0), 8, "0"},
		{big.NewInt(1_234_500_000), 8, "12.345"},
		{big.NewInt(5), 8, "0.00000005"},
		{big.NewInt(100_000_000), 8, "1"},
		{big.NewInt(42), 0, "42"},
		{big.NewInt(-150), 2, "-1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBalance(tt.v, tt.decimals))
	}
}

func TestPercentAndWeight(t *testing.T) {
	assert.Equal(t, "33.33", Percent(1, 3))
	assert.Equal(t, "100", Percent(5, 5))
	assert.Equal(t, "0", Percent(0, 0))
	assert.Equal(t, "0.0025", WeightSeconds(2_500_000_000))
	assert.Equal(t, "1", WeightSeconds(1_000_000_000_000))
}
