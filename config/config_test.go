package config

import (
	"testing"
	"time"

	"github.com/frequency-chain/frequency-ops/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, types.SchemaID(5), cfg.Fetch.SchemaFrom)
	assert.Equal(t, types.SchemaID(11), cfg.Fetch.SchemaTo)
	assert.Equal(t, uint32(2293699), cfg.Fetch.LastBlock)
	assert.Equal(t, uint32(50000), cfg.Fetch.Step)
	assert.Equal(t, uint32(10000), cfg.Fetch.PageSize)
	assert.True(t, cfg.Fetch.StopOnEmpty)
	assert.Equal(t, "//Alice", cfg.Upgrade.SenderURI)
	assert.Equal(t, 1000, cfg.Upgrade.PageSize)
	assert.Equal(t, 1024, cfg.Upgrade.AccountsPerCall)
	assert.Equal(t, 5000, cfg.Upgrade.ProgressEvery)
	assert.Equal(t, 30*time.Second, cfg.RPC.Timeout)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(KeySenderURI, "//Bob")
	t.Setenv(KeyLastBlock, "1000")
	t.Setenv(KeyDatabaseURI, "mongodb://localhost:27017")

	v := newViper()
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "//Bob", cfg.Upgrade.SenderURI)
	assert.Equal(t, uint32(1000), cfg.Fetch.LastBlock)
	assert.True(t, cfg.Database.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  any
		errSub string
	}{
		{"step above node limit", KeyBlockStep, 50001, KeyBlockStep},
		{"zero step", KeyBlockStep, 0, KeyBlockStep},
		{"page size above node limit", KeyPageSize, 10001, KeyPageSize},
		{"empty schema range", KeySchemaTo, 5, KeySchemaFrom},
		{"schema id above uint16", KeySchemaTo, 70000, KeySchemaTo},
		{"schema from above uint16", KeySchemaFrom, 65536, KeySchemaFrom},
		{"start after last", KeyStartBlock, 3000000, KeyStartBlock},
		{"zero chunk size", KeyAccountsPerCall, 0, KeyAccountsPerCall},
		{"negative rps", KeyRPCRPS, -1.0, KeyRPCRPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}
