package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/frequency-chain/frequency-ops/types"
	"github.com/spf13/viper"
)

// Config keys. They double as environment variable names.
const (
	KeyMessagesRPCURL   = "MESSAGES_RPC_URL"
	KeyChainWSURL       = "CHAIN_WS_URL"
	KeySenderURI        = "SENDER_URI"
	KeySchemaFrom       = "SCHEMA_FROM"
	KeySchemaTo         = "SCHEMA_TO"
	KeyStartBlock       = "START_BLOCK"
	KeyLastBlock        = "LAST_BLOCK"
	KeyBlockStep        = "BLOCK_STEP"
	KeyPageSize         = "PAGE_SIZE"
	KeyStopOnEmpty      = "STOP_ON_EMPTY"
	KeyMessagesFile     = "MESSAGES_FILE"
	KeyCheckpointFile   = "CHECKPOINT_FILE"
	KeyAccountsPageSize = "ACCOUNTS_PAGE_SIZE"
	KeyAccountsPerCall  = "ACCOUNTS_PER_CALL"
	KeyProgressEvery    = "PROGRESS_EVERY"
	KeyOutputDir        = "OUTPUT_DIR"
	KeyDryRun           = "DRY_RUN"
	KeyFromFile         = "FROM_FILE"
	KeyDatabaseURI      = "DATABASE_URI"
	KeyDatabaseName     = "DATABASE_NAME"
	KeyAPIPort          = "API_PORT"
	KeyMetricsPort      = "METRICS_PORT"
	KeyRPCRPS           = "RPC_RPS"
	KeyRPCTimeout       = "RPC_TIMEOUT"
	KeyRPCMaxRetries    = "RPC_MAX_RETRIES"
	KeyLogLevel         = "LOG_LEVEL"
)

type Config struct {
	RPC      RPCConfig
	Fetch    FetchConfig
	Upgrade  UpgradeConfig
	Database DatabaseConfig
	APIPort  string
	// MetricsPort, when set, serves /metrics beside a fetch or upgrade run.
	MetricsPort string
	LogLevel    string
}

type RPCConfig struct {
	MessagesURL string
	// Public endpoints rate limit aggressively; other options are
	// wss://0.rpc.frequency.xyz or a local node at ws://127.0.0.1:9944.
	ChainURL   string
	RPS        float64
	Timeout    time.Duration
	MaxRetries int
}

type FetchConfig struct {
	SchemaFrom     types.SchemaID
	SchemaTo       types.SchemaID
	StartBlock     uint32
	LastBlock      uint32
	Step           uint32
	PageSize       uint32
	StopOnEmpty    bool
	OutputFile     string
	CheckpointFile string
}

type UpgradeConfig struct {
	SenderURI       string
	PageSize        int
	AccountsPerCall int
	ProgressEvery   int
	OutputDir       string
	DryRun          bool
	FromFile        string
}

type DatabaseConfig struct {
	URI  string
	Name string
}

// Enabled reports whether a MongoDB deployment is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URI != ""
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMessagesRPCURL, "https://0.rpc.frequency.xyz")
	v.SetDefault(KeyChainWSURL, "wss://rpc.rococo.frequency.xyz")
	v.SetDefault(KeySenderURI, "//Alice")
	v.SetDefault(KeySchemaFrom, 5)
	v.SetDefault(KeySchemaTo, 11)
	v.SetDefault(KeyStartBlock, 0)
	v.SetDefault(KeyLastBlock, 2293699)
	v.SetDefault(KeyBlockStep, types.MaxBlockRange)
	v.SetDefault(KeyPageSize, types.MaxPageSize)
	v.SetDefault(KeyStopOnEmpty, true)
	v.SetDefault(KeyMessagesFile, "messages.txt")
	v.SetDefault(KeyCheckpointFile, "")
	v.SetDefault(KeyAccountsPageSize, 1000)
	v.SetDefault(KeyAccountsPerCall, 1024)
	v.SetDefault(KeyProgressEvery, 5000)
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyFromFile, "")
	v.SetDefault(KeyDatabaseURI, "")
	v.SetDefault(KeyDatabaseName, "frequency_ops")
	v.SetDefault(KeyAPIPort, "8080")
	v.SetDefault(KeyMetricsPort, "")
	v.SetDefault(KeyRPCRPS, 20.0)
	v.SetDefault(KeyRPCTimeout, 30*time.Second)
	v.SetDefault(KeyRPCMaxRetries, 5)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	schemaFrom, schemaTo := v.GetUint64(KeySchemaFrom), v.GetUint64(KeySchemaTo)
	var rangeErrs []error
	for key, id := range map[string]uint64{KeySchemaFrom: schemaFrom, KeySchemaTo: schemaTo} {
		if id > math.MaxUint16 {
			rangeErrs = append(rangeErrs, fmt.Errorf("%s must be at most %d, got %d", key, math.MaxUint16, id))
		}
	}
	if err := errors.Join(rangeErrs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPC: RPCConfig{
			MessagesURL: v.GetString(KeyMessagesRPCURL),
			ChainURL:    v.GetString(KeyChainWSURL),
			RPS:         v.GetFloat64(KeyRPCRPS),
			Timeout:     v.GetDuration(KeyRPCTimeout),
			MaxRetries:  v.GetInt(KeyRPCMaxRetries),
		},
		Fetch: FetchConfig{
			SchemaFrom:     types.SchemaID(schemaFrom),
			SchemaTo:       types.SchemaID(schemaTo),
			StartBlock:     v.GetUint32(KeyStartBlock),
			LastBlock:      v.GetUint32(KeyLastBlock),
			Step:           v.GetUint32(KeyBlockStep),
			PageSize:       v.GetUint32(KeyPageSize),
			StopOnEmpty:    v.GetBool(KeyStopOnEmpty),
			OutputFile:     v.GetString(KeyMessagesFile),
			CheckpointFile: v.GetString(KeyCheckpointFile),
		},
		Upgrade: UpgradeConfig{
			SenderURI:       v.GetString(KeySenderURI),
			PageSize:        v.GetInt(KeyAccountsPageSize),
			AccountsPerCall: v.GetInt(KeyAccountsPerCall),
			ProgressEvery:   v.GetInt(KeyProgressEvery),
			OutputDir:       v.GetString(KeyOutputDir),
			DryRun:          v.GetBool(KeyDryRun),
			FromFile:        v.GetString(KeyFromFile),
		},
		Database: DatabaseConfig{
			URI:  v.GetString(KeyDatabaseURI),
			Name: v.GetString(KeyDatabaseName),
		},
		APIPort:     v.GetString(KeyAPIPort),
		MetricsPort: v.GetString(KeyMetricsPort),
		LogLevel:    v.GetString(KeyLogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings against the limits the node enforces.
func (c *Config) Validate() error {
	var errs []error

	f := c.Fetch
	if f.SchemaFrom >= f.SchemaTo {
		errs = append(errs, fmt.Errorf("%s (%d) must be below %s (%d)", KeySchemaFrom, f.SchemaFrom, KeySchemaTo, f.SchemaTo))
	}
	if f.StartBlock >= f.LastBlock {
		errs = append(errs, fmt.Errorf("%s (%d) must be below %s (%d)", KeyStartBlock, f.StartBlock, KeyLastBlock, f.LastBlock))
	}
	if f.Step == 0 || f.Step > types.MaxBlockRange {
		errs = append(errs, fmt.Errorf("%s must be in [1, %d], got %d", KeyBlockStep, types.MaxBlockRange, f.Step))
	}
	if f.PageSize == 0 || f.PageSize > types.MaxPageSize {
		errs = append(errs, fmt.Errorf("%s must be in [1, %d], got %d", KeyPageSize, types.MaxPageSize, f.PageSize))
	}

	u := c.Upgrade
	if u.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyAccountsPageSize, u.PageSize))
	}
	if u.AccountsPerCall <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyAccountsPerCall, u.AccountsPerCall))
	}
	if u.ProgressEvery <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyProgressEvery, u.ProgressEvery))
	}

	if c.RPC.RPS < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRPCRPS))
	}

	return errors.Join(errs...)
}
