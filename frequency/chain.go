package frequency

import (
	"context"
	"fmt"
	"log/slog"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/retriever"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/state"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	gstypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/retry"
	"github.com/frequency-chain/frequency-ops/ss58"
)

// defaultSS58Prefix is the generic Substrate prefix, used when the node does
// not advertise one.
const defaultSS58Prefix = 42

type ChainClient struct {
	api     *gsrpc.SubstrateAPI
	meta    *gstypes.Metadata
	events  retriever.EventRetriever
	signer  signature.KeyringPair
	info    ChainInfo
	metrics *metrics.Metrics
	logger  *slog.Logger
	Opts    *ChainClientOpts
}

type ChainClientOpts struct {
	Endpoint string
	// SenderURI is a secret URI such as //Alice or a mnemonic with derivation path.
	SenderURI string
	Logger    *slog.Logger
	Retry     retry.Config
	Metrics   *metrics.Metrics
}

// ChainInfo is the identity of the connected chain.
type ChainInfo struct {
	Chain         string
	NodeName      string
	NodeVersion   string
	TokenDecimals uint32
	TokenSymbol   string
	SS58Prefix    uint16
}

// NewChainClient connects over websocket, loads metadata and the sender keypair.
func NewChainClient(ctx context.Context, opts ChainClientOpts) (*ChainClient, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	var api *gsrpc.SubstrateAPI
	err := retry.WithBackoff(ctx, opts.Retry, opts.Logger, "connect", func() error {
		var err error
		api, err = gsrpc.NewSubstrateAPI(opts.Endpoint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain: %w", err)
	}

	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	info, err := loadChainInfo(api)
	if err != nil {
		return nil, err
	}

	signer, err := signature.KeyringPairFromSecret(opts.SenderURI, info.SS58Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sender keypair: %w", err)
	}

	events, err := retriever.NewDefaultEventRetriever(state.NewEventProvider(api.RPC.State), api.RPC.State)
	if err != nil {
		return nil, fmt.Errorf("failed to create event retriever: %w", err)
	}

	opts.Logger.Info("Connected to chain",
		"chain", info.Chain,
		"node", info.NodeName,
		"version", info.NodeVersion,
		"endpoint", opts.Endpoint)

	sender, err := ss58.Encode(signer.PublicKey, info.SS58Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sender address: %w", err)
	}
	opts.Logger.Info("Using sender account", "address", sender)

	return &ChainClient{
		api:     api,
		meta:    meta,
		events:  events,
		signer:  signer,
		info:    info,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		Opts:    &opts,
	}, nil
}

func loadChainInfo(api *gsrpc.SubstrateAPI) (ChainInfo, error) {
	chain, err := api.RPC.System.Chain()
	if err != nil {
		return ChainInfo{}, fmt.Errorf("failed to get chain name: %w", err)
	}
	name, err := api.RPC.System.Name()
	if err != nil {
		return ChainInfo{}, fmt.Errorf("failed to get node name: %w", err)
	}
	version, err := api.RPC.System.Version()
	if err != nil {
		return ChainInfo{}, fmt.Errorf("failed to get node version: %w", err)
	}
	props, err := api.RPC.System.Properties()
	if err != nil {
		return ChainInfo{}, fmt.Errorf("failed to get chain properties: %w", err)
	}

	info := ChainInfo{
		Chain:       string(chain),
		NodeName:    string(name),
		NodeVersion: string(version),
		SS58Prefix:  defaultSS58Prefix,
	}
	if props.IsTokenDecimals {
		info.TokenDecimals = uint32(props.AsTokenDecimals)
	}
	if props.IsTokenSymbol {
		info.TokenSymbol = string(props.AsTokenSymbol)
	}
	if props.IsSS58Format {
		info.SS58Prefix = uint16(props.AsSS58Format)
	}
	return info, nil
}

func (c *ChainClient) Info() ChainInfo {
	return c.info
}

// Close releases the websocket connection.
func (c *ChainClient) Close() {
	c.api.Client.Close()
}

// call issues a raw JSON-RPC call with retries and request accounting.
func (c *ChainClient) call(ctx context.Context, result any, method string, args ...any) error {
	return retry.WithBackoff(ctx, c.Opts.Retry, c.logger, method, func() error {
		err := c.api.Client.Call(result, method, args...)
		c.metrics.RPCRequests.WithLabelValues(method, metrics.RPCStatus(err)).Inc()
		return err
	})
}
