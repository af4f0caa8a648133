package frequency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/retry"
	"github.com/frequency-chain/frequency-ops/types"
	"golang.org/x/time/rate"
)

const getBySchemaIDMethod = "messages_getBySchemaId"

type MessagesClient struct {
	client  *rpc.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	Opts    *MessagesClientOpts
}

type MessagesClientOpts struct {
	Endpoint string
	Logger   *slog.Logger
	Timeout  time.Duration
	// RPS caps request rate; zero disables pacing.
	RPS     float64
	Retry   retry.Config
	Metrics *metrics.Metrics
}

// NewMessagesClient returns a JSON-RPC client for the messages API. The
// endpoint is usually HTTP(S) but any transport go-ethereum dials works.
func NewMessagesClient(ctx context.Context, opts MessagesClientOpts) (*MessagesClient, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	client, err := rpc.DialOptions(ctx, opts.Endpoint, rpc.WithHTTPClient(&http.Client{Timeout: opts.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Frequency RPC: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	opts.Logger.Info("Connected to Frequency messages RPC", "endpoint", opts.Endpoint)

	return &MessagesClient{
		client:  client,
		limiter: limiter,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		Opts:    &opts,
	}, nil
}

func (c *MessagesClient) Close() {
	c.client.Close()
}

// GetMessagesBySchemaID calls messages_getBySchemaId for one page. A nil
// response with a nil error means the node answered with a null result.
func (c *MessagesClient) GetMessagesBySchemaID(ctx context.Context, schemaID types.SchemaID, req types.BlockPaginationRequest) (*types.BlockPaginationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp *types.BlockPaginationResponse
	err := retry.WithBackoff(ctx, c.Opts.Retry, c.logger, getBySchemaIDMethod, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		resp = nil
		err := c.client.CallContext(ctx, &resp, getBySchemaIDMethod, schemaID, req)
		c.metrics.RPCRequests.WithLabelValues(getBySchemaIDMethod, metrics.RPCStatus(err)).Inc()
		if err != nil && (ctx.Err() != nil || !isTransient(err)) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for schema %d in [%d, %d): %w", schemaID, req.FromBlock, req.ToBlock, err)
	}

	return resp, nil
}

// isTransient reports whether a failed call is worth repeating. Errors the
// node answered with (bad schema id, bad pagination) are final, as are
// client side HTTP statuses other than 429.
func isTransient(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	return true
}
