package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frequency-chain/frequency-ops/config"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/types"
)

// MessageSource serves messages_getBySchemaId pages.
type MessageSource interface {
	GetMessagesBySchemaID(ctx context.Context, schemaID types.SchemaID, req types.BlockPaginationRequest) (*types.BlockPaginationResponse, error)
}

// Sink receives every fetched page, in chain order.
type Sink interface {
	WriteMessages(ctx context.Context, schemaID types.SchemaID, content []types.MessageResponse) error
}

// Checkpoint stores the end of the last fully drained window per schema.
type Checkpoint interface {
	GetLastIndexedBlock(ctx context.Context, key string) (uint64, error)
	UpdateLastIndexedBlock(ctx context.Context, key string, blockNumber uint64) error
}

type Indexer struct {
	source     MessageSource
	sinks      []Sink
	checkpoint Checkpoint
	metrics    *metrics.Metrics
	logger     *slog.Logger
	Opts       *IndexerOpts
}

type IndexerOpts struct {
	Source MessageSource
	Sinks  []Sink
	// Checkpoint is optional; without it every run starts at Fetch.StartBlock.
	Checkpoint Checkpoint
	Fetch      config.FetchConfig
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func NewIndexer(opts IndexerOpts) (*Indexer, error) {
	if opts.Source == nil {
		return nil, errors.New("indexer requires a message source")
	}
	if len(opts.Sinks) == 0 {
		return nil, errors.New("indexer requires at least one sink")
	}
	if opts.Fetch.Step == 0 {
		return nil, errors.New("block step must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	return &Indexer{
		source:     opts.Source,
		sinks:      opts.Sinks,
		checkpoint: opts.Checkpoint,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		Opts:       &opts,
	}, nil
}

// CheckpointKey is the last_indexed_block key of a schema.
func CheckpointKey(schemaID types.SchemaID) string {
	return "messages-schema-" + strconv.Itoa(int(schemaID))
}

// Run fetches every schema in [SchemaFrom, SchemaTo) one after the other.
func (i *Indexer) Run(ctx context.Context) error {
	fetch := i.Opts.Fetch
	i.logger.Info("starting message fetcher",
		"schemaFrom", fetch.SchemaFrom,
		"schemaTo", fetch.SchemaTo,
		"startBlock", fetch.StartBlock,
		"lastBlock", fetch.LastBlock,
		"step", fetch.Step,
		"pageSize", fetch.PageSize)

	var total int
	for schemaID := fetch.SchemaFrom; schemaID < fetch.SchemaTo; schemaID++ {
		n, err := i.IndexSchema(ctx, schemaID)
		total += n
		if err != nil {
			return fmt.Errorf("failed to index schema %d: %w", schemaID, err)
		}
	}

	i.logger.Info("message fetcher complete", "messages", total)
	return nil
}

// IndexSchema walks the block windows of one schema and returns the number of
// messages written.
func (i *Indexer) IndexSchema(ctx context.Context, schemaID types.SchemaID) (int, error) {
	fetch := i.Opts.Fetch
	logger := i.logger.With("schema", schemaID)
	label := strconv.Itoa(int(schemaID))

	start, err := i.resumeBlock(ctx, schemaID)
	if err != nil {
		return 0, err
	}
	if start >= fetch.LastBlock {
		logger.Info("schema already indexed", "checkpoint", start)
		return 0, nil
	}

	logger.Info("indexing schema", "startBlock", start)

	var written int
	for _, window := range types.Windows(start, fetch.LastBlock, fetch.Step) {
		n, more, err := i.drainWindow(ctx, schemaID, window)
		written += n
		if err != nil {
			return written, err
		}
		if !more {
			logger.Info("no more messages", "fromBlock", window.Start, "toBlock", window.End, "written", written)
			return written, nil
		}

		i.metrics.WindowsCompleted.WithLabelValues(label).Inc()
		if i.checkpoint != nil {
			if err := i.checkpoint.UpdateLastIndexedBlock(ctx, CheckpointKey(schemaID), uint64(window.End)); err != nil {
				return written, fmt.Errorf("failed to update checkpoint: %w", err)
			}
		}

		logger.Debug("window complete", "fromBlock", window.Start, "toBlock", window.End, "messages", n)
	}

	logger.Info("schema complete", "lastBlock", fetch.LastBlock, "written", written)
	return written, nil
}

// drainWindow follows has_next until the window is exhausted. more is false
// when the node returned no data and the schema should stop.
func (i *Indexer) drainWindow(ctx context.Context, schemaID types.SchemaID, window types.Window) (written int, more bool, err error) {
	label := strconv.Itoa(int(schemaID))
	req := window.Request(i.Opts.Fetch.PageSize)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return written, false, err
		}

		resp, err := i.source.GetMessagesBySchemaID(ctx, schemaID, req)
		if err != nil {
			return written, false, err
		}
		if resp == nil {
			return written, false, nil
		}
		// An empty first page means the window holds nothing. Later pages are
		// only requested when the node said there is more.
		if len(resp.Content) == 0 && page == 0 && i.Opts.Fetch.StopOnEmpty {
			return written, false, nil
		}

		if len(resp.Content) > 0 {
			for _, sink := range i.sinks {
				if err := sink.WriteMessages(ctx, schemaID, resp.Content); err != nil {
					return written, false, fmt.Errorf("failed to write messages: %w", err)
				}
			}
			written += len(resp.Content)
			i.metrics.MessagesFetched.WithLabelValues(label).Add(float64(len(resp.Content)))
		}

		next, ok := resp.Next(req)
		if !ok {
			return written, true, nil
		}
		if !cursorAdvanced(req, next) {
			return written, false, fmt.Errorf("node cursor %d/%d does not advance past %d/%d",
				next.FromBlock, next.FromIndex, req.FromBlock, req.FromIndex)
		}
		req = next
	}
}

// cursorAdvanced reports whether next starts strictly after req.
func cursorAdvanced(req, next types.BlockPaginationRequest) bool {
	if next.FromBlock != req.FromBlock {
		return next.FromBlock > req.FromBlock
	}
	return next.FromIndex > req.FromIndex
}

func (i *Indexer) resumeBlock(ctx context.Context, schemaID types.SchemaID) (uint32, error) {
	start := i.Opts.Fetch.StartBlock
	if i.checkpoint == nil {
		return start, nil
	}

	last, err := i.checkpoint.GetLastIndexedBlock(ctx, CheckpointKey(schemaID))
	if err != nil {
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	if last > uint64(start) {
		if last > uint64(i.Opts.Fetch.LastBlock) {
			return i.Opts.Fetch.LastBlock, nil
		}
		start = uint32(last)
	}
	return start, nil
}
