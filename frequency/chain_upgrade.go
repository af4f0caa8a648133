package frequency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/registry"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/parser"
	gstypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/frequency-chain/frequency-ops/metrics"
	"github.com/frequency-chain/frequency-ops/types"
	"golang.org/x/crypto/blake2b"
)

const (
	upgradeAccountsCall = "Balances.upgrade_accounts"
	feePaidEvent        = "TransactionPayment.TransactionFeePaid"
	successEvent        = "System.ExtrinsicSuccess"
	failedEvent         = "System.ExtrinsicFailed"
)

var ErrExtrinsicRejected = errors.New("extrinsic rejected")

// Receipt describes an included upgrade_accounts extrinsic.
type Receipt struct {
	BlockHash      string
	ExtrinsicHash  string
	ExtrinsicIndex int
	// RefTime is in picoseconds of execution weight.
	RefTime   uint64
	ProofSize uint64
	Fee       *big.Int
	Events    int
}

type dispatchInfo struct {
	Weight     json.RawMessage `json:"weight"`
	PartialFee json.RawMessage `json:"partialFee"`
}

type signedBlock struct {
	Block struct {
		Extrinsics []string `json:"extrinsics"`
	} `json:"block"`
}

// UpgradeAccounts signs and submits Balances.upgrade_accounts(who) and blocks
// until the extrinsic is in a block or the pool gives up on it.
func (c *ChainClient) UpgradeAccounts(ctx context.Context, ids []types.AccountID) (*Receipt, error) {
	who := make([]gstypes.AccountID, len(ids))
	for i, id := range ids {
		acc, err := gstypes.NewAccountID(id[:])
		if err != nil {
			return nil, fmt.Errorf("failed to convert account %s: %w", id.Hex(), err)
		}
		who[i] = *acc
	}

	call, err := gstypes.NewCall(c.meta, upgradeAccountsCall, who)
	if err != nil {
		return nil, fmt.Errorf("failed to compose %s: %w", upgradeAccountsCall, err)
	}

	ext, err := c.sign(ctx, gstypes.NewExtrinsic(call))
	if err != nil {
		return nil, err
	}

	encoded, err := codec.Encode(ext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extrinsic: %w", err)
	}
	extHash := blake2b.Sum256(encoded)
	receipt := &Receipt{ExtrinsicHash: hexutil.Encode(extHash[:]), ExtrinsicIndex: -1}

	// Weight and fee estimate; both are replaced by the values reported in
	// the block's events once included.
	var est dispatchInfo
	if err := c.call(ctx, &est, "payment_queryInfo", hexutil.Encode(encoded)); err != nil {
		c.logger.Warn("failed to query dispatch info", "error", err)
	} else {
		receipt.RefTime, receipt.ProofSize = parseWeight(est.Weight)
		receipt.Fee = parseBalance(strings.Trim(string(est.PartialFee), `"`))
	}

	blockHash, err := c.submitAndWait(ctx, ext)
	c.metrics.RPCRequests.WithLabelValues("author_submitAndWatchExtrinsic", metrics.RPCStatus(err)).Inc()
	if err != nil {
		return nil, err
	}
	receipt.BlockHash = blockHash.Hex()

	if err := c.inspectInclusion(ctx, blockHash, extHash, receipt); err != nil {
		c.logger.Warn("failed to inspect included extrinsic", "blockHash", receipt.BlockHash, "error", err)
	}

	return receipt, nil
}

func (c *ChainClient) sign(ctx context.Context, ext gstypes.Extrinsic) (gstypes.Extrinsic, error) {
	rv, err := c.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return ext, fmt.Errorf("failed to get runtime version: %w", err)
	}

	genesisHash, err := c.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return ext, fmt.Errorf("failed to get genesis hash: %w", err)
	}

	// accountNextIndex accounts for transactions already in the pool
	var nonce uint64
	if err := c.call(ctx, &nonce, "system_accountNextIndex", c.signer.Address); err != nil {
		return ext, fmt.Errorf("failed to get sender nonce: %w", err)
	}

	o := gstypes.SignatureOptions{
		BlockHash:          genesisHash,
		Era:                gstypes.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesisHash,
		Nonce:              gstypes.NewUCompactFromUInt(nonce),
		SpecVersion:        rv.SpecVersion,
		Tip:                gstypes.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}

	if err := ext.Sign(c.signer, o); err != nil {
		return ext, fmt.Errorf("failed to sign extrinsic: %w", err)
	}
	return ext, nil
}

func (c *ChainClient) submitAndWait(ctx context.Context, ext gstypes.Extrinsic) (gstypes.Hash, error) {
	sub, err := c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return gstypes.Hash{}, fmt.Errorf("failed to submit extrinsic: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return gstypes.Hash{}, ctx.Err()
		case err := <-sub.Err():
			return gstypes.Hash{}, fmt.Errorf("extrinsic subscription failed: %w", err)
		case status := <-sub.Chan():
			switch {
			case status.IsInBlock:
				return status.AsInBlock, nil
			case status.IsFinalized:
				return status.AsFinalized, nil
			case status.IsDropped:
				return gstypes.Hash{}, fmt.Errorf("%w: dropped from pool", ErrExtrinsicRejected)
			case status.IsInvalid:
				return gstypes.Hash{}, fmt.Errorf("%w: invalid", ErrExtrinsicRejected)
			case status.IsUsurped:
				return gstypes.Hash{}, fmt.Errorf("%w: usurped by %s", ErrExtrinsicRejected, status.AsUsurped.Hex())
			case status.IsFinalityTimeout:
				return gstypes.Hash{}, fmt.Errorf("%w: finality timeout", ErrExtrinsicRejected)
			}
		}
	}
}

// inspectInclusion locates the extrinsic in its block and fills in the event
// count, the weight it consumed and the fee actually paid.
func (c *ChainClient) inspectInclusion(ctx context.Context, blockHash gstypes.Hash, extHash [32]byte, receipt *Receipt) error {
	var block signedBlock
	if err := c.call(ctx, &block, "chain_getBlock", blockHash.Hex()); err != nil {
		return fmt.Errorf("failed to get block: %w", err)
	}

	index, err := extrinsicIndex(block.Block.Extrinsics, extHash)
	if err != nil {
		return err
	}
	receipt.ExtrinsicIndex = index

	events, err := c.events.GetEvents(blockHash)
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}

	for _, event := range eventsForExtrinsic(events, uint32(index)) {
		receipt.Events++
		switch event.Name {
		case feePaidEvent:
			if fee := fieldBalance(event, "actual_fee"); fee != nil {
				receipt.Fee = fee
			}
		case successEvent, failedEvent:
			if refTime, proofSize, ok := dispatchWeight(event); ok {
				receipt.RefTime, receipt.ProofSize = refTime, proofSize
			}
		}
	}
	return nil
}

func extrinsicIndex(extrinsics []string, hash [32]byte) (int, error) {
	for i, raw := range extrinsics {
		b, err := hexutil.Decode(raw)
		if err != nil {
			return -1, fmt.Errorf("failed to decode extrinsic %d: %w", i, err)
		}
		if blake2b.Sum256(b) == hash {
			return i, nil
		}
	}
	return -1, fmt.Errorf("extrinsic %s not found in block", hexutil.Encode(hash[:]))
}

func eventsForExtrinsic(events []*parser.Event, index uint32) []*parser.Event {
	var out []*parser.Event
	for _, event := range events {
		if event == nil || event.Phase == nil {
			continue
		}
		if event.Phase.IsApplyExtrinsic && event.Phase.AsApplyExtrinsic == index {
			out = append(out, event)
		}
	}
	return out
}

// findField returns the field called name. Decoded names carry the type path
// of composite fields, e.g. frame_support.dispatch.DispatchInfo.dispatch_info.
func findField(fields registry.DecodedFields, name string) *registry.DecodedField {
	for _, field := range fields {
		if field == nil {
			continue
		}
		if field.Name == name || strings.HasSuffix(field.Name, "."+name) {
			return field
		}
	}
	return nil
}

func fieldBalance(event *parser.Event, name string) *big.Int {
	field := findField(event.Fields, name)
	if field == nil {
		return nil
	}
	switch v := field.Value.(type) {
	case gstypes.U128:
		if v.Int != nil {
			return new(big.Int).Set(v.Int)
		}
	case *big.Int:
		return new(big.Int).Set(v)
	case gstypes.UCompact:
		return new(big.Int).Set((*big.Int)(&v))
	}
	return nil
}

// dispatchWeight reads dispatch_info.weight from an ExtrinsicSuccess or
// ExtrinsicFailed event. A scalar weight is the pre-v2 ref time only.
func dispatchWeight(event *parser.Event) (refTime, proofSize uint64, ok bool) {
	info := findField(event.Fields, "dispatch_info")
	if info == nil {
		return 0, 0, false
	}
	infoFields, isComposite := info.Value.(registry.DecodedFields)
	if !isComposite {
		return 0, 0, false
	}
	weight := findField(infoFields, "weight")
	if weight == nil {
		return 0, 0, false
	}

	if parts, isComposite := weight.Value.(registry.DecodedFields); isComposite {
		rt := findField(parts, "ref_time")
		if rt == nil {
			return 0, 0, false
		}
		if refTime, ok = fieldUint(rt.Value); !ok {
			return 0, 0, false
		}
		if ps := findField(parts, "proof_size"); ps != nil {
			proofSize, _ = fieldUint(ps.Value)
		}
		return refTime, proofSize, true
	}

	refTime, ok = fieldUint(weight.Value)
	return refTime, 0, ok
}

func fieldUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case gstypes.UCompact:
		b := (*big.Int)(&n)
		if !b.IsUint64() {
			return 0, false
		}
		return b.Uint64(), true
	case gstypes.U64:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

// parseWeight accepts both the legacy scalar weight and the two dimensional
// {ref_time, proof_size} form.
func parseWeight(raw json.RawMessage) (refTime, proofSize uint64) {
	if len(raw) == 0 {
		return 0, 0
	}

	var scalar uint64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return scalar, 0
	}

	var w map[string]json.Number
	if err := json.Unmarshal(raw, &w); err != nil {
		return 0, 0
	}
	for key, val := range w {
		n, err := strconv.ParseUint(val.String(), 10, 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(strings.ReplaceAll(key, "_", "")) {
		case "reftime":
			refTime = n
		case "proofsize":
			proofSize = n
		}
	}
	return refTime, proofSize
}

// parseBalance reads a decimal or 0x-prefixed balance string.
func parseBalance(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "0x") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil
		}
		return v
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
