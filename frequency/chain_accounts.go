package frequency

import (
	"context"
	"fmt"
	"math/big"

	gstypes "github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/frequency-chain/frequency-ops/types"
)

// accountKeyLen is twox128(pallet) + twox128(item) + blake2_128 + AccountId32.
const accountKeyLen = 16 + 16 + 16 + 32

// accountInfo is frame_system::AccountInfo with pallet_balances::AccountData.
// The fourth balance word is ExtraFlags on runtimes with the new storage logic.
type accountInfo struct {
	Nonce       gstypes.U32
	Consumers   gstypes.U32
	Providers   gstypes.U32
	Sufficients gstypes.U32
	Data        struct {
		Free     gstypes.U128
		Reserved gstypes.U128
		Frozen   gstypes.U128
		Flags    gstypes.U128
	}
}

// storageChangeSet is the state_queryStorageAt result. Each change is a
// [key, value] pair where value is null for missing entries.
type storageChangeSet struct {
	Block   string       `json:"block"`
	Changes [][2]*string `json:"changes"`
}

func systemAccountPrefix() []byte {
	prefix := xxhash.New128([]byte("System")).Sum(nil)
	return append(prefix, xxhash.New128([]byte("Account")).Sum(nil)...)
}

// ScanAccounts walks every System.Account entry at the current best block,
// pageSize keys at a time, and hands each decoded record to fn in key order.
func (c *ChainClient) ScanAccounts(ctx context.Context, pageSize int, fn func(types.AccountRecord) error) error {
	at, err := c.api.RPC.Chain.GetBlockHashLatest()
	if err != nil {
		return fmt.Errorf("failed to get latest block hash: %w", err)
	}

	prefix := hexutil.Encode(systemAccountPrefix())
	var startKey *string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var keys []string
		if err := c.call(ctx, &keys, "state_getKeysPaged", prefix, pageSize, startKey, at.Hex()); err != nil {
			return fmt.Errorf("failed to get account keys: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}

		var sets []storageChangeSet
		if err := c.call(ctx, &sets, "state_queryStorageAt", keys, at.Hex()); err != nil {
			return fmt.Errorf("failed to query account storage: %w", err)
		}

		values := make(map[string]string, len(keys))
		for _, set := range sets {
			for _, change := range set.Changes {
				if change[0] != nil && change[1] != nil {
					values[*change[0]] = *change[1]
				}
			}
		}

		for _, key := range keys {
			value, ok := values[key]
			if !ok {
				continue
			}
			record, err := decodeAccountRecord(key, value)
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}

		if len(keys) < pageSize {
			return nil
		}
		last := keys[len(keys)-1]
		startKey = &last
	}
}

func decodeAccountRecord(key, value string) (types.AccountRecord, error) {
	id, err := accountIDFromKey(key)
	if err != nil {
		return types.AccountRecord{}, err
	}

	raw, err := hexutil.Decode(value)
	if err != nil {
		return types.AccountRecord{}, fmt.Errorf("failed to decode account %s value: %w", id.Hex(), err)
	}

	var info accountInfo
	if err := codec.Decode(raw, &info); err != nil {
		return types.AccountRecord{}, fmt.Errorf("failed to decode account %s info: %w", id.Hex(), err)
	}

	flags := new(big.Int)
	if info.Data.Flags.Int != nil {
		flags.Set(info.Data.Flags.Int)
	}
	return types.AccountRecord{ID: id, Flags: flags}, nil
}

func accountIDFromKey(key string) (types.AccountID, error) {
	raw, err := hexutil.Decode(key)
	if err != nil {
		return types.AccountID{}, fmt.Errorf("failed to decode storage key %s: %w", key, err)
	}
	if len(raw) != accountKeyLen {
		return types.AccountID{}, fmt.Errorf("unexpected System.Account key length %d", len(raw))
	}

	var id types.AccountID
	copy(id[:], raw[len(raw)-32:])
	return id, nil
}
