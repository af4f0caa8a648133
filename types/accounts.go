package types

import (
	"encoding/hex"
	"math/big"
)

// NewLogicFlag is the high bit of ExtraFlags. Accounts migrated to the new
// balance storage logic have it set.
var NewLogicFlag = new(big.Int).Lsh(big.NewInt(1), 127)

// AccountID is a raw 32 byte account public key.
type AccountID [32]byte

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// AccountRecord is an account id plus the flags word of its AccountData.
type AccountRecord struct {
	ID    AccountID
	Flags *big.Int
}

// Eligible reports whether the flags still lack NewLogicFlag. A nil flags
// value is treated as zero.
func Eligible(flags *big.Int) bool {
	if flags == nil {
		return true
	}
	return new(big.Int).And(flags, NewLogicFlag).Sign() == 0
}

// Chunks splits items into consecutive slices of at most size elements. The
// returned slices share the backing array of items.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end:end])
	}
	return chunks
}
