package models

import (
	"time"

	"github.com/frequency-chain/frequency-ops/types"
)

// UpgradeBatch records one Balances.upgrade_accounts submission.
type UpgradeBatch struct {
	Chain         string            `json:"chain" bson:"chain"`
	Batch         int               `json:"batch" bson:"batch"`
	Accounts      []string          `json:"accounts" bson:"accounts"`
	Status        types.BatchStatus `json:"status" bson:"status"`
	BlockHash     string            `json:"block_hash,omitempty" bson:"block_hash,omitempty"`
	ExtrinsicHash string            `json:"extrinsic_hash,omitempty" bson:"extrinsic_hash,omitempty"`
	RefTime       uint64            `json:"ref_time" bson:"ref_time"`
	Fee           string            `json:"fee,omitempty" bson:"fee,omitempty"`
	Events        int               `json:"events" bson:"events"`
	Error         string            `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
}
