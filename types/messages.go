package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// MaxPageSize is the node's hard limit on items per page.
	MaxPageSize uint32 = 10000

	// MaxBlockRange is the node's hard limit on to_block - from_block.
	MaxBlockRange uint32 = 50000
)

var ErrInvalidPagination = errors.New("invalid pagination request")

// BlockPaginationRequest asks for messages in [FromBlock, ToBlock), starting at
// FromIndex within FromBlock.
type BlockPaginationRequest struct {
	FromBlock uint32
	FromIndex uint32
	ToBlock   uint32
	PageSize  uint32
}

// Validate applies the same checks the node runs before serving a page.
func (r BlockPaginationRequest) Validate() error {
	switch {
	case r.PageSize == 0:
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidPagination)
	case r.PageSize > MaxPageSize:
		return fmt.Errorf("%w: page_size %d exceeds %d", ErrInvalidPagination, r.PageSize, MaxPageSize)
	case r.FromBlock >= r.ToBlock:
		return fmt.Errorf("%w: from_block %d must be below to_block %d", ErrInvalidPagination, r.FromBlock, r.ToBlock)
	case r.ToBlock-r.FromBlock > MaxBlockRange:
		return fmt.Errorf("%w: block range %d exceeds %d", ErrInvalidPagination, r.ToBlock-r.FromBlock, MaxBlockRange)
	}
	return nil
}

// MarshalJSON encodes the request positionally: [from_block, from_index, to_block, page_size].
func (r BlockPaginationRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]uint32{r.FromBlock, r.FromIndex, r.ToBlock, r.PageSize})
}

// MessageResponse is a single stored message. IPFS schemas carry Cid and
// PayloadLength, on-chain schemas carry MsaID and Payload.
type MessageResponse struct {
	ProviderMsaID uint64         `json:"provider_msa_id"`
	Index         uint16         `json:"index"`
	BlockNumber   uint32         `json:"block_number"`
	MsaID         *uint64        `json:"msa_id,omitempty"`
	Payload       *hexutil.Bytes `json:"payload,omitempty"`
	Cid           string         `json:"cid,omitempty"`
	PayloadLength *uint32        `json:"payload_length,omitempty"`

	// Raw is the item exactly as the node returned it.
	Raw json.RawMessage `json:"-"`
}

func (m *MessageResponse) UnmarshalJSON(data []byte) error {
	type plain MessageResponse
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MessageResponse(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// BlockPaginationResponse is one page of messages plus where to continue.
type BlockPaginationResponse struct {
	Content   []MessageResponse `json:"content"`
	HasNext   bool              `json:"has_next"`
	NextBlock *uint32           `json:"next_block,omitempty"`
	NextIndex *uint32           `json:"next_index,omitempty"`
}

// Next returns the request for the following page of the same window, or
// false once the window is drained.
func (r *BlockPaginationResponse) Next(prev BlockPaginationRequest) (BlockPaginationRequest, bool) {
	if r == nil || !r.HasNext || r.NextBlock == nil {
		return BlockPaginationRequest{}, false
	}
	next := prev
	next.FromBlock = *r.NextBlock
	next.FromIndex = 0
	if r.NextIndex != nil {
		next.FromIndex = *r.NextIndex
	}
	if next.FromBlock >= next.ToBlock {
		return BlockPaginationRequest{}, false
	}
	return next, true
}
