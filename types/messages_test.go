package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPaginationRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     BlockPaginationRequest
		wantErr bool
	}{
		{"valid", BlockPaginationRequest{FromBlock: 10, ToBlock: 12, PageSize: 1}, false},
		{"zero page size", BlockPaginationRequest{FromBlock: 10, ToBlock: 12, PageSize: 0}, true},
		{"inverted range", BlockPaginationRequest{FromBlock: 10, ToBlock: 8, PageSize: 1}, true},
		{"page size over max", BlockPaginationRequest{FromBlock: 10, ToBlock: 12, PageSize: MaxPageSize + 1}, true},
		{"range over max", BlockPaginationRequest{FromBlock: 1, ToBlock: MaxBlockRange + 2, PageSize: 1}, true},
		{"range at max", BlockPaginationRequest{FromBlock: 0, ToBlock: MaxBlockRange, PageSize: MaxPageSize}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPagination)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBlockPaginationRequestPositionalJSON(t *testing.T) {
	b, err := json.Marshal([]any{uint16(5), BlockPaginationRequest{FromBlock: 100, FromIndex: 3, ToBlock: 150, PageSize: 10}})
	require.NoError(t, err)
	assert.JSONEq(t, `[5,[100,3,150,10]]`, string(b))
}

func TestBlockPaginationResponseDecode(t *testing.T) {
	body := `{
		"content": [
			{"provider_msa_id": 1, "index": 0, "block_number": 7, "msa_id": 9, "payload": "0xdeadbeef"},
			{"provider_msa_id": 2, "index": 1, "block_number": 7, "cid": "bafy", "payload_length": 42}
		],
		"has_next": true,
		"next_block": 8,
		"next_index": 0
	}`

	var resp BlockPaginationResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Content, 2)

	onChain := resp.Content[0]
	require.NotNil(t, onChain.MsaID)
	assert.Equal(t, uint64(9), *onChain.MsaID)
	require.NotNil(t, onChain.Payload)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, []byte(*onChain.Payload))
	assert.JSONEq(t, `{"provider_msa_id": 1, "index": 0, "block_number": 7, "msa_id": 9, "payload": "0xdeadbeef"}`, string(onChain.Raw))

	ipfs := resp.Content[1]
	assert.Equal(t, "bafy", ipfs.Cid)
	require.NotNil(t, ipfs.PayloadLength)
	assert.Equal(t, uint32(42), *ipfs.PayloadLength)
	assert.Nil(t, ipfs.Payload)
}

func TestBlockPaginationResponseNext(t *testing.T) {
	u32 := func(v uint32) *uint32 { return &v }
	prev := BlockPaginationRequest{FromBlock: 0, ToBlock: 100, PageSize: 2}

	t.Run("continues inside window", func(t *testing.T) {
		resp := &BlockPaginationResponse{HasNext: true, NextBlock: u32(40), NextIndex: u32(3)}
		next, ok := resp.Next(prev)
		require.True(t, ok)
		assert.Equal(t, BlockPaginationRequest{FromBlock: 40, FromIndex: 3, ToBlock: 100, PageSize: 2}, next)
	})

	t.Run("drained", func(t *testing.T) {
		_, ok := (&BlockPaginationResponse{}).Next(prev)
		assert.False(t, ok)
	})

	t.Run("next block past window", func(t *testing.T) {
		resp := &BlockPaginationResponse{HasNext: true, NextBlock: u32(100)}
		_, ok := resp.Next(prev)
		assert.False(t, ok)
	})

	t.Run("nil response", func(t *testing.T) {
		var resp *BlockPaginationResponse
		_, ok := resp.Next(prev)
		assert.False(t, ok)
	})
}
