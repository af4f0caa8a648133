package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	highBit, ok := new(big.Int).SetString("80000000000000000000000000000000", 16)
	require.True(t, ok)
	allBits, ok := new(big.Int).SetString("ffffffffffffffffffffffffffffffff", 16)
	require.True(t, ok)
	lowBits, ok := new(big.Int).SetString("7fffffffffffffffffffffffffffffff", 16)
	require.True(t, ok)

	tests := []struct {
		name  string
		flags *big.Int
		want  bool
	}{
		{"zero", big.NewInt(0), true},
		{"nil", nil, true},
		{"high bit", highBit, false},
		{"all bits", allBits, false},
		{"every bit below high bit", lowBits, true},
		{"small value", big.NewInt(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.flags))
			if tt.flags != nil {
				masked := new(big.Int).And(tt.flags, NewLogicFlag)
				assert.Equal(t, masked.Sign() == 0, Eligible(tt.flags))
			}
		})
	}
}

func TestEligibleScenario(t *testing.T) {
	highBit, _ := new(big.Int).SetString("80000000000000000000000000000000", 16)
	records := []AccountRecord{
		{ID: AccountID{1}, Flags: big.NewInt(0)},
		{ID: AccountID{2}, Flags: highBit},
	}

	var eligible []AccountID
	for _, r := range records {
		if Eligible(r.Flags) {
			eligible = append(eligible, r.ID)
		}
	}

	assert.Equal(t, []AccountID{{1}}, eligible)
}

func TestChunks(t *testing.T) {
	items := make([]int, 2500)
	for i := range items {
		items[i] = i
	}

	for _, size := range []int{1, 7, 1024, 2500, 4096} {
		chunks := Chunks(items, size)

		var joined []int
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), size)
			assert.NotEmpty(t, c)
			joined = append(joined, c...)
		}
		assert.Equal(t, items, joined, "size %d", size)
	}

	assert.Len(t, Chunks(items, 1024), 3)
	assert.Nil(t, Chunks([]int{}, 10))
	assert.Nil(t, Chunks(items, 0))
}

func TestChunksDoNotAlias(t *testing.T) {
	items := []int{1, 2, 3, 4}
	chunks := Chunks(items, 2)
	chunks[0] = append(chunks[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestAccountIDHex(t *testing.T) {
	var id AccountID
	id[31] = 0xff
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000ff", id.Hex())
}
