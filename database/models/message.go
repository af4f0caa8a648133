package models

import (
	"time"

	"github.com/frequency-chain/frequency-ops/types"
)

// Message is a stored schema message. (schema_id, block_number, index) is unique.
type Message struct {
	SchemaID      uint16    `json:"schema_id" bson:"schema_id"`
	BlockNumber   uint32    `json:"block_number" bson:"block_number"`
	Index         uint16    `json:"index" bson:"index"`
	ProviderMsaID uint64    `json:"provider_msa_id" bson:"provider_msa_id"`
	MsaID         *uint64   `json:"msa_id,omitempty" bson:"msa_id,omitempty"`
	Payload       string    `json:"payload,omitempty" bson:"payload,omitempty"`
	Cid           string    `json:"cid,omitempty" bson:"cid,omitempty"`
	PayloadLength *uint32   `json:"payload_length,omitempty" bson:"payload_length,omitempty"`
	IndexedAt     time.Time `json:"indexed_at" bson:"indexed_at"`
}

func NewMessage(schemaID types.SchemaID, m types.MessageResponse, indexedAt time.Time) Message {
	msg := Message{
		SchemaID:      uint16(schemaID),
		BlockNumber:   m.BlockNumber,
		Index:         m.Index,
		ProviderMsaID: m.ProviderMsaID,
		MsaID:         m.MsaID,
		Cid:           m.Cid,
		PayloadLength: m.PayloadLength,
		IndexedAt:     indexedAt,
	}
	if m.Payload != nil {
		msg.Payload = m.Payload.String()
	}
	return msg
}
