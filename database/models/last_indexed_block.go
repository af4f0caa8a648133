package models

import "time"

// LastIndexedBlock is the resume point of one indexing stream, e.g. the end of
// the last fully drained window of a schema.
type LastIndexedBlock struct {
	Key         string    `json:"key" bson:"key"`
	BlockNumber uint64    `json:"block_number" bson:"block_number"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
