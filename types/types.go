package types

// BatchStatus represents the different states an upgrade batch can be in
type BatchStatus string

const (
	// Submitted - Extrinsic was handed to the node and is waiting for inclusion
	Submitted BatchStatus = "SUBMITTED"

	// InBlock - Extrinsic was included in a block
	InBlock BatchStatus = "IN_BLOCK"

	// Failed - Extrinsic was rejected, dropped or the submission errored
	Failed BatchStatus = "FAILED"
)

// SchemaID selects a category of on-chain messages.
type SchemaID uint16
