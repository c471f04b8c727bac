// Package node talks to the remote chain daemon the wallet synchronizes
// against. The daemon is an external collaborator; only its height, relay
// and per-wallet transfer scan surface is consumed here.
package node

import "context"

// ExternalTransfer is one incoming output the remote daemon found for the
// wallet's view key.
type ExternalTransfer struct {
	Hash      string `json:"hash"`
	Amount    uint64 `json:"amount"`
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	PaymentID []byte `json:"paymentId,omitempty"`
}

// Proxy is the node surface consumed by the wallet engine.
type Proxy interface {
	// Init establishes the connection; must be called before anything else.
	Init(ctx context.Context) error

	// LastKnownHeight reports the daemon's current blockchain height.
	LastKnownHeight() (uint64, error)

	// RelayTransaction hands a serialized transaction to the daemon's pool.
	RelayTransaction(ctx context.Context, blob []byte) error

	// PollTransfers returns transfers to the given address seen at or above
	// the given height.
	PollTransfers(ctx context.Context, addr string, sinceHeight uint64) ([]ExternalTransfer, error)

	// Close releases the connection.
	Close() error
}
