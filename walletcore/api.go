// Package walletcore defines the wallet engine contract consumed by the
// session layer, and provides LocalWallet, the in-process engine.
//
// Engine calls with completion observers are asynchronous: the call returns
// immediately and the outcome is delivered through the registered observers,
// from an engine-owned goroutine.
package walletcore

import (
	"io"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/lib/wire"
)

// TransactionID indexes a transaction inside the engine.
type TransactionID uint64

// InvalidTransactionID is the sentinel returned when a send is rejected
// before submission.
const InvalidTransactionID = TransactionID(^uint64(0))

// UnconfirmedHeight marks a transaction not yet included in a block.
const UnconfirmedHeight = build.UnconfirmedHeight

type TransactionState uint8

const (
	TxStateActive TransactionState = iota
	TxStateSending
	TxStateFailed
	TxStateCancelled
)

// TransactionInfo is the engine's view of one transaction.
type TransactionInfo struct {
	Hash        string
	TotalAmount int64
	Fee         uint64
	BlockHeight uint64
	UnlockTime  uint64
	Timestamp   int64
	Extra       []byte
	State       TransactionState
}

// Observer receives engine callbacks. Callbacks arrive from engine-owned
// goroutines; implementations must be safe to call from any thread.
type Observer interface {
	InitCompleted(err error)
	SaveCompleted(err error)
	SendCompleted(id TransactionID, err error)
	ExternalTransactionCreated(id TransactionID)
	SynchronizationProgress(current, total uint64)
	SynchronizationCompleted(err error)
}

// Engine is the wallet engine surface the daemon drives.
type Engine interface {
	// InitializeFromStream loads wallet state from an encrypted stream.
	// Completion is reported via InitCompleted.
	InitializeFromStream(r io.Reader, password string)

	// InitializeNew generates a fresh wallet. Completion via InitCompleted.
	InitializeNew(password string)

	// Save serializes wallet state to w. Completion via SaveCompleted.
	Save(w io.Writer, details, cache bool)

	// Shutdown stops the engine; it may be re-initialized afterwards.
	Shutdown()

	// SendTransfer submits a transfer. It returns InvalidTransactionID with
	// an error when the request is rejected up front; otherwise the returned
	// id's outcome is reported via SendCompleted.
	SendTransfer(dests []wire.Destination, fee uint64, extra []byte, mixin uint64, unlockTime uint64) (TransactionID, error)

	Address() string
	Transaction(id TransactionID) (TransactionInfo, error)
	TransactionCount() int
	ActualBalance() uint64
	PendingBalance() uint64

	AddObserver(o Observer)
	RemoveObserver(o Observer)
}
