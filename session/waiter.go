package session

import (
	"github.com/leviar-network/go-miniwallet/walletcore"
)

// Waiter turns one asynchronous engine callback into a blocking wait. The
// result slot is single-assignment: the first completion wins and any
// further completion for the same operation is logged and dropped.
//
// A Waiter must be registered with the engine before the operation it
// tracks is issued, otherwise the completion can be missed.
type Waiter struct {
	ch chan error
}

func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan error, 1)}
}

// Complete fulfills the result slot. Safe to call from any goroutine.
func (w *Waiter) Complete(err error) {
	select {
	case w.ch <- err:
	default:
		logger.Warn("duplicate completion for finished operation ignored: ", err)
	}
}

// Wait blocks until the operation completes and returns its outcome.
// There is no timeout; the caller owns cancellation policy.
func (w *Waiter) Wait() error {
	return <-w.ch
}

// initBridge routes init-completed into a Waiter.
type initBridge struct {
	walletcore.BaseObserver
	w *Waiter
}

func (b *initBridge) InitCompleted(err error) { b.w.Complete(err) }

// saveBridge routes save-completed into a Waiter.
type saveBridge struct {
	walletcore.BaseObserver
	w *Waiter
}

func (b *saveBridge) SaveCompleted(err error) { b.w.Complete(err) }

// sendBridge routes send-completed into a Waiter. Engine access is
// serialized by the manager, so at most one send is in flight and any
// delivered completion belongs to it.
type sendBridge struct {
	walletcore.BaseObserver
	w *Waiter
}

func (b *sendBridge) SendCompleted(id walletcore.TransactionID, err error) {
	b.w.Complete(err)
}
