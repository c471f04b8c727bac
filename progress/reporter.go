// Package progress turns engine synchronization callbacks into rate-limited
// log lines and a one-shot first-sync gate the daemon can block on.
package progress

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/lib/currency"
	logging "github.com/leviar-network/go-miniwallet/lib/log"
	"github.com/leviar-network/go-miniwallet/walletcore"
)

var logger = logging.Logger("progress")

// progressEvery bounds how often catch-up progress is logged.
const progressEvery = 5 * time.Second

// TransactionSource resolves transaction ids delivered by callbacks.
type TransactionSource interface {
	Transaction(id walletcore.TransactionID) (walletcore.TransactionInfo, error)
}

// Reporter is registered as an engine observer. While the wallet is catching
// up it forwards progress through a rate limiter; once the first full sync
// completes, progress lines are suppressed and WaitSynchronized unblocks.
// A wallet reset re-arms the gate through Rearm.
type Reporter struct {
	walletcore.BaseObserver

	src     TransactionSource
	limiter *rate.Limiter

	lk           sync.Mutex
	synchronized bool
	syncErr      error
	gate         chan struct{}
}

func NewReporter(src TransactionSource) *Reporter {
	return &Reporter{
		src:     src,
		limiter: rate.NewLimiter(rate.Every(progressEvery), 1),
		gate:    make(chan struct{}),
	}
}

func (r *Reporter) ExternalTransactionCreated(id walletcore.TransactionID) {
	tx, err := r.src.Transaction(id)
	if err != nil {
		logger.Warn("cannot resolve transaction ", id, ": ", err)
		return
	}

	height := "unconfirmed"
	if tx.BlockHeight != build.UnconfirmedHeight {
		height = "height " + strconv.FormatUint(tx.BlockHeight, 10)
	}

	if tx.TotalAmount >= 0 {
		logger.Info("received ", currency.FormatAmount(uint64(tx.TotalAmount)),
			" ", build.CoinUnit, ", ", height, ", tx ", tx.Hash)
	} else {
		logger.Info("spent ", currency.FormatAmount(uint64(-tx.TotalAmount)),
			" ", build.CoinUnit, ", ", height, ", tx ", tx.Hash)
	}
}

func (r *Reporter) SynchronizationProgress(current, total uint64) {
	r.lk.Lock()
	synced := r.synchronized
	r.lk.Unlock()
	if synced {
		return
	}

	if r.limiter.Allow() {
		logger.Info("synchronizing, block ", current, " of ", total)
	}
}

func (r *Reporter) SynchronizationCompleted(err error) {
	r.lk.Lock()
	defer r.lk.Unlock()
	if r.synchronized {
		return
	}
	r.synchronized = true
	r.syncErr = err
	close(r.gate)

	if err != nil {
		logger.Warn("synchronization finished with error: ", err)
	} else {
		logger.Info("wallet synchronized")
	}
}

// Synchronized reports whether the first full sync has completed since the
// reporter was created or last re-armed.
func (r *Reporter) Synchronized() bool {
	r.lk.Lock()
	defer r.lk.Unlock()
	return r.synchronized
}

// WaitSynchronized blocks until the first sync completes or ctx is done.
// It returns the error the sync completed with, if any.
func (r *Reporter) WaitSynchronized(ctx context.Context) error {
	r.lk.Lock()
	gate := r.gate
	r.lk.Unlock()

	select {
	case <-gate:
		r.lk.Lock()
		defer r.lk.Unlock()
		return r.syncErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rearm resets the gate after a wallet reset so the next full catch-up
// reports progress and completion again.
func (r *Reporter) Rearm() {
	r.lk.Lock()
	defer r.lk.Unlock()
	if !r.synchronized {
		return
	}
	r.synchronized = false
	r.syncErr = nil
	r.gate = make(chan struct{})
}
