// Package bus runs the four polling loops that bridge the front-end's
// sentinel files to the wallet session: status export, transaction
// submission, wallet reset and wallet persist. Each loop owns exactly one
// sentinel suffix and survives any single-iteration failure.
package bus

import (
	"context"
	"os"
	"sync"
	"time"

	logging "github.com/leviar-network/go-miniwallet/lib/log"
	"github.com/leviar-network/go-miniwallet/lib/walletfile"
	"github.com/leviar-network/go-miniwallet/lib/wire"
	"github.com/leviar-network/go-miniwallet/session"
)

var logger = logging.Logger("bus")

// Intervals holds the per-loop polling periods. Cooldowns apply after a
// request was actually processed.
type Intervals struct {
	Status        time.Duration
	Tx            time.Duration
	ResetIdle     time.Duration
	ResetCooldown time.Duration
	SaveIdle      time.Duration
	SaveCooldown  time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Status:        5 * time.Second,
		Tx:            2 * time.Second,
		ResetIdle:     5 * time.Second,
		ResetCooldown: 60 * time.Second,
		SaveIdle:      5 * time.Second,
		SaveCooldown:  10 * time.Second,
	}
}

// Synchronized gates the status export on the first full chain sync.
type Synchronized interface {
	Synchronized() bool
}

// Bus drives the polling loops against one shared session.
type Bus struct {
	sess   *session.Manager
	paths  walletfile.Paths
	synced Synchronized
	iv     Intervals

	wg sync.WaitGroup

	// status-loop state, touched only by that loop
	lastStatus string
	lastTxs    string
}

func New(sess *session.Manager, synced Synchronized, iv Intervals) *Bus {
	return &Bus{
		sess:   sess,
		paths:  sess.Paths(),
		synced: synced,
		iv:     iv,
	}
}

// Start launches the loops. They stop at their next polling checkpoint once
// ctx is cancelled; an operation already in flight is allowed to finish.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(4)
	go b.loop(ctx, "status", b.statusStep, b.iv.Status)
	go b.loop(ctx, "tx", b.txStep, b.iv.Tx)
	go b.loop(ctx, "reset", b.resetStep, b.iv.ResetIdle)
	go b.loop(ctx, "save", b.saveStep, b.iv.SaveIdle)
}

// Wait blocks until every loop has exited.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) loop(ctx context.Context, name string, step func() time.Duration, fallback time.Duration) {
	defer b.wg.Done()
	logger.Info(name, " loop started")
	for {
		delay := b.runStep(name, step, fallback)
		select {
		case <-ctx.Done():
			logger.Info(name, " loop stopped")
			return
		case <-time.After(delay):
		}
	}
}

// runStep executes one iteration behind a recover barrier; a panicking
// iteration must never take its loop down.
func (b *Bus) runStep(name string, step func() time.Duration, fallback time.Duration) (delay time.Duration) {
	delay = fallback
	defer func() {
		if r := recover(); r != nil {
			logger.Error(name, " loop iteration failed: ", r)
		}
	}()
	return step()
}

// statusStep exports the address once, then the balance and transaction
// history whenever they change. Nothing is exported before the first sync;
// the front-end would only see zeros that mean "still scanning".
func (b *Bus) statusStep() time.Duration {
	if addr := b.sess.AddressString(); addr != "" {
		if err := walletfile.WriteFileIfAbsent(b.paths.Address(), []byte(addr+"\n")); err != nil {
			logger.Warn("cannot write address file: ", err)
		}
	}

	if b.synced != nil && !b.synced.Synchronized() {
		return b.iv.Status
	}

	if status := b.sess.StatusLine(); status != b.lastStatus {
		if err := os.WriteFile(b.paths.Status(), []byte(status+"\n"), 0600); err != nil {
			logger.Warn("cannot write status file: ", err)
		} else {
			b.lastStatus = status
		}
	}

	if txs := b.sess.ExportTransactions(); txs != b.lastTxs {
		if err := os.WriteFile(b.paths.Txs(), []byte(txs), 0600); err != nil {
			logger.Warn("cannot write transactions file: ", err)
		} else {
			b.lastTxs = txs
		}
	}

	return b.iv.Status
}

// txStep claims a pending .txcast request, submits it and writes the
// transaction hash or a human-readable error to .txresult.
func (b *Bus) txStep() time.Duration {
	castPath := b.paths.TxCast()
	if !walletfile.Exists(castPath) {
		return b.iv.Tx
	}

	if err := walletfile.Claim(castPath); err != nil {
		logger.Warn("cannot claim transfer request: ", err)
		return b.iv.Tx
	}
	claimed := walletfile.Claimed(castPath)
	defer func() {
		if err := walletfile.RemoveWithRetry(claimed); err != nil {
			logger.Warn("cannot remove claimed request ", claimed, ": ", err)
		}
	}()

	result := b.processTransfer(claimed)
	if err := os.WriteFile(b.paths.TxResult(), []byte(result+"\n"), 0600); err != nil {
		logger.Warn("cannot write transfer result: ", err)
	}

	return b.iv.Tx
}

func (b *Bus) processTransfer(claimed string) string {
	data, err := os.ReadFile(claimed)
	if err != nil {
		logger.Warn("cannot read claimed request: ", err)
		return "cannot read transfer request"
	}

	req, err := wire.ParseTransferRequest(string(data))
	if err != nil {
		logger.Warn("rejected transfer request: ", err)
		return err.Error()
	}

	hash, err := b.sess.SubmitTransfer(req)
	if err != nil {
		logger.Warn("transfer failed: ", err)
		return err.Error()
	}
	return hash
}

// resetStep claims a pending .reset trigger and forces a full reload, then
// cools down before re-polling.
func (b *Bus) resetStep() time.Duration {
	resetPath := b.paths.Reset()
	if !walletfile.Exists(resetPath) {
		return b.iv.ResetIdle
	}

	if err := walletfile.Claim(resetPath); err != nil {
		logger.Warn("cannot claim reset trigger: ", err)
		return b.iv.ResetIdle
	}
	if err := walletfile.RemoveWithRetry(walletfile.Claimed(resetPath)); err != nil {
		logger.Warn("cannot remove reset trigger: ", err)
	}

	if err := b.sess.ResetAndReload(); err != nil {
		logger.Error("wallet reset failed: ", err)
	}
	return b.iv.ResetCooldown
}

// saveStep claims a pending .save trigger and persists the wallet through
// the atomic replace discipline.
func (b *Bus) saveStep() time.Duration {
	savePath := b.paths.Save()
	if !walletfile.Exists(savePath) {
		return b.iv.SaveIdle
	}

	if err := walletfile.Claim(savePath); err != nil {
		logger.Warn("cannot claim save trigger: ", err)
		return b.iv.SaveIdle
	}
	if err := walletfile.RemoveWithRetry(walletfile.Claimed(savePath)); err != nil {
		logger.Warn("cannot remove save trigger: ", err)
	}

	if err := b.sess.Persist(); err != nil {
		logger.Error("wallet persist failed: ", err)
	} else {
		logger.Info("wallet persisted on request")
	}
	return b.iv.SaveCooldown
}
