package walletcore

import (
	"context"
	"time"

	"github.com/leviar-network/go-miniwallet/node"
)

// syncInterval is how often the driver asks the node for new state.
// syncBatch bounds how many blocks one tick may scan.
var (
	syncInterval = time.Second
	syncBatch    = uint64(1000)
)

func (w *LocalWallet) startSync() {
	stop := make(chan struct{})
	w.lk.Lock()
	w.stopSync = stop
	w.lk.Unlock()

	w.syncWG.Add(1)
	go w.syncLoop(stop)
}

func (w *LocalWallet) stopSyncDriver() {
	w.lk.Lock()
	stop := w.stopSync
	w.stopSync = nil
	w.lk.Unlock()

	if stop != nil {
		close(stop)
		w.syncWG.Wait()
	}
}

// syncLoop drives the wallet toward the node's chain tip. It reports scan
// progress while behind and signals completion exactly once per run.
func (w *LocalWallet) syncLoop(stop chan struct{}) {
	defer w.syncWG.Done()

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	completed := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		target, err := w.nodep.LastKnownHeight()
		if err != nil {
			logger.Debug("node height query failed: ", err)
			if !completed {
				completed = true
				w.obs.each(func(o Observer) { o.SynchronizationCompleted(err) })
			}
			continue
		}

		w.lk.Lock()
		since := w.syncHeight
		addr := w.addr.String()
		w.lk.Unlock()

		transfers, err := w.nodep.PollTransfers(context.Background(), addr, since)
		if err != nil {
			logger.Debug("transfer scan failed: ", err)
			continue
		}

		created := w.applyTransfers(transfers)
		for _, id := range created {
			id := id
			w.obs.each(func(o Observer) { o.ExternalTransactionCreated(id) })
		}

		cur := w.advanceScan(target)
		if cur < target {
			w.obs.each(func(o Observer) { o.SynchronizationProgress(cur, target) })
			continue
		}
		if !completed {
			completed = true
			w.obs.each(func(o Observer) { o.SynchronizationCompleted(nil) })
		}
	}
}

// applyTransfers folds freshly scanned transfers into the history and
// returns the ids of any newly created external transactions.
func (w *LocalWallet) applyTransfers(transfers []node.ExternalTransfer) []TransactionID {
	w.lk.Lock()
	defer w.lk.Unlock()

	var created []TransactionID
	for _, t := range transfers {
		if id, ok := w.txByHash[t.Hash]; ok {
			w.confirmLocked(id, t.Height)
			continue
		}

		var extra []byte
		if len(t.PaymentID) > 0 {
			extra = CreatePaymentIDExtra(t.PaymentID)
		}
		tx := TransactionInfo{
			Hash:        t.Hash,
			TotalAmount: int64(t.Amount),
			BlockHeight: t.Height,
			Timestamp:   t.Timestamp,
			Extra:       extra,
			State:       TxStateActive,
		}
		id := TransactionID(len(w.txs))
		w.txs = append(w.txs, tx)
		w.txByHash[t.Hash] = id

		if tx.BlockHeight == UnconfirmedHeight {
			w.pending += t.Amount
		} else {
			w.actual += t.Amount
		}
		created = append(created, id)
	}
	return created
}

// confirmLocked moves a known transaction to its confirmed height, shifting
// its value from the pending bucket for incoming transfers. Caller holds w.lk.
func (w *LocalWallet) confirmLocked(id TransactionID, height uint64) {
	tx := &w.txs[id]
	if tx.BlockHeight != UnconfirmedHeight || height == UnconfirmedHeight {
		return
	}
	tx.BlockHeight = height
	if tx.TotalAmount > 0 {
		amount := uint64(tx.TotalAmount)
		if amount <= w.pending {
			w.pending -= amount
		} else {
			w.pending = 0
		}
		w.actual += amount
	}
}

// advanceScan moves the scan height toward target by at most one batch and
// returns the new position.
func (w *LocalWallet) advanceScan(target uint64) uint64 {
	w.lk.Lock()
	defer w.lk.Unlock()

	if w.syncHeight >= target {
		return w.syncHeight
	}
	step := target - w.syncHeight
	if step > syncBatch {
		step = syncBatch
	}
	w.syncHeight += step
	return w.syncHeight
}

// SyncHeight reports the height the wallet has scanned up to.
func (w *LocalWallet) SyncHeight() uint64 {
	w.lk.Lock()
	defer w.lk.Unlock()
	return w.syncHeight
}
