package node

import (
	"context"
	"sync"

	"golang.org/x/xerrors"
)

// FakeProxy is an in-process Proxy with scripted chain state, used by tests
// and by the engine's own test suite.
type FakeProxy struct {
	lk sync.Mutex

	height    uint64
	transfers []ExternalTransfer
	relayed   [][]byte

	relayErr error
}

var _ Proxy = (*FakeProxy)(nil)

func NewFakeProxy(height uint64) *FakeProxy {
	return &FakeProxy{height: height}
}

func (f *FakeProxy) Init(ctx context.Context) error { return nil }
func (f *FakeProxy) Close() error                   { return nil }

func (f *FakeProxy) LastKnownHeight() (uint64, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.height, nil
}

func (f *FakeProxy) RelayTransaction(ctx context.Context, blob []byte) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	if f.relayErr != nil {
		return f.relayErr
	}
	f.relayed = append(f.relayed, blob)
	return nil
}

func (f *FakeProxy) PollTransfers(ctx context.Context, addr string, since uint64) ([]ExternalTransfer, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	var out []ExternalTransfer
	for _, t := range f.transfers {
		if t.Height >= since {
			out = append(out, t)
		}
	}
	return out, nil
}

// AdvanceChain raises the reported chain height.
func (f *FakeProxy) AdvanceChain(blocks uint64) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.height += blocks
}

// Deposit schedules an incoming transfer at the current height.
func (f *FakeProxy) Deposit(hash string, amount uint64, ts int64) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.transfers = append(f.transfers, ExternalTransfer{
		Hash:      hash,
		Amount:    amount,
		Height:    f.height,
		Timestamp: ts,
	})
}

// FailRelays makes every subsequent relay fail.
func (f *FakeProxy) FailRelays(msg string) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.relayErr = xerrors.New(msg)
}

// RelayedCount reports how many transactions reached the pool.
func (f *FakeProxy) RelayedCount() int {
	f.lk.Lock()
	defer f.lk.Unlock()
	return len(f.relayed)
}
