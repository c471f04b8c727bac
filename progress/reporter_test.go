package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/walletcore"
)

type fakeSource struct {
	txs map[walletcore.TransactionID]walletcore.TransactionInfo
}

func (f *fakeSource) Transaction(id walletcore.TransactionID) (walletcore.TransactionInfo, error) {
	return f.txs[id], nil
}

func TestWaitSynchronized(t *testing.T) {
	r := NewReporter(&fakeSource{})
	require.False(t, r.Synchronized())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.WaitSynchronized(ctx), context.DeadlineExceeded)

	go func() {
		r.SynchronizationProgress(10, 100)
		r.SynchronizationCompleted(nil)
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, r.WaitSynchronized(ctx2))
	require.True(t, r.Synchronized())
}

func TestCompletionIsOneShot(t *testing.T) {
	r := NewReporter(&fakeSource{})
	r.SynchronizationCompleted(nil)
	// a second completion must not panic or clobber the recorded outcome
	r.SynchronizationCompleted(context.Canceled)
	require.NoError(t, r.WaitSynchronized(context.Background()))
}

func TestRearmReopensGate(t *testing.T) {
	r := NewReporter(&fakeSource{})

	r.Rearm() // no-op before the first sync
	require.False(t, r.Synchronized())

	r.SynchronizationCompleted(nil)
	require.True(t, r.Synchronized())

	r.Rearm()
	require.False(t, r.Synchronized())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.WaitSynchronized(ctx), context.DeadlineExceeded)

	r.SynchronizationCompleted(nil)
	require.NoError(t, r.WaitSynchronized(context.Background()))
}

func TestTransactionLogging(t *testing.T) {
	src := &fakeSource{txs: map[walletcore.TransactionID]walletcore.TransactionInfo{
		0: {Hash: "aa", TotalAmount: 150, BlockHeight: 7},
		1: {Hash: "bb", TotalAmount: -90, BlockHeight: build.UnconfirmedHeight},
	}}
	r := NewReporter(src)

	// both directions and both confirmation states must be loggable
	r.ExternalTransactionCreated(0)
	r.ExternalTransactionCreated(1)
}
