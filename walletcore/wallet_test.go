package walletcore

import (
	"bytes"
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/lib/wire"
	"github.com/leviar-network/go-miniwallet/node"
)

const testTimeout = 5 * time.Second

type sendResult struct {
	id  TransactionID
	err error
}

// testObserver funnels engine callbacks into channels the test can wait on.
type testObserver struct {
	init     chan error
	save     chan error
	send     chan sendResult
	external chan TransactionID
	synced   chan error
}

func newTestObserver() *testObserver {
	return &testObserver{
		init:     make(chan error, 4),
		save:     make(chan error, 4),
		send:     make(chan sendResult, 4),
		external: make(chan TransactionID, 16),
		synced:   make(chan error, 4),
	}
}

func (t *testObserver) InitCompleted(err error) { t.init <- err }
func (t *testObserver) SaveCompleted(err error) { t.save <- err }
func (t *testObserver) SendCompleted(id TransactionID, err error) {
	t.send <- sendResult{id, err}
}
func (t *testObserver) ExternalTransactionCreated(id TransactionID) { t.external <- id }
func (t *testObserver) SynchronizationProgress(cur, total uint64)   {}
func (t *testObserver) SynchronizationCompleted(err error)          { t.synced <- err }

func waitErr(t *testing.T, ch chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func fastSync(t *testing.T) {
	t.Helper()
	old := syncInterval
	syncInterval = 10 * time.Millisecond
	t.Cleanup(func() { syncInterval = old })
}

func newTestWallet(t *testing.T, fp *node.FakeProxy) (*LocalWallet, *testObserver) {
	t.Helper()
	w := NewLocalWallet(fp)
	obs := newTestObserver()
	w.AddObserver(obs)
	w.InitializeNew("hunter2")
	require.NoError(t, waitErr(t, obs.init, "init"))
	t.Cleanup(w.Shutdown)
	return w, obs
}

func TestContainerRoundTrip(t *testing.T) {
	body := []byte("some wallet body bytes")
	sealed, err := sealBody(body, []byte("pass"))
	require.NoError(t, err)

	got, err := openBody(sealed, []byte("pass"))
	require.NoError(t, err)
	require.Equal(t, body, got)

	_, err = openBody(sealed, []byte("wrong"))
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestGenerateSaveReload(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(0)
	w, obs := newTestWallet(t, fp)

	addr := w.Address()
	require.NotEmpty(t, addr)

	var buf bytes.Buffer
	w.Save(&buf, true, true)
	require.NoError(t, waitErr(t, obs.save, "save"))
	w.Shutdown()

	w2 := NewLocalWallet(fp)
	obs2 := newTestObserver()
	w2.AddObserver(obs2)
	w2.InitializeFromStream(bytes.NewReader(buf.Bytes()), "hunter2")
	require.NoError(t, waitErr(t, obs2.init, "reload"))
	defer w2.Shutdown()

	require.Equal(t, addr, w2.Address())
}

func TestLoadWrongPassword(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(0)
	w, obs := newTestWallet(t, fp)

	var buf bytes.Buffer
	w.Save(&buf, false, false)
	require.NoError(t, waitErr(t, obs.save, "save"))
	w.Shutdown()

	w2 := NewLocalWallet(fp)
	obs2 := newTestObserver()
	w2.AddObserver(obs2)
	w2.InitializeFromStream(bytes.NewReader(buf.Bytes()), "nope")
	require.ErrorIs(t, waitErr(t, obs2.init, "reload"), ErrDecrypt)
}

func TestSendRejectedWithoutFunds(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(0)
	w, _ := newTestWallet(t, fp)

	dests := []wire.Destination{{Amount: 100}}
	id, err := w.SendTransfer(dests, build.MinimumFee, nil, 3, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, InvalidTransactionID, id)
	require.Zero(t, fp.RelayedCount())
}

func TestSendRejectsOverflowingAmounts(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(10)
	fp.Deposit("ee04", 5*build.MinimumFee, time.Now().Unix())

	w, obs := newTestWallet(t, fp)
	require.NoError(t, waitErr(t, obs.synced, "sync"))
	before := w.ActualBalance()
	relayedBefore := fp.RelayedCount()

	// a near-max amount must not wrap the total past the funds check
	id, err := w.SendTransfer([]wire.Destination{{Amount: math.MaxUint64}}, build.MinimumFee, nil, 3, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, InvalidTransactionID, id)

	// two destinations whose sum wraps to zero
	id, err = w.SendTransfer([]wire.Destination{{Amount: 1 << 63}, {Amount: 1 << 63}}, build.MinimumFee, nil, 3, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, InvalidTransactionID, id)

	// a fee that wraps the total
	id, err = w.SendTransfer([]wire.Destination{{Amount: build.MinimumFee}}, math.MaxUint64, nil, 3, 0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, InvalidTransactionID, id)

	require.Equal(t, before, w.ActualBalance())
	require.Equal(t, relayedBefore, fp.RelayedCount())
	require.Equal(t, 1, w.TransactionCount()) // only the deposit
}

func TestSyncFollowsChainGrowth(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(0)
	w, obs := newTestWallet(t, fp)
	require.NoError(t, waitErr(t, obs.synced, "sync"))
	require.Zero(t, w.SyncHeight())

	fp.AdvanceChain(50)
	fp.Deposit("dd05", 2*build.MinimumFee, time.Now().Unix())

	require.Eventually(t, func() bool {
		return w.SyncHeight() == 50 && w.ActualBalance() == 2*build.MinimumFee
	}, testTimeout, 10*time.Millisecond, "scan never caught up with the grown chain")
}

func TestDepositThenSend(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(10)
	fp.Deposit("aa01", 5*build.MinimumFee, time.Now().Unix())

	w, obs := newTestWallet(t, fp)

	select {
	case id := <-obs.external:
		tx, err := w.Transaction(id)
		require.NoError(t, err)
		require.Equal(t, "aa01", tx.Hash)
		require.Equal(t, int64(5*build.MinimumFee), tx.TotalAmount)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for external transaction")
	}
	require.NoError(t, waitErr(t, obs.synced, "sync"))
	require.Equal(t, uint64(5*build.MinimumFee), w.ActualBalance())

	dests := []wire.Destination{{Amount: 2 * build.MinimumFee}}
	id, err := w.SendTransfer(dests, build.MinimumFee, nil, 3, 0)
	require.NoError(t, err)

	select {
	case res := <-obs.send:
		require.Equal(t, id, res.id)
		require.NoError(t, res.err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for send completion")
	}

	require.Equal(t, uint64(2*build.MinimumFee), w.ActualBalance())
	require.Equal(t, 1, fp.RelayedCount())

	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, TxStateActive, tx.State)
	require.Equal(t, -int64(3*build.MinimumFee), tx.TotalAmount)
}

func TestRelayFailureRefunds(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(10)
	fp.Deposit("bb02", 10*build.MinimumFee, time.Now().Unix())
	fp.FailRelays("pool rejected transaction")

	w, obs := newTestWallet(t, fp)
	require.NoError(t, waitErr(t, obs.synced, "sync"))
	before := w.ActualBalance()

	id, err := w.SendTransfer([]wire.Destination{{Amount: build.MinimumFee}}, build.MinimumFee, nil, 3, 0)
	require.NoError(t, err)

	select {
	case res := <-obs.send:
		require.Equal(t, id, res.id)
		require.Error(t, res.err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for send completion")
	}

	require.Equal(t, before, w.ActualBalance())
	tx, err := w.Transaction(id)
	require.NoError(t, err)
	require.Equal(t, TxStateFailed, tx.State)
}

func TestHistorySurvivesReload(t *testing.T) {
	fastSync(t)
	fp := node.NewFakeProxy(10)
	fp.Deposit("cc03", 4*build.MinimumFee, time.Now().Unix())

	w, obs := newTestWallet(t, fp)
	require.NoError(t, waitErr(t, obs.synced, "sync"))
	require.Equal(t, 1, w.TransactionCount())

	var buf bytes.Buffer
	w.Save(&buf, true, true)
	require.NoError(t, waitErr(t, obs.save, "save"))
	w.Shutdown()

	w2 := NewLocalWallet(fp)
	obs2 := newTestObserver()
	w2.AddObserver(obs2)
	w2.InitializeFromStream(bytes.NewReader(buf.Bytes()), "hunter2")
	require.NoError(t, waitErr(t, obs2.init, "reload"))
	defer w2.Shutdown()

	require.Equal(t, 1, w2.TransactionCount())
	require.Equal(t, uint64(4*build.MinimumFee), w2.ActualBalance())
	require.Equal(t, uint64(10), w2.SyncHeight())
}

func TestPaymentIDExtraRoundTrip(t *testing.T) {
	pid := bytes.Repeat([]byte{0xab}, PaymentIDByteLength)

	extra, err := ParsePaymentIDExtra(hex.EncodeToString(pid))
	require.NoError(t, err)
	require.Equal(t, pid, GetPaymentIDFromExtra(extra))

	require.Nil(t, GetPaymentIDFromExtra(nil))
	require.Nil(t, GetPaymentIDFromExtra([]byte{0x01, 0x02, 0x03}))

	_, err = ParsePaymentIDExtra("zz")
	require.Error(t, err)
	_, err = ParsePaymentIDExtra("abcd")
	require.Error(t, err)
}
