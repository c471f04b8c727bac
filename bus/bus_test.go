package bus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/lib/walletfile"
	"github.com/leviar-network/go-miniwallet/node"
	"github.com/leviar-network/go-miniwallet/progress"
	"github.com/leviar-network/go-miniwallet/session"
	"github.com/leviar-network/go-miniwallet/walletcore"
)

const (
	waitFor = 15 * time.Second
	tick    = 50 * time.Millisecond
)

func fastIntervals() Intervals {
	return Intervals{
		Status:        50 * time.Millisecond,
		Tx:            50 * time.Millisecond,
		ResetIdle:     50 * time.Millisecond,
		ResetCooldown: 100 * time.Millisecond,
		SaveIdle:      50 * time.Millisecond,
		SaveCooldown:  100 * time.Millisecond,
	}
}

type harness struct {
	paths    walletfile.Paths
	fp       *node.FakeProxy
	sess     *session.Manager
	reporter *progress.Reporter
}

// startHarness wires a full daemon minus the CLI: engine, session, reporter
// and the polling loops, over a fresh wallet funded with `fund` atomic units.
func startHarness(t *testing.T, fund uint64) *harness {
	t.Helper()

	paths := walletfile.Paths{Base: filepath.Join(t.TempDir(), "wallet")}
	fp := node.NewFakeProxy(10)

	engine := walletcore.NewLocalWallet(fp)
	sess := session.NewManager(engine, paths)
	reporter := progress.NewReporter(engine)
	engine.AddObserver(reporter)
	sess.SetGate(reporter)

	require.NoError(t, sess.CreateNew("pass"))
	t.Cleanup(sess.Close)

	if fund > 0 {
		fp.Deposit("f0f0", fund, time.Now().Unix())
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := New(sess, reporter, fastIntervals())
	b.Start(ctx)
	t.Cleanup(func() {
		cancel()
		b.Wait()
	})

	return &harness{paths: paths, fp: fp, sess: sess, reporter: reporter}
}

func waitForFile(t *testing.T, path string) string {
	t.Helper()
	var content string
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		content = string(data)
		return true
	}, waitFor, tick, "file %s never appeared", path)
	return content
}

func TestStatusExport(t *testing.T) {
	fund := uint64(5_000_000_000_000)
	h := startHarness(t, fund)

	addr := waitForFile(t, h.paths.Address())
	require.Equal(t, h.sess.AddressString()+"\n", addr)

	status := waitForFile(t, h.paths.Status())
	require.Equal(t, "5.000000000000|0.000000000000\n", status)

	txs := waitForFile(t, h.paths.Txs())
	require.Contains(t, txs, "f0f0")
}

func TestTransferScenario(t *testing.T) {
	fund := uint64(5_000_000_000_000)
	h := startHarness(t, fund)
	waitForFile(t, h.paths.Status())

	pid := strings.Repeat("ab", 32)
	line := "3|" + h.sess.AddressString() + "|1.5|" + pid + "|0.01\n"
	require.NoError(t, os.WriteFile(h.paths.TxCast(), []byte(line), 0600))

	result := strings.TrimSpace(waitForFile(t, h.paths.TxResult()))
	require.Len(t, result, build.TransactionHashLength)
	require.Equal(t, 1, h.fp.RelayedCount())

	// the request sentinel is fully consumed
	require.Eventually(t, func() bool {
		return !walletfile.Exists(h.paths.TxCast()) &&
			!walletfile.Exists(walletfile.Claimed(h.paths.TxCast()))
	}, waitFor, tick)

	// 1.5 sent plus 0.01 fee comes off the available balance
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(h.paths.Status())
		return err == nil && strings.HasPrefix(string(data), "3.490000000000|")
	}, waitFor, tick, "status never reflected the send")

	require.Contains(t, waitForFile(t, h.paths.Txs()), result)
}

func TestMalformedTransferRejected(t *testing.T) {
	fund := uint64(5_000_000_000_000)
	h := startHarness(t, fund)
	waitForFile(t, h.paths.Status())

	line := "abc|" + h.sess.AddressString() + "|1.5\n"
	require.NoError(t, os.WriteFile(h.paths.TxCast(), []byte(line), 0600))

	result := waitForFile(t, h.paths.TxResult())
	require.Contains(t, result, "mixin_count")
	require.Zero(t, h.fp.RelayedCount())

	available, _ := h.sess.Balances()
	require.Equal(t, fund, available)
}

func TestSaveTrigger(t *testing.T) {
	h := startHarness(t, 0)

	before, err := os.ReadFile(h.paths.Wallet())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(h.paths.Save(), nil, 0600))

	require.Eventually(t, func() bool {
		return !walletfile.Exists(h.paths.Save()) &&
			!walletfile.Exists(walletfile.Claimed(h.paths.Save()))
	}, waitFor, tick, "save trigger never consumed")

	require.Eventually(t, func() bool {
		after, err := os.ReadFile(h.paths.Wallet())
		return err == nil && len(after) > 0 && string(after) != string(before)
	}, waitFor, tick, "wallet file never rewritten")
}

func TestResetTrigger(t *testing.T) {
	fund := uint64(3_000_000_000_000)
	h := startHarness(t, fund)
	waitForFile(t, h.paths.Status())

	require.NoError(t, os.WriteFile(h.paths.Reset(), nil, 0600))

	require.Eventually(t, func() bool {
		return !walletfile.Exists(h.paths.Reset()) &&
			!walletfile.Exists(walletfile.Claimed(h.paths.Reset()))
	}, waitFor, tick, "reset trigger never consumed")

	// the rescan rediscovers the deposit and re-completes the sync gate
	require.Eventually(t, func() bool {
		available, _ := h.sess.Balances()
		return available == fund && h.reporter.Synchronized()
	}, waitFor, tick, "wallet never resynchronized after reset")
}

func TestLoopSurvivesPanic(t *testing.T) {
	b := &Bus{iv: fastIntervals()}
	delay := b.runStep("test", func() time.Duration { panic("boom") }, time.Second)
	require.Equal(t, time.Second, delay)
}
