// Package session owns the wallet engine handle. It implements the
// open/create/recover/close lifecycle and serializes every engine operation
// behind one mutex, so the polling loops sharing the session can never race
// a reset against a save or a send.
package session

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/lib/currency"
	logging "github.com/leviar-network/go-miniwallet/lib/log"
	"github.com/leviar-network/go-miniwallet/lib/walletfile"
	"github.com/leviar-network/go-miniwallet/lib/wire"
	"github.com/leviar-network/go-miniwallet/walletcore"
	"github.com/leviar-network/go-miniwallet/walletcore/keyimport"
)

var logger = logging.Logger("session")

// State tracks the session lifecycle.
type State uint8

const (
	Uninitialized State = iota
	Opening
	Loaded
	Generated
	Failed
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Opening:
		return "opening"
	case Loaded:
		return "loaded"
	case Generated:
		return "generated"
	case Failed:
		return "failed"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gate is re-armed when the session is forced into a full resync, so the
// first-sync signal fires again after a reset.
type Gate interface {
	Rearm()
}

// Manager owns the engine handle and the wallet's on-disk files. All
// exported methods serialize on one mutex.
type Manager struct {
	engine walletcore.Engine
	paths  walletfile.Paths
	gate   Gate

	lk       sync.Mutex
	state    State
	password string
}

func NewManager(engine walletcore.Engine, paths walletfile.Paths) *Manager {
	return &Manager{
		engine: engine,
		paths:  paths,
		state:  Uninitialized,
	}
}

// SetGate attaches the first-sync gate re-armed on reset. Must be called
// before the polling loops start.
func (m *Manager) SetGate(g Gate) { m.gate = g }

func (m *Manager) Paths() walletfile.Paths { return m.paths }

func (m *Manager) State() State {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.state
}

// OpenOrRecover loads the wallet from whichever on-disk representation is
// present: the current-format wallet file, the legacy key file, or a
// legacy-looking file at the bare requested path. Recovery backs up the
// originals under the .back suffix before rewriting anything.
func (m *Manager) OpenOrRecover(password string) error {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state != Uninitialized {
		return xerrors.Errorf("cannot open wallet in state %s", m.state)
	}
	m.state = Opening
	m.password = password

	walletPath := m.paths.Wallet()

	if !walletfile.Exists(walletPath) && !walletfile.Exists(m.paths.Keys()) &&
		m.paths.Base != walletPath && walletfile.Exists(m.paths.Base) {
		// a bare file at the requested path; move it into place and try it
		logger.Info("renaming ", m.paths.Base, " to ", walletPath)
		if err := os.Rename(m.paths.Base, walletPath); err != nil {
			m.state = Failed
			return xerrors.Errorf("failed to rename %s %w", m.paths.Base, err)
		}
	}

	if walletfile.Exists(walletPath) {
		err := m.initFromFileLocked(walletPath, password)
		if err == nil {
			m.state = Loaded
			logger.Info("loaded wallet ", walletPath)
			m.readyLocked()
			return nil
		}

		if walletfile.Exists(m.paths.Keys()) {
			logger.Warn("cannot load ", walletPath, ", trying key file: ", err)
			if rerr := m.recoverFromKeysLocked(password); rerr != nil {
				m.state = Failed
				return rerr
			}
			m.readyLocked()
			return nil
		}

		m.state = Failed
		return xerrors.Errorf("cannot load wallet %s, check password %w", walletPath, err)
	}

	if walletfile.Exists(m.paths.Keys()) {
		if err := m.recoverFromKeysLocked(password); err != nil {
			m.state = Failed
			return err
		}
		m.readyLocked()
		return nil
	}

	m.state = Failed
	return xerrors.Errorf("wallet %s not found", walletPath)
}

// CreateNew generates a fresh wallet at the target path. A pre-existing
// wallet file or address export is a hard precondition failure.
func (m *Manager) CreateNew(password string) error {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state != Uninitialized {
		return xerrors.Errorf("cannot create wallet in state %s", m.state)
	}

	walletPath := m.paths.Wallet()
	if walletfile.Exists(walletPath) {
		return xerrors.Errorf("wallet file %s already exists, refusing to overwrite", walletPath)
	}
	if walletfile.Exists(m.paths.Address()) {
		return xerrors.Errorf("address file %s already exists, refusing to overwrite", m.paths.Address())
	}

	m.state = Opening
	m.password = password

	waiter := NewWaiter()
	bridge := &initBridge{w: waiter}
	m.engine.AddObserver(bridge)
	defer m.engine.RemoveObserver(bridge)

	m.engine.InitializeNew(password)
	if err := waiter.Wait(); err != nil {
		m.state = Failed
		return xerrors.Errorf("failed to generate wallet %w", err)
	}
	m.state = Generated

	if err := m.persistLocked(); err != nil {
		m.state = Failed
		return xerrors.Errorf("failed to persist new wallet %w", err)
	}

	addr := m.engine.Address()
	if err := walletfile.WriteFileIfAbsent(m.paths.Address(), []byte(addr+"\n")); err != nil {
		m.state = Failed
		return xerrors.Errorf("failed to write address file %w", err)
	}

	logger.Info("generated new wallet, address ", addr)
	m.readyLocked()
	return nil
}

func (m *Manager) readyLocked() {
	m.state = Ready
}

func (m *Manager) initFromFileLocked(path, password string) error {
	f, err := os.Open(path)
	if err != nil {
		return xerrors.Errorf("failed to open %s %w", path, err)
	}
	defer f.Close()

	return m.initFromStreamLocked(f, password)
}

func (m *Manager) initFromStreamLocked(r io.Reader, password string) error {
	waiter := NewWaiter()
	bridge := &initBridge{w: waiter}
	m.engine.AddObserver(bridge)
	defer m.engine.RemoveObserver(bridge)

	m.engine.InitializeFromStream(r, password)
	return waiter.Wait()
}

// recoverFromKeysLocked imports the legacy key file, sets the originals
// aside under .back, loads the imported stream and persists the wallet in
// the current format.
func (m *Manager) recoverFromKeysLocked(password string) error {
	stream, err := keyimport.ImportKeys(m.paths.Keys(), password)
	if err != nil {
		return xerrors.Errorf("failed to import key file %s %w", m.paths.Keys(), err)
	}

	if walletfile.Exists(m.paths.Wallet()) {
		if err := walletfile.Backup(m.paths.Wallet()); err != nil {
			return xerrors.Errorf("failed to back up wallet file %w", err)
		}
	}
	if err := walletfile.Backup(m.paths.Keys()); err != nil {
		return xerrors.Errorf("failed to back up key file %w", err)
	}

	if err := m.initFromStreamLocked(stream, password); err != nil {
		return xerrors.Errorf("failed to load imported keys %w", err)
	}
	m.state = Loaded

	if err := m.persistLocked(); err != nil {
		return xerrors.Errorf("failed to persist recovered wallet %w", err)
	}

	logger.Info("recovered wallet from legacy key file ", m.paths.Keys())
	return nil
}

// Persist writes the wallet file through the atomic replace discipline.
func (m *Manager) Persist() error {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state != Ready {
		return xerrors.Errorf("cannot persist wallet in state %s", m.state)
	}
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	return walletfile.AtomicReplace(m.paths.Wallet(), func(out io.Writer) error {
		return m.saveToLocked(out, true, true)
	})
}

func (m *Manager) saveToLocked(out io.Writer, details, cache bool) error {
	waiter := NewWaiter()
	bridge := &saveBridge{w: waiter}
	m.engine.AddObserver(bridge)
	defer m.engine.RemoveObserver(bridge)

	m.engine.Save(out, details, cache)
	return waiter.Wait()
}

// ResetAndReload buffers the wallet keys in memory, shuts the engine down
// and re-initializes it from the buffer, forcing a full chain rescan. The
// whole sequence is one critical section; no other operation can observe
// the engine between shutdown and re-init.
func (m *Manager) ResetAndReload() error {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state != Ready {
		return xerrors.Errorf("cannot reset wallet in state %s", m.state)
	}

	var buf bytes.Buffer
	if err := m.saveToLocked(&buf, false, false); err != nil {
		return xerrors.Errorf("failed to snapshot wallet for reset %w", err)
	}

	m.engine.Shutdown()

	if err := m.initFromStreamLocked(bytes.NewReader(buf.Bytes()), m.password); err != nil {
		m.state = Failed
		return xerrors.Errorf("failed to reload wallet after reset %w", err)
	}

	if m.gate != nil {
		m.gate.Rearm()
	}
	logger.Info("wallet reset, resynchronizing from scratch")
	return nil
}

// SubmitTransfer sends a validated transfer request through the engine,
// waits for the completion and persists the wallet before returning the
// transaction hash. A failed persist is logged, not surfaced; the send has
// already happened.
func (m *Manager) SubmitTransfer(req *wire.TransferRequest) (string, error) {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state != Ready {
		return "", xerrors.Errorf("cannot send in state %s", m.state)
	}

	var extra []byte
	if req.PaymentID != "" {
		var err error
		extra, err = walletcore.ParsePaymentIDExtra(req.PaymentID)
		if err != nil {
			return "", err
		}
	}

	waiter := NewWaiter()
	bridge := &sendBridge{w: waiter}
	m.engine.AddObserver(bridge)
	defer m.engine.RemoveObserver(bridge)

	id, err := m.engine.SendTransfer(req.Destinations, req.Fee, extra, req.MixinCount, 0)
	if err != nil {
		return "", err
	}
	if id == walletcore.InvalidTransactionID {
		return "", xerrors.New("transfer rejected by wallet engine")
	}

	if err := waiter.Wait(); err != nil {
		return "", err
	}

	tx, err := m.engine.Transaction(id)
	if err != nil {
		return "", err
	}

	if perr := m.persistLocked(); perr != nil {
		logger.Warn("failed to persist wallet after send: ", perr)
	}

	logger.Info("sent transaction ", tx.Hash)
	return tx.Hash, nil
}

// AddressString returns the wallet address, or "" before the session is ready.
func (m *Manager) AddressString() string {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.state != Ready {
		return ""
	}
	return m.engine.Address()
}

// Balances returns the available and locked balance in atomic units.
func (m *Manager) Balances() (available, locked uint64) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.state != Ready {
		return 0, 0
	}
	return m.engine.ActualBalance(), m.engine.PendingBalance()
}

// StatusLine formats the balance export written to the .status file.
func (m *Manager) StatusLine() string {
	available, locked := m.Balances()
	return currency.FormatAmount(available) + "|" + currency.FormatAmount(locked)
}

// ExportTransactions renders the transaction history export written to the
// .txs file, one record per line.
func (m *Manager) ExportTransactions() string {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.state != Ready {
		return ""
	}

	var sb strings.Builder
	count := m.engine.TransactionCount()
	for i := 0; i < count; i++ {
		tx, err := m.engine.Transaction(walletcore.TransactionID(i))
		if err != nil {
			logger.Warn("failed to read transaction ", i, ": ", err)
			continue
		}
		sb.WriteString(formatTransactionRecord(tx))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatTransactionRecord(tx walletcore.TransactionInfo) string {
	rec := fmt.Sprintf("%d|%s|%s|%s|%d|%d",
		tx.Timestamp,
		tx.Hash,
		currency.FormatSignedAmount(tx.TotalAmount),
		currency.FormatAmount(tx.Fee),
		tx.BlockHeight,
		tx.UnlockTime,
	)
	if pid := walletcore.GetPaymentIDFromExtra(tx.Extra); pid != nil {
		rec += "|" + hex.EncodeToString(pid)
	}
	return rec
}

// Close persists the wallet one last time and shuts the engine down. A
// failed final persist is logged, never fatal.
func (m *Manager) Close() {
	m.lk.Lock()
	defer m.lk.Unlock()

	if m.state == Closed {
		return
	}
	if m.state == Ready {
		if err := m.persistLocked(); err != nil {
			logger.Warn("final wallet persist failed: ", err)
		}
	}
	m.engine.Shutdown()
	m.state = Closed
	logger.Info("wallet session closed")
}
