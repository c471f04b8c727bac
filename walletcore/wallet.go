package walletcore

import (
	"context"
	"encoding/hex"
	"io"
	"io/ioutil"
	"math"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/lib/address"
	logging "github.com/leviar-network/go-miniwallet/lib/log"
	"github.com/leviar-network/go-miniwallet/lib/wire"
	"github.com/leviar-network/go-miniwallet/node"
)

var logger = logging.Logger("walletcore")

var (
	ErrNotInitialized     = xerrors.New("wallet engine is not initialized")
	ErrAlreadyInitialized = xerrors.New("wallet engine is already initialized")
	ErrInsufficientFunds  = xerrors.New("insufficient funds")
	ErrNoDestinations     = xerrors.New("at least one destination is required")
	ErrZeroAmount         = xerrors.New("destination amount must be greater than zero")
)

// walletBody is the CBOR plaintext inside the encrypted wallet container.
type walletBody struct {
	SpendSecretKey []byte            `cbor:"1,keyasint"`
	ViewSecretKey  []byte            `cbor:"2,keyasint"`
	SyncHeight     uint64            `cbor:"3,keyasint"`
	Transactions   []TransactionInfo `cbor:"4,keyasint,omitempty"`
}

// LocalWallet is the in-process wallet engine. All completion-style calls
// deliver their outcome through the registered observers from engine-owned
// goroutines.
type LocalWallet struct {
	nodep node.Proxy
	obs   observerSet

	lk          sync.Mutex
	initialized bool
	password    string
	spendKey    *btcec.PrivateKey
	viewKey     [32]byte
	addr        address.Address
	syncHeight  uint64
	txs         []TransactionInfo
	txByHash    map[string]TransactionID
	actual      uint64
	pending     uint64

	stopSync chan struct{}
	syncWG   sync.WaitGroup
}

var _ Engine = (*LocalWallet)(nil)

func NewLocalWallet(np node.Proxy) *LocalWallet {
	return &LocalWallet{
		nodep:    np,
		txByHash: make(map[string]TransactionID),
	}
}

func (w *LocalWallet) AddObserver(o Observer)    { w.obs.add(o) }
func (w *LocalWallet) RemoveObserver(o Observer) { w.obs.remove(o) }

func (w *LocalWallet) InitializeFromStream(r io.Reader, password string) {
	go func() {
		err := w.loadFromStream(r, password)
		if err == nil {
			w.startSync()
		}
		w.obs.each(func(o Observer) { o.InitCompleted(err) })
	}()
}

func (w *LocalWallet) InitializeNew(password string) {
	go func() {
		err := w.generate(password)
		if err == nil {
			w.startSync()
		}
		w.obs.each(func(o Observer) { o.InitCompleted(err) })
	}()
}

func (w *LocalWallet) loadFromStream(r io.Reader, password string) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return xerrors.Errorf("failed to read wallet stream %w", err)
	}

	body := new(walletBody)
	plain, err := openBody(data, []byte(password))
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(plain, body); err != nil {
		return xerrors.Errorf("wallet body is corrupt %w", err)
	}

	spendKey, _ := btcec.PrivKeyFromBytes(btcec.S256(), body.SpendSecretKey)
	if len(body.ViewSecretKey) != 32 {
		return xerrors.New("wallet body is corrupt: bad view key")
	}

	w.lk.Lock()
	defer w.lk.Unlock()
	if w.initialized {
		return ErrAlreadyInitialized
	}

	w.password = password
	w.spendKey = spendKey
	copy(w.viewKey[:], body.ViewSecretKey)
	w.syncHeight = body.SyncHeight
	w.txs = body.Transactions
	w.rebuildIndexLocked()
	w.addr = deriveAddress(w.spendKey, w.viewKey)
	w.initialized = true

	return nil
}

func (w *LocalWallet) generate(password string) error {
	spendKey, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return err
	}

	seed := append(spendKey.Serialize(), 0x01)
	viewKey := blake3.Sum256(seed)

	w.lk.Lock()
	defer w.lk.Unlock()
	if w.initialized {
		return ErrAlreadyInitialized
	}

	w.password = password
	w.spendKey = spendKey
	w.viewKey = viewKey
	w.syncHeight = 0
	w.txs = nil
	w.rebuildIndexLocked()
	w.addr = deriveAddress(w.spendKey, w.viewKey)
	w.initialized = true

	return nil
}

// rebuildIndexLocked recomputes the hash index and the balance buckets from
// the transaction history. Caller holds w.lk.
func (w *LocalWallet) rebuildIndexLocked() {
	w.txByHash = make(map[string]TransactionID, len(w.txs))
	w.actual, w.pending = 0, 0
	for i, tx := range w.txs {
		w.txByHash[tx.Hash] = TransactionID(i)
		if tx.State != TxStateActive && tx.State != TxStateSending {
			continue
		}
		if tx.TotalAmount >= 0 {
			if tx.BlockHeight == UnconfirmedHeight {
				w.pending += uint64(tx.TotalAmount)
			} else {
				w.actual += uint64(tx.TotalAmount)
			}
		} else {
			spent := uint64(-tx.TotalAmount)
			if spent <= w.actual {
				w.actual -= spent
			} else {
				w.actual = 0
			}
		}
	}
}

func deriveAddress(spendKey *btcec.PrivateKey, viewKey [32]byte) address.Address {
	viewSecret, _ := btcec.PrivKeyFromBytes(btcec.S256(), viewKey[:])

	payload := make([]byte, 0, address.PublicKeyBytes)
	payload = append(payload, padTo32(spendKey.PubKey().X.Bytes())...)
	payload = append(payload, padTo32(viewSecret.PubKey().X.Bytes())...)

	addr, err := address.NewAddress(payload)
	if err != nil {
		panic(err) // payload length is fixed above
	}
	return addr
}

func padTo32(b []byte) []byte {
	if len(b) >= 32 {
		return b[:32]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func (w *LocalWallet) Save(out io.Writer, details, cache bool) {
	go func() {
		err := w.save(out, details, cache)
		w.obs.each(func(o Observer) { o.SaveCompleted(err) })
	}()
}

func (w *LocalWallet) save(out io.Writer, details, cache bool) error {
	w.lk.Lock()
	if !w.initialized {
		w.lk.Unlock()
		return ErrNotInitialized
	}
	body := walletBody{
		SpendSecretKey: w.spendKey.Serialize(),
		ViewSecretKey:  w.viewKey[:],
	}
	if cache {
		body.SyncHeight = w.syncHeight
	}
	if details {
		body.Transactions = make([]TransactionInfo, len(w.txs))
		copy(body.Transactions, w.txs)
	}
	password := w.password
	w.lk.Unlock()

	plain, err := cbor.Marshal(body)
	if err != nil {
		return xerrors.Errorf("failed to serialize wallet body %w", err)
	}
	sealed, err := sealBody(plain, []byte(password))
	if err != nil {
		return xerrors.Errorf("failed to seal wallet body %w", err)
	}

	if _, err := out.Write(sealed); err != nil {
		return xerrors.Errorf("failed to write wallet stream %w", err)
	}
	return nil
}

func (w *LocalWallet) Shutdown() {
	w.stopSyncDriver()

	w.lk.Lock()
	defer w.lk.Unlock()
	w.initialized = false
	w.spendKey = nil
	w.password = ""
	w.txs = nil
	w.txByHash = make(map[string]TransactionID)
	w.actual, w.pending = 0, 0
}

func (w *LocalWallet) SendTransfer(dests []wire.Destination, fee uint64, extra []byte, mixin uint64, unlockTime uint64) (TransactionID, error) {
	w.lk.Lock()
	if !w.initialized {
		w.lk.Unlock()
		return InvalidTransactionID, ErrNotInitialized
	}
	if len(dests) == 0 {
		w.lk.Unlock()
		return InvalidTransactionID, ErrNoDestinations
	}

	// sum with overflow checks; a wrapping total must never pass the
	// funds comparison below
	var total uint64
	for _, d := range dests {
		if d.Amount == 0 {
			w.lk.Unlock()
			return InvalidTransactionID, ErrZeroAmount
		}
		if d.Amount > math.MaxUint64-total {
			w.lk.Unlock()
			return InvalidTransactionID, ErrInsufficientFunds
		}
		total += d.Amount
	}
	if fee > math.MaxUint64-total || total+fee > w.actual {
		w.lk.Unlock()
		return InvalidTransactionID, ErrInsufficientFunds
	}

	tx := TransactionInfo{
		Hash:        newTransactionHash(w.addr, total),
		TotalAmount: -int64(total + fee),
		Fee:         fee,
		BlockHeight: UnconfirmedHeight,
		UnlockTime:  unlockTime,
		Timestamp:   time.Now().Unix(),
		Extra:       extra,
		State:       TxStateSending,
	}
	id := TransactionID(len(w.txs))
	w.txs = append(w.txs, tx)
	w.txByHash[tx.Hash] = id
	w.actual -= total + fee
	w.lk.Unlock()

	go w.relay(id, tx, total, fee)

	return id, nil
}

func (w *LocalWallet) relay(id TransactionID, tx TransactionInfo, total, fee uint64) {
	blob, err := cbor.Marshal(&tx)
	if err == nil {
		err = w.nodep.RelayTransaction(context.Background(), blob)
	}

	w.lk.Lock()
	if int(id) < len(w.txs) {
		if err != nil {
			w.txs[id].State = TxStateFailed
			w.actual += total + fee // refund
		} else {
			w.txs[id].State = TxStateActive
		}
	}
	w.lk.Unlock()

	if err != nil {
		logger.Warn("transaction relay failed: ", err)
	}
	w.obs.each(func(o Observer) { o.SendCompleted(id, err) })
}

func (w *LocalWallet) Address() string {
	w.lk.Lock()
	defer w.lk.Unlock()
	if !w.initialized {
		return ""
	}
	return w.addr.String()
}

func (w *LocalWallet) Transaction(id TransactionID) (TransactionInfo, error) {
	w.lk.Lock()
	defer w.lk.Unlock()
	if int(id) >= len(w.txs) {
		return TransactionInfo{}, xerrors.Errorf("no transaction with id %d", id)
	}
	return w.txs[id], nil
}

func (w *LocalWallet) TransactionCount() int {
	w.lk.Lock()
	defer w.lk.Unlock()
	return len(w.txs)
}

func (w *LocalWallet) ActualBalance() uint64 {
	w.lk.Lock()
	defer w.lk.Unlock()
	return w.actual
}

func (w *LocalWallet) PendingBalance() uint64 {
	w.lk.Lock()
	defer w.lk.Unlock()
	return w.pending
}

func newTransactionHash(addr address.Address, total uint64) string {
	buf := getEntropyCSPRNG(32)
	buf = append(buf, addr.Bytes()...)
	buf = append(buf, byte(total))
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
