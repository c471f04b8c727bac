// Package walletfile owns the on-disk layout around one wallet basename:
// the wallet container, the legacy key file, and the sentinel files shared
// with the front-end process.
package walletfile

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	lockfile "github.com/ipfs/go-fs-lock"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

const (
	WalletExt   = ".wallet"
	KeysExt     = ".keys"
	AddressExt  = ".address"
	StatusExt   = ".status"
	TxsExt      = ".txs"
	TxCastExt   = ".txcast"
	TxResultExt = ".txresult"
	ResetExt    = ".reset"
	SaveExt     = ".save"

	// BackupSuffix marks pre-recovery originals kept aside during legacy import.
	BackupSuffix = ".back"

	// claimSuffix marks a consumed request sentinel.
	claimSuffix = "_"
)

// Paths derives every per-wallet filename from one basename.
type Paths struct {
	// Base is the wallet basename without extension, e.g. "/home/u/wallet".
	Base string
}

// Prepare normalizes a user-supplied wallet argument into a Paths value,
// stripping a trailing .wallet or .keys extension if present.
func Prepare(walletArg string) (Paths, error) {
	p, err := homedir.Expand(walletArg)
	if err != nil {
		return Paths{}, err
	}
	if p == "" {
		return Paths{}, xerrors.New("empty wallet file name")
	}

	switch {
	case strings.HasSuffix(p, WalletExt):
		p = strings.TrimSuffix(p, WalletExt)
	case strings.HasSuffix(p, KeysExt):
		p = strings.TrimSuffix(p, KeysExt)
	}

	return Paths{Base: p}, nil
}

func (p Paths) Wallet() string   { return p.Base + WalletExt }
func (p Paths) Keys() string     { return p.Base + KeysExt }
func (p Paths) Address() string  { return p.Base + AddressExt }
func (p Paths) Status() string   { return p.Base + StatusExt }
func (p Paths) Txs() string      { return p.Base + TxsExt }
func (p Paths) TxCast() string   { return p.Base + TxCastExt }
func (p Paths) TxResult() string { return p.Base + TxResultExt }
func (p Paths) Reset() string    { return p.Base + ResetExt }
func (p Paths) Save() string     { return p.Base + SaveExt }

// Lock takes the single-daemon lock beside the wallet file. The returned
// closer releases it.
func (p Paths) Lock() (io.Closer, error) {
	dir := filepath.Dir(p.Base)
	name := filepath.Base(p.Base) + ".lock"

	closer, err := lockfile.Lock(dir, name)
	if err != nil {
		return nil, xerrors.Errorf("failed to take wallet lock %w", err)
	}
	return closer, nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Claimed returns the claimed variant of a request sentinel path.
func Claimed(path string) string {
	return path + claimSuffix
}
