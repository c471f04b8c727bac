package walletfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestPrepare(t *testing.T) {
	for in, base := range map[string]string{
		"/tmp/w":        "/tmp/w",
		"/tmp/w.wallet": "/tmp/w",
		"/tmp/w.keys":   "/tmp/w",
	} {
		p, err := Prepare(in)
		require.NoError(t, err)
		assert.Equal(t, base, p.Base, in)
	}

	_, err := Prepare("")
	assert.Error(t, err)
}

func TestPathDerivation(t *testing.T) {
	p := Paths{Base: "/tmp/w"}
	assert.Equal(t, "/tmp/w.wallet", p.Wallet())
	assert.Equal(t, "/tmp/w.keys", p.Keys())
	assert.Equal(t, "/tmp/w.address", p.Address())
	assert.Equal(t, "/tmp/w.status", p.Status())
	assert.Equal(t, "/tmp/w.txs", p.Txs())
	assert.Equal(t, "/tmp/w.txcast", p.TxCast())
	assert.Equal(t, "/tmp/w.txresult", p.TxResult())
	assert.Equal(t, "/tmp/w.reset", p.Reset())
	assert.Equal(t, "/tmp/w.save", p.Save())
}

func TestClaim(t *testing.T) {
	dir := t.TempDir()
	req := filepath.Join(dir, "w.save")
	require.NoError(t, os.WriteFile(req, nil, 0600))

	require.NoError(t, Claim(req))
	assert.False(t, Exists(req))
	assert.True(t, Exists(Claimed(req)))
}

func TestClaimExclusive(t *testing.T) {
	dir := t.TempDir()
	req := filepath.Join(dir, "w.reset")
	require.NoError(t, os.WriteFile(req, nil, 0600))

	require.NoError(t, Claim(req))
	// the sentinel is gone, a second claim must not succeed immediately
	err := os.Rename(req, Claimed(req))
	assert.Error(t, err)
}

func TestAtomicReplaceFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.wallet")

	err := AtomicReplace(path, func(w io.Writer) error {
		_, err := w.Write([]byte("v1"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestAtomicReplaceKeepsOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.wallet")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0600))

	err := AtomicReplace(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("half-writ"))
		return xerrors.New("engine save failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	// no temp file left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAtomicReplaceReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.wallet")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, AtomicReplace(path, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileIfAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.address")

	require.NoError(t, WriteFileIfAbsent(path, []byte("addr1")))
	require.NoError(t, WriteFileIfAbsent(path, []byte("addr2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "addr1", string(data))
}

func TestLock(t *testing.T) {
	p := Paths{Base: filepath.Join(t.TempDir(), "w")}

	closer, err := p.Lock()
	require.NoError(t, err)

	_, err = p.Lock()
	assert.Error(t, err)

	require.NoError(t, closer.Close())

	closer, err = p.Lock()
	require.NoError(t, err)
	closer.Close()
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.keys")
	require.NoError(t, os.WriteFile(path, []byte("k"), 0600))

	require.NoError(t, Backup(path))
	assert.False(t, Exists(path))
	assert.True(t, Exists(path+BackupSuffix))
}
