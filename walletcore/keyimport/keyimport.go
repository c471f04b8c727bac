// Package keyimport reads the legacy .keys file format and converts it into
// the current encrypted wallet container.
//
// The legacy layout is: 4-byte magic, 1-byte version, 16-byte IV, then an
// AES-256-CTR ciphertext of spendKey(32) || viewKey(32) || checksum(4). The
// cipher key is a single keccak256 of the passphrase and the checksum is the
// first 4 bytes of blake3 over both keys, so a wrong passphrase is detected
// instead of yielding garbage keys.
package keyimport

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	cr "crypto/rand"
	"io"
	"io/ioutil"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/walletcore"
)

var legacyMagic = []byte("LVWK")

const (
	legacyVersion   = 1
	legacyKeyBytes  = 32
	legacyChecksum  = 4
	legacyPlainSize = 2*legacyKeyBytes + legacyChecksum
)

var (
	ErrNotKeysFile   = xerrors.New("not a legacy keys file")
	ErrWrongPassword = xerrors.New("wrong passphrase for legacy keys file")
)

// ImportKeys reads a legacy keys file and returns an equivalent wallet
// container stream, sealed under the same passphrase.
func ImportKeys(path, password string) (io.Reader, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read keys file %w", err)
	}

	spend, view, err := decodeLegacy(data, password)
	if err != nil {
		return nil, err
	}

	sealed, err := walletcore.SealKeys(spend, view, password)
	if err != nil {
		return nil, xerrors.Errorf("failed to repack keys %w", err)
	}
	return bytes.NewReader(sealed), nil
}

func decodeLegacy(data []byte, password string) (spend, view []byte, err error) {
	header := len(legacyMagic) + 1 + aes.BlockSize
	if len(data) != header+legacyPlainSize {
		return nil, nil, ErrNotKeysFile
	}
	if !bytes.Equal(data[:len(legacyMagic)], legacyMagic) {
		return nil, nil, ErrNotKeysFile
	}
	if data[len(legacyMagic)] != legacyVersion {
		return nil, nil, xerrors.Errorf("unsupported keys file version %d", data[len(legacyMagic)])
	}

	iv := data[len(legacyMagic)+1 : header]
	plain, err := legacyXOR(password, data[header:], iv)
	if err != nil {
		return nil, nil, err
	}

	spend = plain[:legacyKeyBytes]
	view = plain[legacyKeyBytes : 2*legacyKeyBytes]
	if !bytes.Equal(plain[2*legacyKeyBytes:], keysChecksum(spend, view)) {
		return nil, nil, ErrWrongPassword
	}
	return spend, view, nil
}

// WriteLegacyKeys writes keys in the legacy format. Kept for migration
// tooling and tests.
func WriteLegacyKeys(path string, spend, view []byte, password string) error {
	if len(spend) != legacyKeyBytes || len(view) != legacyKeyBytes {
		return xerrors.New("secret keys must be 32 bytes each")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(cr.Reader, iv); err != nil {
		return err
	}

	plain := make([]byte, 0, legacyPlainSize)
	plain = append(plain, spend...)
	plain = append(plain, view...)
	plain = append(plain, keysChecksum(spend, view)...)

	cipherText, err := legacyXOR(password, plain, iv)
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(legacyMagic)+1+len(iv)+len(cipherText))
	out = append(out, legacyMagic...)
	out = append(out, legacyVersion)
	out = append(out, iv...)
	out = append(out, cipherText...)

	return os.WriteFile(path, out, 0600)
}

func legacyXOR(password string, in, iv []byte) ([]byte, error) {
	d := sha3.NewLegacyKeccak256()
	d.Write([]byte(password))
	key := d.Sum(nil)

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(aesBlock, iv).XORKeyStream(out, in)
	return out, nil
}

func keysChecksum(spend, view []byte) []byte {
	h := blake3.New()
	h.Write(spend)
	h.Write(view)
	return h.Sum(nil)[:legacyChecksum]
}
