package walletcore

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	cr "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

// Wallet container format: a JSON envelope carrying an AES-128-CTR encrypted
// CBOR wallet body, with a scrypt-derived key and a keccak MAC over the
// ciphertext.

const (
	scryptN     = 4096
	scryptR     = 8
	scryptP     = 6
	scryptDKLen = 32

	keyHeaderKDF = "scrypt"
	containerV   = 1
	cipherAES128 = "aes-128-ctr"
)

// ErrDecrypt is returned when the MAC check fails, i.e. a wrong passphrase
// or a corrupt container.
var ErrDecrypt = errors.New("could not decrypt wallet with given passphrase")

type cipherparamsJSON struct {
	IV string `json:"iv"`
}

type cryptoJSON struct {
	Cipher       string                 `json:"cipher"`
	CipherText   string                 `json:"ciphertext"`
	CipherParams cipherparamsJSON       `json:"cipherparams"`
	KDF          string                 `json:"kdf"`
	KDFParams    map[string]interface{} `json:"kdfparams"`
	MAC          string                 `json:"mac"`
}

type containerJSON struct {
	Crypto  cryptoJSON `json:"crypto"`
	Id      string     `json:"id"`
	Version int        `json:"version"`
}

// sealBody encrypts a wallet body into the container format.
func sealBody(body, password []byte) ([]byte, error) {
	salt := getEntropyCSPRNG(32)
	derivedKey, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}
	encryptKey := derivedKey[:16]

	iv := getEntropyCSPRNG(aes.BlockSize)
	cipherText, err := aesCTRXOR(encryptKey, body, iv)
	if err != nil {
		return nil, err
	}
	mac := keccak256(derivedKey[16:32], cipherText)

	scryptParamsJSON := map[string]interface{}{
		"n":     scryptN,
		"r":     scryptR,
		"p":     scryptP,
		"dklen": scryptDKLen,
		"salt":  hex.EncodeToString(salt),
	}

	env := containerJSON{
		Crypto: cryptoJSON{
			Cipher:       cipherAES128,
			CipherText:   hex.EncodeToString(cipherText),
			CipherParams: cipherparamsJSON{IV: hex.EncodeToString(iv)},
			KDF:          keyHeaderKDF,
			KDFParams:    scryptParamsJSON,
			MAC:          hex.EncodeToString(mac),
		},
		Id:      uuid.NewString(),
		Version: containerV,
	}
	return json.Marshal(env)
}

// openBody decrypts a wallet container, returning the plaintext body.
func openBody(data, password []byte) ([]byte, error) {
	env := new(containerJSON)
	if err := json.Unmarshal(data, env); err != nil {
		return nil, ErrDecrypt
	}
	if env.Crypto.KDF != keyHeaderKDF {
		return nil, ErrDecrypt
	}

	mac, err := hex.DecodeString(env.Crypto.MAC)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(env.Crypto.CipherParams.IV)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(env.Crypto.CipherText)
	if err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(env.Crypto.KDFParams["salt"].(string))
	if err != nil {
		return nil, err
	}

	n := intParam(env.Crypto.KDFParams, "n", scryptN)
	r := intParam(env.Crypto.KDFParams, "r", scryptR)
	p := intParam(env.Crypto.KDFParams, "p", scryptP)
	dklen := intParam(env.Crypto.KDFParams, "dklen", scryptDKLen)

	derivedKey, err := scrypt.Key(password, salt, n, r, p, dklen)
	if err != nil {
		return nil, err
	}

	calculatedMAC := keccak256(derivedKey[16:32], cipherText)
	if !bytes.Equal(calculatedMAC, mac) {
		return nil, ErrDecrypt
	}

	return aesCTRXOR(derivedKey[:16], cipherText, iv)
}

func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

func aesCTRXOR(key, inText, iv []byte) ([]byte, error) {
	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(aesBlock, iv)
	outText := make([]byte, len(inText))
	stream.XORKeyStream(outText, inText)
	return outText, nil
}

func keccak256(parts ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		d.Write(p)
	}
	return d.Sum(nil)
}

func getEntropyCSPRNG(n int) []byte {
	mainBuff := make([]byte, n)
	_, err := io.ReadFull(cr.Reader, mainBuff)
	if err != nil {
		panic("reading from crypto/rand failed: " + err.Error())
	}
	return mainBuff
}
