package walletcore

import (
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/xerrors"
)

// SealKeys packs bare secret keys into an encrypted wallet container with an
// empty history, suitable for InitializeFromStream. Used by key import.
func SealKeys(spendSecret, viewSecret []byte, password string) ([]byte, error) {
	if len(spendSecret) != 32 || len(viewSecret) != 32 {
		return nil, xerrors.New("secret keys must be 32 bytes each")
	}

	body := walletBody{
		SpendSecretKey: spendSecret,
		ViewSecretKey:  viewSecret,
	}
	plain, err := cbor.Marshal(body)
	if err != nil {
		return nil, xerrors.Errorf("failed to serialize wallet body %w", err)
	}
	return sealBody(plain, []byte(password))
}
