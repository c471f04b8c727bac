package walletcore

import (
	"encoding/hex"

	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/build"
)

// Transaction extra field tags.
const (
	extraTagNonce     = 0x02
	nonceTagPaymentID = 0x00
)

// PaymentIDByteLength is the decoded size of a payment id.
const PaymentIDByteLength = build.PaymentIDLength / 2

// CreatePaymentIDExtra wraps a raw payment id into a transaction extra blob.
func CreatePaymentIDExtra(paymentID []byte) []byte {
	extra := make([]byte, 0, len(paymentID)+3)
	extra = append(extra, extraTagNonce, byte(len(paymentID)+1), nonceTagPaymentID)
	return append(extra, paymentID...)
}

// ParsePaymentIDExtra decodes a hex payment id string into an extra blob.
func ParsePaymentIDExtra(paymentID string) ([]byte, error) {
	raw, err := hex.DecodeString(paymentID)
	if err != nil {
		return nil, xerrors.Errorf("payment id is not valid hex %w", err)
	}
	if len(raw) != PaymentIDByteLength {
		return nil, xerrors.Errorf("payment id must be %d bytes, got %d", PaymentIDByteLength, len(raw))
	}
	return CreatePaymentIDExtra(raw), nil
}

// GetPaymentIDFromExtra extracts the payment id from an extra blob, or nil
// when none is present.
func GetPaymentIDFromExtra(extra []byte) []byte {
	for i := 0; i+1 < len(extra); {
		tag := extra[i]
		size := int(extra[i+1])
		if tag != extraTagNonce {
			i += 2 + size
			continue
		}
		nonce := extra[i+2:]
		if size > len(nonce) {
			return nil
		}
		nonce = nonce[:size]
		if len(nonce) == PaymentIDByteLength+1 && nonce[0] == nonceTagPaymentID {
			return nonce[1:]
		}
		return nil
	}
	return nil
}
