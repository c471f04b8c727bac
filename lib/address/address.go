package address

import (
	"bytes"
	"encoding/json"
	"errors"

	b58 "github.com/mr-tron/base58/base58"
	"github.com/zeebo/blake3"
)

var (
	// ErrUnknownAddrType is returned when the network prefix does not match.
	ErrUnknownAddrType = errors.New("unknown address type")
	// ErrInvalidLength is returned when encountering an address of invalid length.
	ErrInvalidLength = errors.New("invalid address length")
	// ErrInvalidChecksum is returned when encountering an invalid address checksum.
	ErrInvalidChecksum = errors.New("invalid address checksum")
)

// UndefAddressString is the string used to represent an empty address when encoded to a string.
var UndefAddressString = "<empty>"

// PublicKeyBytes is the length of an address payload: the spend public key
// followed by the view public key, 32 bytes each.
const PublicKeyBytes = 64

// ChecksumHashLength defines the hash length used for calculating address checksums.
const ChecksumHashLength = 4

const AddrPrefix = "L9"
const AddrPrefixLen = 2

// MaxAddressStringLength is the max length of an address encoded as a string.
const MaxAddressStringLength = AddrPrefixLen + 95

// Address is the go type that represents a wallet address.
type Address struct{ str string }

// Undef is the type that represents an undefined address.
var Undef = Address{}

// Bytes returns the address payload as bytes.
func (a Address) Bytes() []byte {
	return []byte(a.str)
}

// String returns an address encoded as a string.
func (a Address) String() string {
	str, err := encode(a)
	if err != nil {
		panic(err)
	}
	return str
}

// Empty returns true if the address is empty, false otherwise.
func (a Address) Empty() bool {
	return a == Undef
}

// UnmarshalJSON implements the json unmarshal interface.
func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	addr, err := decode(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// MarshalJSON implements the json marshal interface.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// NewAddress builds an address from the concatenated spend and view public keys.
func NewAddress(payload []byte) (Address, error) {
	if len(payload) != PublicKeyBytes {
		return Undef, ErrInvalidLength
	}
	return newAddress(payload)
}

func newAddress(payload []byte) (Address, error) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return Address{string(buf)}, nil
}

func NewFromString(s string) (Address, error) {
	return decode(s)
}

func encode(addr Address) (string, error) {
	if addr == Undef {
		return UndefAddressString, nil
	}

	cksm := Checksum(addr.Bytes())
	strAddr := AddrPrefix + b58.Encode(append(addr.Bytes(), cksm...))

	return strAddr, nil
}

func decode(a string) (Address, error) {
	if len(a) == 0 || a == UndefAddressString {
		return Undef, ErrInvalidLength
	}
	if len(a) > MaxAddressStringLength || len(a) < AddrPrefixLen+1 {
		return Undef, ErrInvalidLength
	}

	if a[0:AddrPrefixLen] != AddrPrefix {
		return Undef, ErrUnknownAddrType
	}

	payloadcksm, err := b58.Decode(a[AddrPrefixLen:])
	if err != nil {
		return Undef, err
	}

	if len(payloadcksm) != PublicKeyBytes+ChecksumHashLength {
		return Undef, ErrInvalidLength
	}

	payload := payloadcksm[:len(payloadcksm)-ChecksumHashLength]
	cksm := payloadcksm[len(payloadcksm)-ChecksumHashLength:]

	if !ValidateChecksum(payload, cksm) {
		return Undef, ErrInvalidChecksum
	}

	return newAddress(payload)
}

// Checksum returns the checksum of `ingest`.
func Checksum(ingest []byte) []byte {
	h := blake3.New()
	h.Write(ingest)
	res := h.Sum(nil)
	return res[:ChecksumHashLength]
}

func ValidateChecksum(ingest, expect []byte) bool {
	digest := Checksum(ingest)
	return bytes.Equal(digest, expect)
}
