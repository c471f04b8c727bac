// Package wire parses the pipe-delimited request records the front-end
// writes into the sentinel files.
package wire

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/build"
	"github.com/leviar-network/go-miniwallet/lib/address"
	"github.com/leviar-network/go-miniwallet/lib/currency"
)

// Destination is one (address, amount) pair of a transfer.
type Destination struct {
	Address address.Address
	Amount  uint64
}

// TransferRequest is a validated transaction submission request.
type TransferRequest struct {
	MixinCount   uint64
	Destinations []Destination
	PaymentID    string
	Fee          uint64
}

// ParseTransferRequest parses one request line of the form
//
//	mixin|address|amount[|paymentId][|fee]
//
// Empty optional fields mean "not provided"; the fee then defaults to the
// network minimum.
func ParseTransferRequest(line string) (*TransferRequest, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, xerrors.New("empty transfer request")
	}

	fields := strings.Split(line, "|")
	if len(fields) < 3 {
		return nil, xerrors.Errorf("transfer request needs at least mixin, address and amount, got %d fields", len(fields))
	}
	if len(fields) > 5 {
		return nil, xerrors.Errorf("transfer request has too many fields: %d", len(fields))
	}

	mixin, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return nil, xerrors.Errorf("mixin_count should be non-negative integer, got %q", fields[0])
	}

	addr, err := address.NewFromString(fields[1])
	if err != nil {
		return nil, xerrors.Errorf("wrong address %q: %w", fields[1], err)
	}

	amount, err := currency.ParseAmount(fields[2])
	if err != nil {
		return nil, xerrors.Errorf("amount is wrong: %w", err)
	}
	if amount == 0 {
		return nil, xerrors.New("amount must be greater than zero")
	}

	req := &TransferRequest{
		MixinCount:   mixin,
		Destinations: []Destination{{Address: addr, Amount: amount}},
		Fee:          build.MinimumFee,
	}

	if len(fields) >= 4 && fields[3] != "" {
		if err := ValidatePaymentID(fields[3]); err != nil {
			return nil, err
		}
		req.PaymentID = strings.ToLower(fields[3])
	}

	if len(fields) == 5 && fields[4] != "" {
		fee, err := currency.ParseAmount(fields[4])
		if err != nil {
			return nil, xerrors.Errorf("fee value is invalid: %w", err)
		}
		if fee < build.MinimumFee {
			return nil, xerrors.Errorf("fee value is less than minimum: %s", currency.FormatAmount(build.MinimumFee))
		}
		req.Fee = fee
	}

	return req, nil
}

// ValidatePaymentID checks the fixed-length hex form of a payment identifier.
func ValidatePaymentID(s string) error {
	if len(s) != build.PaymentIDLength {
		return xerrors.Errorf("payment ID has invalid format %q, expected %d-character hex string", s, build.PaymentIDLength)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return xerrors.Errorf("payment ID has invalid format %q, expected %d-character hex string", s, build.PaymentIDLength)
	}
	return nil
}
