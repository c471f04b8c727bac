// Package currency converts between human decimal amount strings and the
// atomic units carried on the wire and in the wallet engine.
package currency

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/xerrors"

	"github.com/leviar-network/go-miniwallet/build"
)

var one = new(big.Int).Exp(big.NewInt(10), big.NewInt(build.CoinDecimals), nil)

var maxAmount = new(big.Int).SetUint64(^uint64(0))

// ParseAmount parses a decimal coin amount into atomic units.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, xerrors.Errorf("invalid amount %q", s)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, xerrors.Errorf("failed to parse %q as a decimal number", s)
	}

	r.Mul(r, new(big.Rat).SetInt(one))
	if !r.IsInt() {
		return 0, xerrors.Errorf("amount %q has too many decimal places, max %d", s, build.CoinDecimals)
	}

	n := r.Num()
	if n.Sign() < 0 || n.Cmp(maxAmount) > 0 {
		return 0, xerrors.Errorf("amount %q out of range", s)
	}

	return n.Uint64(), nil
}

// FormatAmount renders atomic units as a fixed-point decimal string with the
// full fractional width, e.g. 1500000000000 -> "1.500000000000".
func FormatAmount(v uint64) string {
	q := v / one.Uint64()
	rem := v % one.Uint64()
	return fmt.Sprintf("%d.%0*d", q, build.CoinDecimals, rem)
}

// FormatSignedAmount renders a signed transaction total. Incoming totals are
// positive, spends negative.
func FormatSignedAmount(v int64) string {
	if v < 0 {
		return "-" + FormatAmount(uint64(-v))
	}
	return FormatAmount(uint64(v))
}
