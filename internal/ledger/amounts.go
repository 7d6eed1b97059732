package ledger

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var weiPerEther = uint256.NewInt(1_000_000_000_000_000_000)

// Ether returns n ether expressed in wei.
func Ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), weiPerEther)
}

// Milliether returns n thousandths of an ether expressed in wei.
func Milliether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000))
}

// ParseWei parses a base 10 wei amount.
func ParseWei(s string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("wei amount %q overflows 256 bits", s)
	}
	return v, nil
}

// FormatWei renders a wei amount in base 10. A nil amount renders as "0".
func FormatWei(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.ToBig().String()
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// payoutFor applies the fixed 1.5x payout multiplier.
func payoutFor(premium *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Mul(premium, uint256.NewInt(3))
	return out.Div(out, uint256.NewInt(2))
}
