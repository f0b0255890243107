package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// FormatEther renders a wei amount in ether without trailing zeros (e.g. 0.01 ETH)
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0 ETH"
	}
	amount := decimal.NewFromBigInt(wei.ToBig(), -etherDecimals)
	return amount.String() + " ETH"
}

// ParseEther converts a decimal ether amount such as "0.01" to wei.
// Amounts with more than 18 decimal places or that do not fit in 256 bits are rejected.
func ParseEther(value string) (*uint256.Int, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", value, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: negative", value)
	}

	wei := amount.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid ether amount %q: more than %d decimal places", value, etherDecimals)
	}

	result, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("invalid ether amount %q: too large", value)
	}
	return result, nil
}

// ParseWei parses a base-10 wei amount
func ParseWei(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid wei amount %q: %w", value, err)
	}
	return amount, nil
}

// ShortAddress abbreviates an address for log lines (0x1234…abcd)
func ShortAddress(address common.Address) string {
	hex := address.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}
