package entities

import "github.com/holiman/uint256"

const (
	// WeiPerEther is the number of base units in one ether
	WeiPerEther uint64 = 1_000_000_000_000_000_000

	// MinimumStakeWei is the smallest stake accepted per entry (0.01 ether)
	MinimumStakeWei uint64 = 10_000_000_000_000_000
)

// MinimumStake returns the minimum stake as a fresh 256-bit value
func MinimumStake() *uint256.Int {
	return uint256.NewInt(MinimumStakeWei)
}

// Ether returns n whole ether expressed in wei
func Ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(WeiPerEther))
}
