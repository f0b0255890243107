package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"lottery/domain/entities"
)

// SelectionHash hashes the draw environment together with the entrant list.
// The preimage is the packed encoding of (seed, timestamp, entrants) with every
// field widened to 32 bytes, matching keccak256(abi.encodePacked(difficulty, now, players)).
func SelectionHash(env entities.DrawEnvironment, entrants []common.Address) common.Hash {
	seed := env.Seed
	if seed == nil {
		seed = new(uint256.Int)
	}
	seedWord := seed.Bytes32()
	timestampWord := uint256.NewInt(env.Timestamp).Bytes32()

	preimage := make([]byte, 0, 32*(2+len(entrants)))
	preimage = append(preimage, seedWord[:]...)
	preimage = append(preimage, timestampWord[:]...)
	for _, entrant := range entrants {
		preimage = append(preimage, common.LeftPadBytes(entrant.Bytes(), 32)...)
	}

	return crypto.Keccak256Hash(preimage)
}

// SelectIndex maps the draw environment and entrants to an index in [0, len(entrants)).
// It is deterministic: identical inputs always produce the identical index.
// entrants must not be empty: it panics otherwise. Ledger.PickWinner returns
// ErrNoEntrants before ever calling it.
func SelectIndex(env entities.DrawEnvironment, entrants []common.Address) int {
	if len(entrants) == 0 {
		panic("ledger: SelectIndex called with no entrants")
	}

	hash := SelectionHash(env, entrants)
	value := new(uint256.Int).SetBytes32(hash.Bytes())
	index := new(uint256.Int).Mod(value, uint256.NewInt(uint64(len(entrants))))
	return int(index.Uint64())
}

// VerifyDraw recomputes a recorded draw from its entrants and reports whether it matches
func VerifyDraw(draw *entities.Draw, entrants []common.Address) bool {
	if draw == nil || len(entrants) == 0 || len(entrants) != draw.EntrantCount {
		return false
	}

	env := draw.Environment()
	if SelectionHash(env, entrants) != draw.SelectionHash {
		return false
	}

	index := SelectIndex(env, entrants)
	return index == draw.WinnerIndex && entrants[index] == draw.Winner
}
