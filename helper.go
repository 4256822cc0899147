package bft

import (
	"crypto/sha256"
	"math/big"
)

// hashOf returns the SHA256 hash of the concatenation of parts.
func hashOf(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// QuorumPower calculates the voting power needed for a quorum, 'floor(2*total/3) + 1',
// for a validator set with the given total power.
func QuorumPower(total *big.Int) *big.Int {
	q := new(big.Int).Mul(total, big.NewInt(2))
	q.Quo(q, big.NewInt(3))
	return q.Add(q, big.NewInt(1))
}
