package proof

import (
	mimc "github.com/consensys/gnark-crypto/hash"

	"github.com/stealthmix/transfercore/common"
)

// MerkleVerifier succeeds iff leaf combined with path under the
// ledger's chosen ZK-friendly hash yields root (spec §4.3). Used at
// finalize to prove recipient-set membership without revealing the
// full set.
//
// The hash family is concretely MiMC over BN254 -- the same family
// the teacher's durable Merkle-tree store provider used -- rather
// than left abstract, because spec §4.3 fixes the Merkle verifier's
// algorithm while leaving only the range/aggregate backends as
// pluggable contracts.
type MerkleVerifier struct{}

// NewMerkleVerifier constructs the concrete MiMC-backed verifier.
func NewMerkleVerifier() *MerkleVerifier {
	return &MerkleVerifier{}
}

const merkleHashSeed = "transfercore-merkle"

func merkleCombine(left, right [ChallengeSize]byte) [ChallengeSize]byte {
	h := mimc.MIMC_BN254.New()
	h.Write([]byte(merkleHashSeed))
	h.Write(left[:])
	h.Write(right[:])

	var out [ChallengeSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// MerkleCombine is the exported form of the same combine function
// VerifyMerkle checks against, so a fixture builder outside this
// package (see proof/prooftest) can assemble a tree that verifies
// without duplicating the hash family.
func MerkleCombine(left, right [ChallengeSize]byte) [ChallengeSize]byte {
	return merkleCombine(left, right)
}

const merkleLeafSeed = "transfercore-merkle-leaf"

// LeafFromAddress hashes a recipient address into a Merkle leaf under
// the same hash family VerifyMerkle combines with, so a recipient set
// committed at `initialize` can be checked for membership at
// `finalize` without the caller needing to know the hash family used.
func (v *MerkleVerifier) LeafFromAddress(addr [ChallengeSize]byte) [ChallengeSize]byte {
	h := mimc.MIMC_BN254.New()
	h.Write([]byte(merkleLeafSeed))
	h.Write(addr[:])

	var out [ChallengeSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyMerkle walks leaf up through path, combining with each
// sibling according to directions (false = sibling is on the right,
// true = sibling is on the left), and checks the result equals root.
func (v *MerkleVerifier) VerifyMerkle(leaf [ChallengeSize]byte, root [ChallengeSize]byte, path [][ChallengeSize]byte, directions []bool) error {
	if len(path) != len(directions) {
		return common.Validation(common.CodeOversizedProof, "InvalidMerklePath", "path and directions length mismatch")
	}

	current := leaf
	for i, sibling := range path {
		if directions[i] {
			current = merkleCombine(sibling, current)
		} else {
			current = merkleCombine(current, sibling)
		}
	}

	if current != root {
		return common.ErrMerkleCheckFailed
	}
	return nil
}
