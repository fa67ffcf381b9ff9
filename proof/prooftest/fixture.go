// Package prooftest builds Merkle fixtures for tests that need a
// recipient-set tree which proof.MerkleVerifier will accept, without
// putting a test-only tree builder on the proof package's production
// surface.
package prooftest

import (
	"github.com/stealthmix/transfercore/proof"
)

// BuildMerkleFixture builds a balanced binary Merkle tree over leaves
// using the same combine function VerifyMerkle checks against, and
// returns the root plus the sibling path and left/right directions
// for leafIndex. A real client derives these off-ledger the same way
// (spec §4.3 -- the core never builds a tree itself, only verifies
// against one); this package exists so tests across transfercore can
// share one fixture builder instead of each hand-rolling a tree. The
// level-doubling of an odd trailing node mirrors the indexing approach
// of a conventional in-memory Merkle tree builder, adapted here to the
// MiMC-over-BN254 leaf/node hash proof.MerkleVerifier uses instead of
// a generic digest.
func BuildMerkleFixture(leaves [][proof.ChallengeSize]byte, leafIndex int) (root [proof.ChallengeSize]byte, path [][proof.ChallengeSize]byte, directions []bool) {
	level := make([][proof.ChallengeSize]byte, len(leaves))
	copy(level, leaves)
	index := leafIndex

	for len(level) > 1 {
		var sibling [proof.ChallengeSize]byte
		var goLeft bool // true: sibling is to the left of the current node

		if index%2 == 1 {
			sibling = level[index-1]
			goLeft = true
		} else if index+1 < len(level) {
			sibling = level[index+1]
			goLeft = false
		} else {
			sibling = level[index] // odd trailing node pairs with itself
			goLeft = false
		}
		path = append(path, sibling)
		directions = append(directions, goLeft)

		next := make([][proof.ChallengeSize]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, proof.MerkleCombine(level[i], level[i+1]))
			} else {
				next = append(next, proof.MerkleCombine(level[i], level[i]))
			}
		}
		level = next
		index /= 2
	}

	root = level[0]
	return root, path, directions
}
