package proof_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stealthmix/transfercore/proof"
	"github.com/stealthmix/transfercore/proof/prooftest"
)

func testRecipientLeaves(n int) [][proof.ChallengeSize]byte {
	v := proof.NewMerkleVerifier()
	leaves := make([][proof.ChallengeSize]byte, n)
	for i := range leaves {
		var addr [proof.ChallengeSize]byte
		addr[0] = byte(i + 1)
		leaves[i] = v.LeafFromAddress(addr)
	}
	return leaves
}

func TestVerifyMerkleAcceptsValidFixture(t *testing.T) {
	v := proof.NewMerkleVerifier()
	leaves := testRecipientLeaves(5)

	for i := range leaves {
		root, path, directions := prooftest.BuildMerkleFixture(leaves, i)
		assert.NoError(t, v.VerifyMerkle(leaves[i], root, path, directions), "leaf %d", i)
	}
}

func TestVerifyMerkleRejectsWrongLeaf(t *testing.T) {
	v := proof.NewMerkleVerifier()
	leaves := testRecipientLeaves(4)

	root, path, directions := prooftest.BuildMerkleFixture(leaves, 1)
	assert.Error(t, v.VerifyMerkle(leaves[2], root, path, directions))
}

func TestVerifyMerkleRejectsTamperedPath(t *testing.T) {
	v := proof.NewMerkleVerifier()
	leaves := testRecipientLeaves(4)

	root, path, directions := prooftest.BuildMerkleFixture(leaves, 0)
	path[0][0] ^= 0xFF

	assert.Error(t, v.VerifyMerkle(leaves[0], root, path, directions))
}

func TestVerifyMerkleRejectsMismatchedPathDirectionLengths(t *testing.T) {
	v := proof.NewMerkleVerifier()
	leaves := testRecipientLeaves(4)

	_, path, _ := prooftest.BuildMerkleFixture(leaves, 0)
	err := v.VerifyMerkle(leaves[0], [proof.ChallengeSize]byte{}, path, nil)
	assert.Error(t, err)
}

func TestLeafFromAddressIsDeterministic(t *testing.T) {
	v := proof.NewMerkleVerifier()
	var addr [proof.ChallengeSize]byte
	addr[0] = 9

	assert.Equal(t, v.LeafFromAddress(addr), v.LeafFromAddress(addr))
}
