package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCommitments() [CommitmentCount]Commitment {
	var c [CommitmentCount]Commitment
	for i := range c {
		c[i][0] = byte(i + 1)
	}
	return c
}

func TestReferenceVerifierAcceptsItsOwnSignedRangeProof(t *testing.T) {
	v := NewReferenceVerifier("test-seed")
	commitments := testCommitments()
	var challenge Challenge
	challenge[0] = 0x42

	p := v.SignRange(commitments, challenge)
	assert.NoError(t, v.VerifyRange(p, commitments, challenge))
}

func TestReferenceVerifierRejectsBitFlippedRangeProof(t *testing.T) {
	v := NewReferenceVerifier("test-seed")
	commitments := testCommitments()
	var challenge Challenge
	challenge[0] = 0x42

	p := v.SignRange(commitments, challenge)
	p[5] ^= 0x01 // P9: flip any bit, expect rejection

	assert.Error(t, v.VerifyRange(p, commitments, challenge))
}

func TestReferenceVerifierRejectsMismatchedVerifier(t *testing.T) {
	signer := NewReferenceVerifier("seed-a")
	verifier := NewReferenceVerifier("seed-b")
	commitments := testCommitments()
	var challenge Challenge
	challenge[0] = 0x42

	p := signer.SignRange(commitments, challenge)
	assert.Error(t, verifier.VerifyRange(p, commitments, challenge))
}

func TestReferenceVerifierAggregateSignatureAndBody(t *testing.T) {
	v := NewReferenceVerifier("test-seed")
	var challenge Challenge
	challenge[0] = 0x7

	public := AggregatePublicInputs{
		Hop:              2,
		PriorCommitments: testCommitments(),
		SplitCommitments: testCommitments(),
	}

	p := v.SignAggregate(challenge, public)
	assert.NoError(t, CheckAggregateSignature(p))
	assert.NoError(t, VerifyAggregateEnvelope(v, p, challenge, public))
}

func TestCheckAggregateSignatureRejectsFlippedMagic(t *testing.T) {
	v := NewReferenceVerifier("test-seed")
	var challenge Challenge
	public := AggregatePublicInputs{PriorCommitments: testCommitments(), SplitCommitments: testCommitments()}

	p := v.SignAggregate(challenge, public)
	p[1] ^= 0xFF // P9: flip a bit of the fixed two-byte signature

	assert.Error(t, CheckAggregateSignature(p))
	assert.Error(t, VerifyAggregateEnvelope(v, p, challenge, public))
}

func TestBindWitnessChallengeIsPositional(t *testing.T) {
	var challenge Challenge
	challenge[0] = 0x9

	a := BindWitnessChallenge(challenge, 1, 2)
	b := BindWitnessChallenge(challenge, 2, 1)
	assert.NotEqual(t, a, b)
}
