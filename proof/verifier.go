// Package proof defines the abstract verifier surface of component
// C3: fixed-size envelopes for range, aggregate, and Merkle
// statements, specified at the contract level per spec §4.3. The
// concrete proving system behind RangeVerifier and AggregateVerifier
// is an external collaborator (see SPEC_FULL.md's "Concrete
// proof-system binding" section) -- this package only fixes the wire
// envelope and the properties any injected verifier must satisfy.
package proof

import (
	"github.com/consensys/gnark-crypto/ecc"
	mimc "github.com/consensys/gnark-crypto/hash"
	"github.com/consensys/gnark/backend"

	"github.com/stealthmix/transfercore/common"
)

// ProofSize is the fixed byte width of every aggregate and range
// proof blob (spec §6.2).
const ProofSize = 128

// ChallengeSize is the byte width of the Fiat-Shamir challenge and of
// commitments/hashes under the ledger's ZK-friendly hash (spec §6.2).
const ChallengeSize = 32

// CommitmentCount is the fixed number of Pedersen-style commitments
// carried by a TransferState (spec §3 `commitments`).
const CommitmentCount = 8

// aggregateSignature is the fixed two-byte protocol signature every
// aggregate proof must open with (spec §6.2: `0x50 0x53`).
var aggregateSignature = [2]byte{0x50, 0x53}

// Commitment is one 32-byte serialized field element.
type Commitment [ChallengeSize]byte

// Challenge binds a proof to one transfer via Fiat-Shamir.
type Challenge [ChallengeSize]byte

// RangeProof is the fixed-size opaque range proof blob.
type RangeProof [ProofSize]byte

// AggregateProof is the fixed-size opaque aggregate proof blob.
type AggregateProof [ProofSize]byte

// RangeVerifier succeeds iff each committed value lies in [0, 2^64)
// and the committed values sum to the declared total (spec §4.3).
// MUST reject malformed proofs before any field arithmetic -- callers
// satisfy this by validating the fixed-size envelope before invoking
// the concrete backend.
type RangeVerifier interface {
	VerifyRange(p RangeProof, commitments [CommitmentCount]Commitment, challenge Challenge) error
}

// AggregatePublicInputs carries the statement an aggregate proof
// attests to: consistency of the hop's split commitments with the
// declared bloom filter and with the preceding hop's output
// commitments (spec §4.3).
type AggregatePublicInputs struct {
	Hop              uint8
	BloomFilter      [16]byte
	PriorCommitments [CommitmentCount]Commitment
	SplitCommitments [CommitmentCount]Commitment
}

// AggregateVerifier succeeds iff the prover demonstrated the
// statement described by AggregatePublicInputs (spec §4.3). The
// protocol signature MUST be checked first by the caller via
// CheckAggregateSignature; a backend implementation may assume that
// has already happened.
type AggregateVerifier interface {
	VerifyAggregate(p AggregateProof, challenge Challenge, public AggregatePublicInputs) error
}

// CheckAggregateSignature validates the fixed two-byte protocol
// signature that must open every aggregate proof (spec §4.3, §6.2).
// This check MUST run before any other aggregate verification step;
// failure surfaces InvalidProofSignature, never ProofVerificationFailed.
func CheckAggregateSignature(p AggregateProof) error {
	if p[0] != aggregateSignature[0] || p[1] != aggregateSignature[1] {
		return common.ErrInvalidProofSignature
	}
	return nil
}

// VerifyAggregateEnvelope checks the protocol signature first, then
// delegates to the concrete backend. Callers should use this instead
// of calling AggregateVerifier.VerifyAggregate directly so the
// signature-first ordering required by spec §4.3 can never be skipped.
func VerifyAggregateEnvelope(v AggregateVerifier, p AggregateProof, challenge Challenge, public AggregatePublicInputs) error {
	if err := CheckAggregateSignature(p); err != nil {
		return err
	}
	if err := v.VerifyAggregate(p, challenge, public); err != nil {
		return common.ErrProofVerificationFailed.Wrap(err)
	}
	return nil
}

// BindWitnessChallenge mixes hop and split into challenge so a
// `reveal_fake` witness can be checked against the same
// AggregateVerifier surface without widening AggregatePublicInputs
// with a field only that transition uses (see SPEC_FULL.md's "Reveal-
// fake witness format" decision). The mix is order-sensitive and
// collision-resistant under the same MiMC/BN254 family the rest of the
// proof surface already depends on.
func BindWitnessChallenge(challenge Challenge, hop, split uint8) Challenge {
	h := mimc.MIMC_BN254.New()
	h.Write([]byte("reveal-fake-binding"))
	h.Write(challenge[:])
	h.Write([]byte{hop, split})

	var out Challenge
	copy(out[:], h.Sum(nil))
	return out
}

// BackendIdentity tags which concrete curve and proving scheme a
// RangeVerifier/AggregateVerifier implementation is bound to. The
// engine itself never inspects proof internals beyond the fixed
// envelope (spec.md §4.3) -- this exists purely so a deployment can
// record, alongside an injected verifier, which backend it implements,
// resolving spec.md §9's Open Question on proof-system identity.
type BackendIdentity struct {
	Curve  ecc.ID
	Scheme backend.ID
}

// DefaultBackendIdentity returns the identity this implementation
// documents as the concrete proof-system binding: gnark's groth16
// backend over the BN254 curve (see SPEC_FULL.md "Concrete
// proof-system binding").
func DefaultBackendIdentity() BackendIdentity {
	curveName, schemeName := "bn254", "groth16"
	return BackendIdentity{
		Curve:  common.GnarkCurveIDFactory(&curveName),
		Scheme: common.GnarkProvingSchemeFactory(&schemeName),
	}
}

// VerifyRangeEnvelope delegates to the concrete range backend,
// normalizing any backend error to the RangeCheckFailed category so
// callers never need to know which concrete proving system produced
// the failure.
func VerifyRangeEnvelope(v RangeVerifier, p RangeProof, commitments [CommitmentCount]Commitment, challenge Challenge) error {
	if err := v.VerifyRange(p, commitments, challenge); err != nil {
		return common.ErrRangeCheckFailed.Wrap(err)
	}
	return nil
}
