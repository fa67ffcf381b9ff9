package transfer

import (
	"testing"

	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stealthmix/transfercore/bloom"
	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
	"github.com/stealthmix/transfercore/proof/prooftest"
)

var testProgramID = pda.ProgramID{0xAA}

func testConfig() Config {
	return Config{NumHops: 4, RealSplits: 4, FakeSplits: 44, ReserveBps: 0, FeeBps: 200, CUBudgetPerHop: 200_000}
}

type testHarness struct {
	machine *Machine
	clockAt int64
	verify  *proof.ReferenceVerifier
}

func newTestHarness() *testHarness {
	h := &testHarness{verify: proof.NewReferenceVerifier("transfercore-test")}
	store := newFakeStore()
	ledger := NewLedger()
	h.machine = NewMachine(
		testProgramID,
		store,
		ledger,
		h.verify,
		h.verify,
		proof.NewMerkleVerifier(),
		nil, // no NATS connection in tests
		[pda.Size]byte{0xFF},
		[pda.Size]byte{0xEE}, // treasury
		testConfig(),
		func() int64 { return h.clockAt },
	)
	return h
}

func addrAt(b byte) [pda.Size]byte {
	var a [pda.Size]byte
	a[0] = b
	return a
}

// openTransfer drives a valid `initialize` call for owner against
// recipients (primary first), returning the transfer id and the seed
// the caller would need to derive splits at each hop.
func (h *testHarness) openTransfer(t *testing.T, owner [pda.Size]byte, amount uint64, cfg Config, recipients [][pda.Size]byte) (uuid.UUID, pda.Seed) {
	h.machine.Ledger.Credit(toKey(owner), amount)

	var seed pda.Seed
	seed[0] = owner[0]
	seed[1] = 0x01

	var commitments [CommitmentCount]proof.Commitment
	var challenge proof.Challenge
	challenge[0] = owner[0]
	challenge[1] = 0x02

	public := proof.AggregatePublicInputs{Hop: 0, PriorCommitments: commitments, SplitCommitments: commitments}
	aggProof := h.verify.SignAggregate(challenge, public)
	rangeProof := h.verify.SignRange(commitments, challenge)

	mv := proof.NewMerkleVerifier()
	leaves := make([][proof.ChallengeSize]byte, len(recipients))
	for i, r := range recipients {
		leaves[i] = mv.LeafFromAddress(r)
	}
	root, path, directions := prooftest.BuildMerkleFixture(leaves, 0)

	var additional [][pda.Size]byte
	if len(recipients) > 1 {
		additional = recipients[1:]
	}

	id, err := h.machine.Initialize(InitializeInput{
		Owner:                 owner,
		Seed:                  seed,
		Amount:                amount,
		AggregateProof:        aggProof,
		RangeProof:            rangeProof,
		Commitments:           commitments,
		Challenge:             challenge,
		MerkleRoot:            root,
		PrimaryLeafPath:       path,
		PrimaryLeafDirections: directions,
		PrimaryRecipient:      recipients[0],
		AdditionalRecipients:  additional,
		Config:                cfg,
	})
	assert.NoError(t, err)
	return id, seed
}

// driveHop executes one hop for id, deriving every real split address
// from seed and supplying an arbitrary candidate account for every
// fake slot -- execute_hop's own validator accepts fakes via the bloom
// path regardless of the account's content.
func (h *testHarness) driveHop(t *testing.T, id uuid.UUID, seed pda.Seed, hop uint8) []SplitResult {
	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	total := state.Config.TotalSplits()

	accounts := make([]pda.Address, total)
	for split := uint8(0); split < total; split++ {
		if bloom.Contains(state.FakeBloom, hop, split) {
			accounts[split] = pda.Address{0x01, split} // arbitrary; bloom path doesn't check content
			continue
		}
		accounts[split] = pda.Derive(testProgramID, seed, hop, split)
	}

	public := proof.AggregatePublicInputs{Hop: hop, BloomFilter: state.FakeBloom, PriorCommitments: state.Commitments, SplitCommitments: state.Commitments}
	aggProof := h.verify.SignAggregate(state.Challenge, public)
	rangeProof := h.verify.SignRange(state.Commitments, state.Challenge)

	results, err := h.machine.ExecuteHop(id, ExecuteHopInput{
		Hop:            hop,
		AggregateProof: aggProof,
		RangeProof:     rangeProof,
		SplitAccounts:  accounts,
	})
	assert.NoError(t, err)
	return results
}

func (h *testHarness) driveAllHops(t *testing.T, id uuid.UUID, seed pda.Seed, cfg Config) {
	for hop := uint8(0); hop < cfg.NumHops; hop++ {
		h.driveHop(t, id, seed, hop)
	}
}

func (h *testHarness) finalizeTransfer(t *testing.T, id uuid.UUID, recipients [][pda.Size]byte) map[[pda.Size]byte]uint64 {
	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)

	public := proof.AggregatePublicInputs{Hop: state.CurrentHop, BloomFilter: state.FakeBloom, PriorCommitments: state.Commitments, SplitCommitments: state.Commitments}
	closing := h.verify.SignAggregate(state.Challenge, public)

	mv := proof.NewMerkleVerifier()
	leaves := make([][proof.ChallengeSize]byte, len(recipients))
	for i, r := range recipients {
		leaves[i] = mv.LeafFromAddress(r)
	}

	leafProofs := make([]MerkleLeafProof, len(recipients))
	for i, r := range recipients {
		_, path, directions := prooftest.BuildMerkleFixture(leaves, i)
		leafProofs[i] = MerkleLeafProof{Recipient: r, Path: path, Directions: directions}
	}

	payouts, err := h.machine.Finalize(id, FinalizeInput{ClosingProof: closing, LeafProofs: leafProofs})
	assert.NoError(t, err)
	return payouts
}

// TestE1SingleRecipientHappyPath mirrors the spec scenario: 2% fee,
// no reserve, four hops, single recipient receives 98% of the
// committed amount and the state account is deleted.
func TestE1SingleRecipientHappyPath(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x10)
	recipient := addrAt(0x20)

	id, seed := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})
	h.driveAllHops(t, id, seed, cfg)

	payouts := h.finalizeTransfer(t, id, [][pda.Size]byte{recipient})
	assert.Equal(t, uint64(980_000_000), payouts[recipient])

	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	assert.Nil(t, state)

	assert.Equal(t, uint64(20_000_000), h.machine.Ledger.Balance(toKey(h.machine.Treasury)))
}

// TestE2MultiRecipientDistribution checks the payout pool is split
// across every recipient with no lamport left unaccounted for.
func TestE2MultiRecipientDistribution(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x11)
	recipients := [][pda.Size]byte{addrAt(0x21), addrAt(0x22), addrAt(0x23), addrAt(0x24)}

	id, seed := h.openTransfer(t, owner, 1_000_000_000, cfg, recipients)
	h.driveAllHops(t, id, seed, cfg)

	payouts := h.finalizeTransfer(t, id, recipients)

	var total uint64
	for _, r := range recipients {
		assert.Greater(t, payouts[r], uint64(0))
		total += payouts[r]
	}
	assert.Equal(t, uint64(980_000_000), total)
}

// TestE3ProofTamperingRejection drives two hops successfully, then
// submits a hop-3 aggregate proof with a tampered byte and expects
// current_hop to remain unchanged.
func TestE3ProofTamperingRejection(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x12)
	recipient := addrAt(0x25)

	id, seed := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})
	h.driveHop(t, id, seed, 0)
	h.driveHop(t, id, seed, 1)

	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	total := state.Config.TotalSplits()
	accounts := make([]pda.Address, total)
	for split := uint8(0); split < total; split++ {
		if bloom.Contains(state.FakeBloom, 2, split) {
			accounts[split] = pda.Address{0x01, split}
		} else {
			accounts[split] = pda.Derive(testProgramID, seed, 2, split)
		}
	}
	public := proof.AggregatePublicInputs{Hop: 2, BloomFilter: state.FakeBloom, PriorCommitments: state.Commitments, SplitCommitments: state.Commitments}
	aggProof := h.verify.SignAggregate(state.Challenge, public)
	aggProof[1] ^= 0xFF // tamper second byte, still within the protocol signature
	rangeProof := h.verify.SignRange(state.Commitments, state.Challenge)

	_, err = h.machine.ExecuteHop(id, ExecuteHopInput{Hop: 2, AggregateProof: aggProof, RangeProof: rangeProof, SplitAccounts: accounts})
	assert.Error(t, err)

	state, err = h.machine.Store.Get(id)
	assert.NoError(t, err)
	assert.Equal(t, uint8(2), state.CurrentHop)
}

// TestE4RefundAfterTimeout mirrors the spec scenario: no hops
// executed, clock advanced past the refund deadline, owner recovers
// 95% of the full deposit -- fee_bps plays no part, since fees are
// never levied pre-finalize -- and the remainder goes to the treasury.
func TestE4RefundAfterTimeout(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x13)
	recipient := addrAt(0x26)

	id, _ := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})

	h.clockAt += 3600 + 1

	refunded, err := h.machine.Refund(id)
	assert.NoError(t, err)
	assert.Equal(t, uint64(950_000_000), refunded)
	assert.Equal(t, uint64(50_000_000), h.machine.Ledger.Balance(toKey(h.machine.Treasury)))

	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestRefundRejectedBeforeTimeout(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x14)
	recipient := addrAt(0x27)

	id, _ := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})

	_, err := h.machine.Refund(id)
	assert.Error(t, err)
}

// TestE6ConservationViolationTrapped credits a 500-lamport windfall to
// one fake split's candidate account before the hop runs. Once the
// executor funds that account's rent, the windfall sits above
// rent_exempt_minimum and the excess-recovery path sweeps it into the
// transfer-state account, inflating its balance beyond what a
// zero-real-value hop is allowed to produce, so the hop must reject
// with a conservation error rather than advance current_hop.
func TestE6ConservationViolationTrapped(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x15)
	recipient := addrAt(0x28)

	id, seed := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})

	before, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	stateAddr := h.machine.stateAddr(before.Owner)

	total := before.Config.TotalSplits()
	accounts := make([]pda.Address, total)
	var fakeSlot pda.Address
	haveFake := false
	for split := uint8(0); split < total; split++ {
		if bloom.Contains(before.FakeBloom, 0, split) {
			accounts[split] = pda.Address{0x01, split}
			if !haveFake {
				fakeSlot = accounts[split]
				haveFake = true
			}
		} else {
			accounts[split] = pda.Derive(testProgramID, seed, 0, split)
		}
	}
	assert.True(t, haveFake, "test config must produce at least one fake slot at hop 0")

	// an unrelated windfall sitting on the decoy account before the
	// runtime ever visits it this hop.
	h.machine.Ledger.Credit(toKey(fakeSlot), 500)

	public := proof.AggregatePublicInputs{Hop: 0, BloomFilter: before.FakeBloom, PriorCommitments: before.Commitments, SplitCommitments: before.Commitments}
	aggProof := h.verify.SignAggregate(before.Challenge, public)
	rangeProof := h.verify.SignRange(before.Commitments, before.Challenge)

	balanceBefore := h.machine.Ledger.Balance(toKey(stateAddr))
	_, err = h.machine.ExecuteHop(id, ExecuteHopInput{Hop: 0, AggregateProof: aggProof, RangeProof: rangeProof, SplitAccounts: accounts})
	assert.Error(t, err)
	assert.Equal(t, balanceBefore, h.machine.Ledger.Balance(toKey(stateAddr)))

	after, err := h.machine.Store.Get(id)
	assert.NoError(t, err)
	assert.Equal(t, uint8(0), after.CurrentHop)
}

func TestRevealFakeRepairsBloomCollision(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x16)
	recipient := addrAt(0x29)

	id, _ := h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})

	state, err := h.machine.Store.Get(id)
	assert.NoError(t, err)

	var hop, split uint8 = 3, 40
	for bloom.Contains(state.FakeBloom, hop, split) && split < 47 {
		split++
	}

	bound := proof.BindWitnessChallenge(state.Challenge, hop, split)
	public := proof.AggregatePublicInputs{Hop: hop, BloomFilter: state.FakeBloom, PriorCommitments: state.Commitments, SplitCommitments: state.Commitments}
	witness := h.verify.SignAggregate(bound, public)

	assert.NoError(t, h.machine.RevealFake(id, hop, split, witness))

	state, err = h.machine.Store.Get(id)
	assert.NoError(t, err)
	assert.True(t, bloom.Contains(state.FakeBloom, hop, split))
}

func TestConfigUpdateRequiresGovernanceAuthority(t *testing.T) {
	h := newTestHarness()
	newCfg := testConfig()
	newCfg.NumHops = 6

	err := h.machine.ConfigUpdate(addrAt(0x99), newCfg)
	assert.Error(t, err)

	err = h.machine.ConfigUpdate(h.machine.GovernanceAuthority, newCfg)
	assert.NoError(t, err)
	assert.Equal(t, uint8(6), h.machine.DefaultConfig.NumHops)
}

func TestInitializeRejectsDuplicateInFlightOwner(t *testing.T) {
	h := newTestHarness()
	cfg := testConfig()
	owner := addrAt(0x17)
	recipient := addrAt(0x2A)

	h.openTransfer(t, owner, 1_000_000_000, cfg, [][pda.Size]byte{recipient})
	h.machine.Ledger.Credit(toKey(owner), 1_000_000_000)

	var seed pda.Seed
	seed[0] = 0x01
	var commitments [CommitmentCount]proof.Commitment
	var challenge proof.Challenge
	public := proof.AggregatePublicInputs{PriorCommitments: commitments, SplitCommitments: commitments}

	_, err := h.machine.Initialize(InitializeInput{
		Owner:            owner,
		Seed:             seed,
		Amount:           1_000_000_000,
		AggregateProof:   h.verify.SignAggregate(challenge, public),
		RangeProof:       h.verify.SignRange(commitments, challenge),
		Commitments:      commitments,
		Challenge:        challenge,
		PrimaryRecipient: recipient,
		Config:           cfg,
	})
	assert.Error(t, err)
}
