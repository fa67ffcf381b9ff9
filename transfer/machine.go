package transfer

import (
	"time"

	uuid "github.com/kthomas/go.uuid"

	"github.com/stealthmix/transfercore/accounting"
	"github.com/stealthmix/transfercore/bloom"
	"github.com/stealthmix/transfercore/common"
	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
)

// Machine wires the C1-C4, C6 components together behind the seven
// entry points of spec §6.1. It holds no per-transfer state itself --
// that lives in Store/Ledger -- so one Machine safely serves every
// in-flight transfer for one program id.
type Machine struct {
	ProgramID pda.ProgramID

	Store  TransferStore
	Ledger *Ledger

	RangeVerifier     proof.RangeVerifier
	AggregateVerifier proof.AggregateVerifier
	MerkleVerifier    *proof.MerkleVerifier

	Notifier *Notifier

	// GovernanceAuthority is the only signer config_update accepts
	// (spec §4.5 "a designated governance authority may update config
	// for future transfers").
	GovernanceAuthority [pda.Size]byte

	// Treasury receives the retained slice of a refund (spec §4.5
	// "at least 95%... returned to owner"): the complement stays with
	// the protocol rather than vanishing from the ledger.
	Treasury [pda.Size]byte

	// DefaultConfig seeds new transfers whose InitializeInput carries no
	// Config; ConfigUpdate only ever changes this field, never a config
	// already captured into a State (spec §4.5 "affects only transfers
	// initialized after the update").
	DefaultConfig Config

	// Clock returns the ledger runtime's monotonic time. Swapped out in
	// tests; defaults to a real clock via NewMachine.
	Clock func() int64
}

// NewMachine constructs a Machine with the given collaborators. Clock
// defaults to the wall clock (time.Now, in Unix seconds) if nil is
// passed for it by the caller -- see cmd/api/main.go for the
// production wiring.
func NewMachine(programID pda.ProgramID, store TransferStore, ledger *Ledger, rangeVerifier proof.RangeVerifier, aggregateVerifier proof.AggregateVerifier, merkleVerifier *proof.MerkleVerifier, notifier *Notifier, governanceAuthority, treasury [pda.Size]byte, defaultConfig Config, clock func() int64) *Machine {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Machine{
		ProgramID:           programID,
		Store:               store,
		Ledger:              ledger,
		RangeVerifier:       rangeVerifier,
		AggregateVerifier:   aggregateVerifier,
		MerkleVerifier:      merkleVerifier,
		Notifier:            notifier,
		GovernanceAuthority: governanceAuthority,
		Treasury:            treasury,
		DefaultConfig:       defaultConfig,
		Clock:               clock,
	}
}

func (m *Machine) now() int64 {
	if m.Clock == nil {
		return 0
	}
	return m.Clock()
}

func (m *Machine) stateAddr(owner [pda.Size]byte) pda.Address {
	addr, _ := pda.DeriveStateAddress(m.ProgramID, owner)
	return addr
}

// InitializeInput bundles the `initialize` entry point's args+accounts
// (spec §6.1): the payer's deposit, the opening proofs binding the
// first hop's commitments, the Fiat-Shamir challenge the caller
// derived off-ledger, a membership proof admitting the primary
// recipient into the declared recipient-set root, and the recipient
// set itself.
type InitializeInput struct {
	Owner  [pda.Size]byte
	Amount uint64

	// Seed is generated off-ledger by the owner's client (out of scope
	// per spec §1) and supplied here so the same owner can later derive
	// the stealth PDAs it submits to execute_hop -- the core only ever
	// checks it is well-formed, never generates it itself (spec §4.5
	// `initialize` guard: "seed well-formed").
	Seed pda.Seed

	AggregateProof proof.AggregateProof
	RangeProof     proof.RangeProof
	Commitments    [CommitmentCount]proof.Commitment
	Challenge      proof.Challenge

	MerkleRoot            [proof.ChallengeSize]byte
	PrimaryLeafPath       [][proof.ChallengeSize]byte
	PrimaryLeafDirections []bool

	PrimaryRecipient     [pda.Size]byte
	AdditionalRecipients [][pda.Size]byte

	Config Config
}

// Initialize opens a new transfer: validates the config and the
// caller-supplied seed, verifies the opening proofs and the primary
// recipient's membership in the declared recipient-set root, derives
// the decoy registry the config and challenge determine, and persists
// the resulting State (spec §4.5 `initialize`). An input with a zero
// Config is initialized with DefaultConfig.
func (m *Machine) Initialize(in InitializeInput) (uuid.UUID, error) {
	if in.Amount == 0 {
		return uuid.UUID{}, common.Validation(common.CodeInvalidAmount, "InvalidAmount", "amount must be nonzero")
	}
	cfg := in.Config
	if cfg == (Config{}) {
		cfg = m.DefaultConfig
	}
	if err := cfg.Validate(); err != nil {
		return uuid.UUID{}, err
	}
	if len(in.AdditionalRecipients) > MaxAdditionalRecipients {
		return uuid.UUID{}, common.Validation(common.CodeInvalidConfig, "InvalidConfig", "too many additional recipients")
	}

	if _, existing, err := m.Store.GetByOwner(in.Owner); err != nil {
		return uuid.UUID{}, err
	} else if existing != nil {
		return uuid.UUID{}, common.ErrTransferExists
	}

	var zeroSeed pda.Seed
	if in.Seed == zeroSeed {
		return uuid.UUID{}, common.Validation(common.CodeInvalidConfig, "InvalidSeed", "seed must be well-formed (nonzero)")
	}

	public := proof.AggregatePublicInputs{
		Hop:              0,
		BloomFilter:      bloom.Filter{},
		PriorCommitments: in.Commitments,
		SplitCommitments: in.Commitments,
	}
	if err := proof.VerifyAggregateEnvelope(m.AggregateVerifier, in.AggregateProof, in.Challenge, public); err != nil {
		return uuid.UUID{}, err
	}
	if err := proof.VerifyRangeEnvelope(m.RangeVerifier, in.RangeProof, in.Commitments, in.Challenge); err != nil {
		return uuid.UUID{}, err
	}

	primaryLeaf := m.MerkleVerifier.LeafFromAddress(in.PrimaryRecipient)
	if err := m.MerkleVerifier.VerifyMerkle(primaryLeaf, in.MerkleRoot, in.PrimaryLeafPath, in.PrimaryLeafDirections); err != nil {
		return uuid.UUID{}, err
	}

	fees, err := accounting.ComputeFees(in.Amount, cfg.FeeBps, cfg.ReserveBps)
	if err != nil {
		return uuid.UUID{}, err
	}

	filter := bloom.Generate(bloom.Config{NumHops: cfg.NumHops, RealSplits: cfg.RealSplits, FakeSplits: cfg.FakeSplits}, in.Challenge)

	stateAddr, bump := pda.DeriveStateAddress(m.ProgramID, in.Owner)

	state := &State{
		Owner:                in.Owner,
		Amount:               in.Amount,
		CurrentHop:           0,
		Status:               StatusActive,
		Seed:                 in.Seed,
		Challenge:            in.Challenge,
		Commitments:          in.Commitments,
		AggregateProof:       in.AggregateProof,
		RangeProof:           in.RangeProof,
		MerkleRoot:           in.MerkleRoot,
		FakeBloom:            filter,
		Config:               cfg,
		BatchCount:           0,
		TotalFees:            fees.TotalFees,
		Reserve:              fees.Reserve,
		PrimaryRecipient:     in.PrimaryRecipient,
		AdditionalRecipients: in.AdditionalRecipients,
		Bump:                 bump,
		CreatedAt:            m.now(),
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.UUID{}, err
	}

	if err := m.Store.Create(id, state); err != nil {
		return uuid.UUID{}, err
	}

	if err := m.Ledger.Move(toKey(in.Owner), toKey(stateAddr), in.Amount); err != nil {
		m.Store.Delete(id)
		return uuid.UUID{}, err
	}

	return id, nil
}

// ExecuteHop advances a transfer by exactly one hop: verifies the
// hop's proofs, classifies and moves value across every split account
// supplied, then re-checks lamport conservation across the call before
// advancing current_hop (spec §4.4, §4.5 `execute_hop`).
func (m *Machine) ExecuteHop(id uuid.UUID, in ExecuteHopInput) ([]SplitResult, error) {
	state, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, common.ErrTransferNotFound
	}
	if state.Status != StatusActive {
		return nil, common.ErrWrongState
	}
	if in.Hop != state.CurrentHop {
		return nil, common.ErrHopMismatch
	}
	if state.CurrentHop >= state.Config.NumHops {
		return nil, common.ErrWrongState
	}

	in.AggregateVerifier = m.AggregateVerifier
	in.RangeVerifier = m.RangeVerifier

	stateAddr := m.stateAddr(state.Owner)
	startBalance := m.Ledger.Balance(toKey(stateAddr))
	snap := m.Ledger.snapshot()

	results, err := executeHopSplits(m.ProgramID, state, m.Ledger, stateAddr, in)
	if err != nil {
		m.Ledger.restore(snap)
		return nil, err
	}

	endBalance := m.Ledger.Balance(toKey(stateAddr))
	if err := accounting.CheckConservation(startBalance, endBalance, 0, 0); err != nil {
		m.Ledger.restore(snap)
		return nil, err
	}

	state.CurrentHop++
	state.BatchCount++
	if err := m.Store.Update(id, state); err != nil {
		return nil, err
	}

	realCount := 0
	for _, r := range results {
		if r.IsReal {
			realCount++
		}
	}
	m.Notifier.HopExecuted(id, state.CurrentHop, realCount)

	return results, nil
}

// ExecuteBatchHop drives ExecuteHop repeatedly for one transfer within
// a single compute-budget envelope, stopping cleanly (not with an
// error) when the budget would be exceeded or when every hop in the
// batch has executed (spec §4.4 "processed in a single runtime call
// when the compute budget allows").
func (m *Machine) ExecuteBatchHop(id uuid.UUID, batch []ExecuteHopInput, computeBudget uint32) (executed int, results [][]SplitResult, err error) {
	state, err := m.Store.Get(id)
	if err != nil {
		return 0, nil, err
	}
	if state == nil {
		return 0, nil, common.ErrTransferNotFound
	}

	perHop := state.Config.CUBudgetPerHop
	for _, in := range batch {
		if computeBudget < perHop {
			break
		}
		res, err := m.ExecuteHop(id, in)
		if err != nil {
			return executed, results, err
		}
		results = append(results, res)
		executed++
		computeBudget -= perHop
	}
	return executed, results, nil
}

// MerkleLeafProof admits one recipient into the declared recipient-set
// root (spec §4.3, reused at `finalize`).
type MerkleLeafProof struct {
	Recipient  [pda.Size]byte
	Path       [][proof.ChallengeSize]byte
	Directions []bool
}

// FinalizeInput bundles the `finalize` entry point's args+accounts
// (spec §6.1).
type FinalizeInput struct {
	ClosingProof proof.AggregateProof
	LeafProofs   []MerkleLeafProof
}

// Finalize closes a transfer once every hop has executed: verifies the
// closing proof, checks every claimed recipient against the declared
// recipient-set root, divides the remaining balance (amount minus
// total fees; the reserve is part of it, not added on top) among them, pays out, and deletes the TransferState account --
// realizing the Completed status by deletion rather than by a stored
// flag (spec §3 invariant #1, §4.5 `finalize`).
func (m *Machine) Finalize(id uuid.UUID, in FinalizeInput) (map[[pda.Size]byte]uint64, error) {
	state, err := m.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, common.ErrTransferNotFound
	}
	if state.Status != StatusActive {
		return nil, common.ErrWrongState
	}
	if state.CurrentHop < state.Config.NumHops {
		return nil, common.ErrNotAllHopsComplete
	}

	public := proof.AggregatePublicInputs{
		Hop:              state.CurrentHop,
		BloomFilter:      state.FakeBloom,
		PriorCommitments: state.Commitments,
		SplitCommitments: state.Commitments,
	}
	if err := proof.VerifyAggregateEnvelope(m.AggregateVerifier, in.ClosingProof, state.Challenge, public); err != nil {
		return nil, err
	}

	recipients := state.Recipients()
	if len(in.LeafProofs) != len(recipients) {
		return nil, common.Validation(common.CodeOversizedProof, "RecipientSetMismatch", "leaf proof count does not match the declared recipient set")
	}
	claimed := make(map[[pda.Size]byte]bool, len(in.LeafProofs))
	for _, lp := range in.LeafProofs {
		leaf := m.MerkleVerifier.LeafFromAddress(lp.Recipient)
		if err := m.MerkleVerifier.VerifyMerkle(leaf, state.MerkleRoot, lp.Path, lp.Directions); err != nil {
			return nil, err
		}
		claimed[lp.Recipient] = true
	}
	for _, r := range recipients {
		if !claimed[r] {
			return nil, common.ErrMerkleCheckFailed
		}
	}

	stateAddr := m.stateAddr(state.Owner)
	startBalance := m.Ledger.Balance(toKey(stateAddr))
	snap := m.Ledger.snapshot()

	payoutPool := state.RemainingBalance() // amount - total_fees, spec §4.6 "Σ lamports paid to recipients at finalize == amount - total_fees"
	shares := allocatePayouts(state.Seed, payoutPool, recipients)

	payouts := make(map[[pda.Size]byte]uint64, len(recipients))
	var paidOut uint64
	for i, r := range recipients {
		if shares[i] == 0 {
			continue
		}
		if err := m.Ledger.Move(toKey(stateAddr), toKey(r), shares[i]); err != nil {
			m.Ledger.restore(snap)
			return nil, err
		}
		payouts[r] = shares[i]
		paidOut += shares[i]
	}

	if state.TotalFees > 0 {
		if err := m.Ledger.Move(toKey(stateAddr), toKey(m.Treasury), state.TotalFees); err != nil {
			m.Ledger.restore(snap)
			return nil, err
		}
	}

	endBalance := m.Ledger.Balance(toKey(stateAddr))
	if err := accounting.CheckConservation(startBalance, endBalance, paidOut, state.TotalFees); err != nil {
		m.Ledger.restore(snap)
		return nil, err
	}

	if err := m.Store.Delete(id); err != nil {
		return nil, err
	}

	m.Notifier.Finalized(id, len(recipients))

	return payouts, nil
}

// Refund returns 95% of the owner's full deposit to the owner once
// the refund timeout has elapsed without finalize completing,
// retaining the complement for the protocol treasury, and deletes the
// TransferState account -- realizing RefundTriggered by deletion (spec
// §3 invariant #2, §4.5 `refund`). Fees are never levied pre-finalize,
// so the escrowed balance is still the full deposit at refund time.
func (m *Machine) Refund(id uuid.UUID) (uint64, error) {
	state, err := m.Store.Get(id)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, common.ErrTransferNotFound
	}
	if state.Status != StatusActive {
		return 0, common.ErrAlreadyRefunded
	}
	if m.now()-state.CreatedAt < common.RefundTimeoutSeconds {
		return 0, common.ErrRefundNotYetEligible
	}

	stateAddr := m.stateAddr(state.Owner)
	// Refund returns 95% of the full deposited amount, fees not
	// subtracted: fees are only ever levied (moved to the treasury) at
	// `finalize`, so a transfer that never gets there still holds its
	// whole deposit in escrow, matching the original source's
	// refund_amount = total_amount * 95 / 100 on transfer_state.amount.
	remaining := state.Amount
	snap := m.Ledger.snapshot()

	refundAmount := remaining - remaining/20 // ceil(95%): the owner never gets less than 95%
	retained := remaining - refundAmount

	if refundAmount > 0 {
		if err := m.Ledger.Move(toKey(stateAddr), toKey(state.Owner), refundAmount); err != nil {
			m.Ledger.restore(snap)
			return 0, err
		}
	}
	if retained > 0 {
		if err := m.Ledger.Move(toKey(stateAddr), toKey(m.Treasury), retained); err != nil {
			m.Ledger.restore(snap)
			return 0, err
		}
	}

	if err := m.Store.Delete(id); err != nil {
		return 0, err
	}

	m.Notifier.Refunded(id, refundAmount)

	return refundAmount, nil
}

// RevealFake repairs a mod-128 collision in the decoy registry: a
// witness proves (hop, split) was always meant to be a decoy even
// though Generate's wrap mapped it onto a bit some other slot also
// claims, so the registry is corrected without moving any value (spec
// §4.2, §6.1 `reveal_fake`).
func (m *Machine) RevealFake(id uuid.UUID, hop, split uint8, witness proof.AggregateProof) error {
	state, err := m.Store.Get(id)
	if err != nil {
		return err
	}
	if state == nil {
		return common.ErrTransferNotFound
	}
	if state.Status != StatusActive {
		return common.ErrWrongState
	}

	bound := proof.BindWitnessChallenge(state.Challenge, hop, split)
	public := proof.AggregatePublicInputs{
		Hop:              hop,
		BloomFilter:      state.FakeBloom,
		PriorCommitments: state.Commitments,
		SplitCommitments: state.Commitments,
	}
	if err := proof.VerifyAggregateEnvelope(m.AggregateVerifier, witness, bound, public); err != nil {
		return err
	}

	bloom.Repair(&state.FakeBloom, hop, split)
	if err := m.Store.Update(id, state); err != nil {
		return err
	}

	m.Notifier.RevealFakeApplied(id, hop, split)
	return nil
}

// ConfigUpdate changes the configuration new transfers are initialized
// with. It never touches an in-flight State (spec §4.5 "affects only
// transfers initialized after the update").
func (m *Machine) ConfigUpdate(signer [pda.Size]byte, newConfig Config) error {
	if signer != m.GovernanceAuthority {
		return common.ErrUnauthorizedSigner
	}
	if err := newConfig.Validate(); err != nil {
		return err
	}
	m.DefaultConfig = newConfig
	return nil
}

func toKey(addr [pda.Size]byte) [32]byte {
	var out [32]byte
	copy(out[:], addr[:])
	return out
}
