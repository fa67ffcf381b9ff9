package transfer

import (
	"github.com/stealthmix/transfercore/accounting"
	"github.com/stealthmix/transfercore/bloom"
	"github.com/stealthmix/transfercore/common"
	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
)

// SplitResult records what the executor did for one (hop, split) slot,
// returned for observability/testing. It is never logged with the
// PDA's derivation inputs (spec invariant #7) -- only the resulting
// address and the classification.
type SplitResult struct {
	Split   uint8
	Address pda.Address
	IsReal  bool
	Moved   uint64
}

// ExecuteHopInput bundles the per-hop arguments to the split executor,
// matching the `execute_hop` entry point's args+accounts in spec §6.1.
type ExecuteHopInput struct {
	Hop               uint8
	AggregateProof    proof.AggregateProof
	RangeProof        proof.RangeProof
	SplitAccounts     []pda.Address // candidate accounts supplied by the caller, one per split, ascending split_index
	AggregateVerifier proof.AggregateVerifier
	RangeVerifier     proof.RangeVerifier
}

// executeHopSplits is the C4 split executor: it verifies the hop's
// proof, then walks every split in ascending order, classifying it via
// the C1/C2 dual-path validator and, if it is not yet rent-exempt,
// funding it with rent_exempt_minimum lamports from outside the
// escrow, recovering only any pre-existing excess back into the
// transfer-state account
// (spec §4.6 third invariant: "every PDA visited during a hop ends at
// exactly rent_exempt_minimum"). Real and fake splits are visited
// identically -- an observer watching lamport flows during a hop
// cannot distinguish them -- so the actual payout computed by
// AllocateSplits is surfaced on SplitResult for observability only;
// settlement happens once, at `finalize`, out of the pool retained in
// the transfer-state account (spec §4.4, §4.5). Because none of this
// draws on the escrowed balance, the transfer-state account's own
// balance is unchanged by a hop that moves no real value (spec §4.6
// invariant #2).

func executeHopSplits(programID pda.ProgramID, state *State, ledger *Ledger, stateAddr pda.Address, in ExecuteHopInput) ([]SplitResult, error) {
	total := state.Config.TotalSplits()
	if len(in.SplitAccounts) < int(total) {
		return nil, common.ErrAccountListTooSmall
	}

	public := proof.AggregatePublicInputs{
		Hop:              in.Hop,
		BloomFilter:      state.FakeBloom,
		PriorCommitments: state.Commitments,
		SplitCommitments: state.Commitments,
	}
	if err := proof.VerifyAggregateEnvelope(in.AggregateVerifier, in.AggregateProof, state.Challenge, public); err != nil {
		return nil, err
	}
	if err := proof.VerifyRangeEnvelope(in.RangeVerifier, in.RangeProof, state.Commitments, state.Challenge); err != nil {
		return nil, err
	}

	classifications := make([]bool, total) // true == real
	realCount := 0
	for split := uint8(0); split < total; split++ {
		candidate := in.SplitAccounts[split]
		if err := pda.ValidateStealthPDA(programID, state.Seed, in.Hop, split, state.FakeBloom, candidate); err != nil {
			return nil, err
		}

		derived := pda.Derive(programID, state.Seed, in.Hop, split)
		isReal := derived == candidate && !bloom.Contains(state.FakeBloom, in.Hop, split)
		classifications[split] = isReal
		if isReal {
			realCount++
		}
	}

	var alloc accounting.SplitAllocation
	if realCount > 0 {
		var err error
		alloc, err = accounting.AllocateSplits(state.RemainingBalance(), uint8(realCount))
		if err != nil {
			return nil, err
		}
	}

	results := make([]SplitResult, total)
	realSeen := 0
	for split := uint8(0); split < total; split++ {
		addr := in.SplitAccounts[split]
		isReal := classifications[split]

		var allocated uint64
		if isReal {
			realSeen++
			allocated = alloc.PerSplit
			if realSeen == realCount {
				allocated = alloc.Last
			}
		}

		// Rent for a split PDA that is not yet rent-exempt is funded
		// externally by the call's fee payer, the way account creation
		// works on a real ledger -- it is never drawn from the escrowed
		// transfer-state balance, and an account revisited at a later hop
		// already holds its rent and is not funded again, so a hop that
		// moves no real value leaves that balance untouched (spec §4.6
		// invariant #2).
		if ledger.Balance(toKey(addr)) < RentExemptMinimum {
			ledger.Credit(toKey(addr), RentExemptMinimum)
		}

		excess := accounting.RecoverableExcess(ledger.Balance(toKey(addr)), RentExemptMinimum)
		if excess > 0 {
			if err := ledger.Move(toKey(addr), stateAddr, excess); err != nil {
				return nil, err
			}
		}

		if err := accounting.CheckRentExempt(ledger.Balance(toKey(addr)), RentExemptMinimum); err != nil {
			return nil, err
		}

		results[split] = SplitResult{Split: split, Address: addr, IsReal: isReal, Moved: allocated}
	}

	return results, nil
}
