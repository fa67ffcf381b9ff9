// Package transfer implements the Transfer State Machine (C5) and
// Split Executor (C4): the lifecycle of one transfer from
// initialization through N routing hops to finalize or refund, per
// spec §3-§4.5.
package transfer

import (
	"github.com/stealthmix/transfercore/bloom"
	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
)

// Status is one of the three on-ledger states a TransferState can be
// in. Completed and RefundTriggered are never actually persisted
// (spec §3 invariant #1/#2, §4.5): the account is deleted in the same
// transition that reaches them. The field exists so in-flight code
// can reason about the state a call is transitioning *out of* or
// *into* before the delete happens.
type Status string

const (
	StatusActive           Status = "active"
	StatusCompleted        Status = "completed"
	StatusRefundTriggered  Status = "refund_triggered"
)

// CommitmentCount mirrors proof.CommitmentCount for local readability.
const CommitmentCount = proof.CommitmentCount

// State is one in-flight transfer (spec §3 `TransferState`). Owned
// exclusively by the core; lifetime spans `Initialize` to either
// `Finalize` or `Refund`.
type State struct {
	Owner      [pda.Size]byte
	Amount     uint64
	CurrentHop uint8
	Status     Status

	// Seed determines every downstream stealth PDA. Never logged, never
	// surfaced in an error or serialized response (spec invariant #7).
	Seed pda.Seed

	Challenge   proof.Challenge
	Commitments [CommitmentCount]proof.Commitment

	AggregateProof proof.AggregateProof
	RangeProof     proof.RangeProof
	MerkleRoot     [proof.ChallengeSize]byte
	FakeBloom      bloom.Filter

	Config Config

	// BatchCount MUST equal CurrentHop at all times (spec §3 invariant).
	BatchCount uint8

	TotalFees uint64
	Reserve   uint64

	PrimaryRecipient     [pda.Size]byte
	AdditionalRecipients [][pda.Size]byte

	Bump uint8

	// CreatedAt is the ledger's monotonic clock reading at creation,
	// used for refund eligibility (spec §3 `created_at`).
	CreatedAt int64
}

// Recipients returns the primary recipient followed by any additional
// ones, in order -- the set finalize distributes value across.
func (s *State) Recipients() [][pda.Size]byte {
	out := make([][pda.Size]byte, 0, 1+len(s.AdditionalRecipients))
	out = append(out, s.PrimaryRecipient)
	out = append(out, s.AdditionalRecipients...)
	return out
}

// RemainingBalance is amount - total_fees: the pool finalize pays out
// to recipients and the executor divides across real splits. It is not
// the state account's ledger balance: that account holds the full
// amount until finalize, which is when total_fees move to the
// treasury. It does not include rent_exempt_minimum either, since that
// is a property of the ledger account, not of the transfer. Reserve is
// not added on top: it is a slice of amount earmarked to survive every
// hop untouched, not an additional deposit (spec §4.6 "reserve... is
// held aside and returned to the recipient at finalize").
func (s *State) RemainingBalance() uint64 {
	return s.Amount - s.TotalFees
}
