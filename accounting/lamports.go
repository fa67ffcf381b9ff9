// Package accounting implements the lamport-accounting and
// rent-recovery logic (component C6): conservation of value across
// hops and recovery of reserved storage deposits on completion, per
// spec §4.6.
//
// Arithmetic is carried out with github.com/holiman/uint256 rather
// than raw uint64 so that a misconfigured fee/reserve basis-point
// value, or a pathological split count, cannot silently wrap instead
// of surfacing InsufficientLamports/ConservationViolation -- the type
// itself makes unchecked overflow inexpressible rather than relying
// on the caller to remember to check.
package accounting

import (
	"github.com/holiman/uint256"

	"github.com/stealthmix/transfercore/common"
)

// BasisPointsDenominator is the fixed-point denominator fee/reserve
// rates are expressed against (spec §4.6: "amount x fee_bps / 10000").
const BasisPointsDenominator = 10000

// Fees is the result of the once-at-initialize fee/reserve computation
// described in spec §4.6.
type Fees struct {
	TotalFees uint64
	Reserve   uint64
}

// ComputeFees derives total_fees and reserve from amount and the
// configured basis-point rates. Rounding is floor, per spec §4.6; any
// dust from the floor division is absorbed by the last split, not by
// this function.
func ComputeFees(amount uint64, feeBps, reserveBps uint16) (Fees, error) {
	if feeBps > BasisPointsDenominator || reserveBps > BasisPointsDenominator {
		return Fees{}, common.Validation(common.CodeInvalidConfig, "InvalidConfig", "fee_bps/reserve_bps must not exceed 10000")
	}
	if uint32(feeBps)+uint32(reserveBps) > BasisPointsDenominator {
		return Fees{}, common.Validation(common.CodeInvalidConfig, "InvalidConfig", "fee_bps + reserve_bps must not exceed 10000")
	}

	amt := uint256.NewInt(amount)

	fees := new(uint256.Int).Mul(amt, uint256.NewInt(uint64(feeBps)))
	fees.Div(fees, uint256.NewInt(BasisPointsDenominator))

	reserve := new(uint256.Int).Mul(amt, uint256.NewInt(uint64(reserveBps)))
	reserve.Div(reserve, uint256.NewInt(BasisPointsDenominator))

	if !fees.IsUint64() || !reserve.IsUint64() {
		return Fees{}, common.ErrInsufficientLamports
	}

	return Fees{TotalFees: fees.Uint64(), Reserve: reserve.Uint64()}, nil
}

// SplitAllocation is the result of dividing a hop's remaining balance
// across its real splits, with the last split absorbing the floor
// rounding dust so that the sum exactly equals remaining (spec §4.4,
// §4.6).
type SplitAllocation struct {
	PerSplit uint64
	Last     uint64
}

// AllocateSplits computes floor(remaining/remainingReal) per real
// split, with the final real split receiving the rounding remainder.
func AllocateSplits(remaining uint64, remainingReal uint8) (SplitAllocation, error) {
	if remainingReal == 0 {
		return SplitAllocation{}, common.Validation(common.CodeInvalidSplitIndex, "InvalidSplitCount", "remaining real splits must be nonzero")
	}

	r := uint256.NewInt(remaining)
	n := uint256.NewInt(uint64(remainingReal))

	perSplit := new(uint256.Int).Div(r, n)
	consumed := new(uint256.Int).Mul(perSplit, uint256.NewInt(uint64(remainingReal-1)))
	last := new(uint256.Int).Sub(r, consumed)

	if !perSplit.IsUint64() || !last.IsUint64() {
		return SplitAllocation{}, common.ErrInsufficientLamports
	}

	return SplitAllocation{PerSplit: perSplit.Uint64(), Last: last.Uint64()}, nil
}

// CheckConservation verifies that startBalance - endBalance equals the
// sum of amounts paid out plus fees levied, within the single lamport
// of rounding dust the last split absorbs (spec property P5). A
// mismatch beyond that tolerance is ConservationViolation.
func CheckConservation(startBalance, endBalance, paidOut, feesLevied uint64) error {
	start := uint256.NewInt(startBalance)
	end := uint256.NewInt(endBalance)
	if start.Cmp(end) < 0 {
		return common.ErrConservationViolation
	}

	delta := new(uint256.Int).Sub(start, end)

	expected := new(uint256.Int).Add(uint256.NewInt(paidOut), uint256.NewInt(feesLevied))

	diff := new(uint256.Int)
	if delta.Cmp(expected) >= 0 {
		diff.Sub(delta, expected)
	} else {
		diff.Sub(expected, delta)
	}

	if diff.Cmp(uint256.NewInt(1)) > 0 {
		return common.ErrConservationViolation
	}
	return nil
}

// CheckRentExempt verifies that balance never drops below
// rentExemptMinimum (spec §4.6: "No operation may leave a PDA below
// rent_exempt_minimum").
func CheckRentExempt(balance, rentExemptMinimum uint64) error {
	if balance < rentExemptMinimum {
		return common.ErrRentExemptionBreach
	}
	return nil
}

// RecoverableExcess returns the lamports above rentExemptMinimum
// currently held by a fake-split PDA, which must be immediately
// recovered back into the transfer state (spec §4.4, §4.6).
func RecoverableExcess(balance, rentExemptMinimum uint64) uint64 {
	if balance <= rentExemptMinimum {
		return 0
	}
	return balance - rentExemptMinimum
}
