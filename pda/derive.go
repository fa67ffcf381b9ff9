// Package pda implements the stealth-PDA derivation and dual-path
// validation engine (component C1 of the transfer core).
package pda

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/stealthmix/transfercore/bloom"
	"github.com/stealthmix/transfercore/common"
)

// Size is the byte width of a program id, seed, or derived address.
const Size = 32

// ProgramID identifies the on-ledger program whose address space a
// stealth PDA is derived within.
type ProgramID [Size]byte

// Seed is the 32-byte secret that determines every downstream PDA for
// one transfer. Never logged, never surfaced in an error (invariant #7).
type Seed [Size]byte

// Address is a derived program address.
type Address [Size]byte

const statePDADomain = "transfer"

// pdaMarker is appended to every stealth-PDA derivation so that stealth-PDA and
// state-PDA address spaces can never collide even for identical seed
// material.
const pdaMarker = "StealthPDA"

// Derive produces the deterministic address for one (hop, split) slot.
// It concatenates the 32-byte seed, the hop and split bytes, and the
// program id, then hashes -- per spec §4.1. The function is pure and
// total: it never fails and never logs an input.
func Derive(programID ProgramID, seed Seed, hop, split uint8) Address {
	h := sha256.New()
	h.Write(seed[:])
	h.Write([]byte{hop, split})
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveStateAddress derives the single PDA that owns a given owner's
// in-flight TransferState account, per spec §6.3: `("transfer",
// owner_pubkey)`. Unlike stealth PDAs, the state PDA carries a bump
// seed that is persisted on the account (spec §3 `bump` field), found
// by probing bump values from 255 down until a candidate passes
// isAcceptableStateAddress.
func DeriveStateAddress(programID ProgramID, owner [Size]byte) (Address, uint8) {
	for bump := uint8(255); ; bump-- {
		h := sha256.New()
		h.Write([]byte(statePDADomain))
		h.Write(owner[:])
		h.Write([]byte{bump})
		h.Write(programID[:])

		var candidate Address
		copy(candidate[:], h.Sum(nil))

		if isAcceptableStateAddress(candidate) {
			return candidate, bump
		}
		if bump == 0 {
			// cryptographically unreachable: sha256 output rejects the
			// acceptance predicate for all 256 bump values.
			return candidate, 0
		}
	}
}

// isAcceptableStateAddress stands in for the ledger's off-ledger-space
// check performed during real program-address derivation (e.g.
// rejecting addresses that fall on-curve). The predicate is arbitrary
// but deterministic and total; it exists to keep DeriveStateAddress's
// bump-search loop meaningful without depending on curve arithmetic
// the ledger runtime itself owns.
func isAcceptableStateAddress(addr Address) bool {
	return addr[Size-1]&0x01 == 0
}

// boolToInt converts without its caller branching on the result, so a
// branch-sensitive comparison like ValidateStealthPDA's can fold it
// into a constant-time comparison using plain integer arithmetic
// instead of an if on the bloom-membership result.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ValidateStealthPDA implements the dual-path validator from spec
// §4.1: accept iff the candidate matches the deterministic derivation
// (real-split path) OR the bloom filter marks (hop, split) as a
// designated decoy (fallback path). Both checks are always evaluated
// and combined without a data-dependent branch, so the function's
// running time does not reveal which path (if any) succeeded --
// satisfying spec's "MUST execute in time independent of which branch
// succeeds."
func ValidateStealthPDA(programID ProgramID, seed Seed, hop, split uint8, filter bloom.Filter, candidate Address) error {
	derived := Derive(programID, seed, hop, split)

	cryptoMatch := subtle.ConstantTimeCompare(derived[:], candidate[:])
	bloomMatch := boolToInt(bloom.Contains(filter, hop, split))

	// bitwise OR over {0,1} ints, no branch on either operand.
	if cryptoMatch|bloomMatch == 1 {
		return nil
	}
	return common.ErrInvalidStealthPDA
}
