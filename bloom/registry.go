// Package bloom implements the 128-bit decoy registry (component C2):
// a constant-space, constant-time approximate-membership structure
// marking which (hop, split) slots are this transfer's designated
// fakes, per spec §4.2.
//
// This is deliberately NOT a generic k-hash Bloom filter: the bit
// layout is fixed by the spec (position p = (hop<<8)|split, wrapped
// mod 128) so that any two implementations agree bit-for-bit on the
// same (config, challenge). A generic Bloom filter library would pick
// its own hash-to-bit mapping and break that cross-implementation
// agreement, so this package hand-rolls the exact positional map
// instead of pulling one in (see DESIGN.md).
package bloom

import "github.com/consensys/gnark-crypto/hash"

// Size is the byte width of a decoy registry (128 bits).
const Size = 16

// maxProbe bounds hop/split indices considered during generation,
// regardless of configured values -- spec §4.2 overflow guard.
const maxProbe = 32

// Filter is the serialized 128-bit decoy registry. It is always
// exactly Size bytes, little-endian per spec §6.2.
type Filter [Size]byte

// Config mirrors the subset of transfer configuration that shapes the
// filter: how many hops and how many splits of each kind exist.
type Config struct {
	NumHops    uint8
	RealSplits uint8
	FakeSplits uint8
}

// position maps a (hop, split) pair onto the filter's 128-bit space.
// The `% 128` wrap is intentional (spec §4.2): the filter is an
// approximate membership structure, not a ground-truth classifier, so
// collisions between unrelated (hop, split) pairs are an accepted
// property, not a bug.
func position(hop, split uint8) (byteIndex int, bitIndex uint) {
	p := (uint16(hop) << 8) | uint16(split)
	p %= 128
	return int(p >> 3), uint(p & 0x07)
}

// Contains reports whether (hop, split) is marked in filter. O(1),
// branch-free: every call touches exactly one byte and uses a
// shift/mask, so its running time does not depend on the bit's value.
func Contains(filter Filter, hop, split uint8) bool {
	byteIndex, bitIndex := position(hop, split)
	return (filter[byteIndex]>>bitIndex)&0x01 == 1
}

// set marks (hop, split) in filter.
func set(filter *Filter, hop, split uint8) {
	byteIndex, bitIndex := position(hop, split)
	filter[byteIndex] |= 1 << bitIndex
}

// clear unmarks (hop, split) in filter.
func clear(filter *Filter, hop, split uint8) {
	byteIndex, bitIndex := position(hop, split)
	filter[byteIndex] &^= 1 << bitIndex
}

// Generate deterministically derives the decoy registry for one
// transfer from its config and Fiat-Shamir challenge (spec §4.2). It
// is a pure function: identical (config, challenge) pairs always
// produce identical filters, and distinct challenges produce
// independent-looking filters with overwhelming probability because
// the per-position decision is driven by a keyed hash of the
// challenge rather than by position alone.
//
// Hashing uses gnark-crypto's MiMC over BN254 -- the same ZK-friendly
// hash family the Merkle verifier (C3) commits to -- so the filter's
// derivation is grounded in the same primitive the rest of the proof
// surface already depends on, rather than pulling in a second hash
// family for no reason.
func Generate(cfg Config, challenge [32]byte) Filter {
	var filter Filter

	hops := cfg.NumHops
	if hops > maxProbe {
		hops = maxProbe
	}

	splitBound := cfg.RealSplits
	if cfg.FakeSplits > splitBound {
		splitBound = cfg.FakeSplits
	}
	if splitBound > maxProbe {
		splitBound = maxProbe
	}

	h := hash.MIMC_BN254.New()
	h.Write([]byte("decoy-registry"))
	h.Write(challenge[:])
	digest := h.Sum(nil)

	for hop := uint8(0); hop < hops; hop++ {
		for split := uint8(0); split < splitBound; split++ {
			if decoyBit(digest, hop, split) {
				set(&filter, hop, split)
			}
		}
	}

	return filter
}

// decoyBit derives a single pseudo-random decision for (hop, split)
// from the challenge digest by re-hashing the digest together with
// the position, then taking its low bit. This keeps Generate a pure
// function of (digest, hop, split) without needing a PRNG with
// mutable state.
func decoyBit(digest []byte, hop, split uint8) bool {
	h := hash.MIMC_BN254.New()
	h.Write([]byte("decoy-registry"))
	h.Write(digest)
	h.Write([]byte{hop, split})
	sum := h.Sum(nil)
	return len(sum) > 0 && sum[len(sum)-1]&0x01 == 1
}

// Repair flips (hop, split) to the fake side of the registry. Used by
// the `reveal_fake` transition (spec §6.1) once a witness has proven
// the slot was always meant to be a decoy but the generated filter
// missed it due to the mod-128 collision the filter accepts by design.
func Repair(filter *Filter, hop, split uint8) {
	set(filter, hop, split)
}

// Unmark flips (hop, split) back to the real side. Exposed for
// symmetry and tests; the core never calls this directly today.
func Unmark(filter *Filter, hop, split uint8) {
	clear(filter, hop, split)
}
