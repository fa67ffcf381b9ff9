package transfer

import (
	mimc "github.com/consensys/gnark-crypto/hash"
	"github.com/holiman/uint256"

	"github.com/stealthmix/transfercore/pda"
)

// allocatePayouts splits total lamports across recipients in
// proportions deterministically derived from the transfer's seed, so
// that two observers of the same seed agree on the split without the
// state machine needing to persist per-recipient weights (spec §4.5
// "divided among the recipient set"). The first recipient absorbs the
// rounding remainder, mirroring the floor/last-absorbs-dust rule
// AllocateSplits already uses for hop splits.
func allocatePayouts(seed pda.Seed, total uint64, recipients [][pda.Size]byte) []uint64 {
	out := make([]uint64, len(recipients))
	if len(recipients) == 0 || total == 0 {
		return out
	}
	if len(recipients) == 1 {
		out[0] = total
		return out
	}

	weights := make([]uint64, len(recipients))
	var weightSum uint64
	for i := range recipients {
		h := mimc.MIMC_BN254.New()
		h.Write([]byte("transfercore-payout-weight"))
		h.Write(seed[:])
		h.Write([]byte{byte(i)})
		digest := h.Sum(nil)

		// low 32 bits of the digest, offset by 1 so no recipient can be
		// weighted to exactly zero.
		w := uint64(digest[len(digest)-4])<<24 | uint64(digest[len(digest)-3])<<16 |
			uint64(digest[len(digest)-2])<<8 | uint64(digest[len(digest)-1])
		weights[i] = w + 1
		weightSum += weights[i]
	}

	totalInt := uint256.NewInt(total)
	sumInt := uint256.NewInt(weightSum)

	var allocated uint64
	for i := 1; i < len(recipients); i++ {
		share := new(uint256.Int).Mul(totalInt, uint256.NewInt(weights[i]))
		share.Div(share, sumInt)

		s := share.Uint64()
		out[i] = s
		allocated += s
	}
	out[0] = total - allocated
	return out
}
