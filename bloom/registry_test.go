package bloom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := Config{NumHops: 4, RealSplits: 4, FakeSplits: 8}
	var challenge [32]byte
	challenge[0] = 0x11

	a := Generate(cfg, challenge)
	b := Generate(cfg, challenge)
	assert.Equal(t, a, b)
}

func TestGenerateDiffersAcrossChallenges(t *testing.T) {
	cfg := Config{NumHops: 4, RealSplits: 4, FakeSplits: 8}
	var c1, c2 [32]byte
	c1[0] = 0x11
	c2[0] = 0x22

	assert.NotEqual(t, Generate(cfg, c1), Generate(cfg, c2))
}

func TestSetAndClearRoundtrip(t *testing.T) {
	var filter Filter
	assert.False(t, Contains(filter, 3, 5))

	set(&filter, 3, 5)
	assert.True(t, Contains(filter, 3, 5))

	clear(&filter, 3, 5)
	assert.False(t, Contains(filter, 3, 5))
}

func TestRepairAndUnmark(t *testing.T) {
	var filter Filter
	Repair(&filter, 1, 2)
	assert.True(t, Contains(filter, 1, 2))

	Unmark(&filter, 1, 2)
	assert.False(t, Contains(filter, 1, 2))
}

// TestPositionWrapsModulo128 exercises the intentional mod-128
// collision the decoy registry accepts by design: two distinct
// (hop, split) pairs 128 apart in the packed (hop<<8|split) space
// must land on the identical bit.
func TestPositionWrapsModulo128(t *testing.T) {
	byteA, bitA := position(0, 0)
	byteB, bitB := position(0, 128)
	assert.Equal(t, byteA, byteB)
	assert.Equal(t, bitA, bitB)
}

func TestContainsIsConstantWidthLookup(t *testing.T) {
	var filter Filter
	set(&filter, 0, 0)
	set(&filter, 15, 127%16)

	for hop := uint8(0); hop < 16; hop++ {
		for split := uint8(0); split < 16; split++ {
			_ = Contains(filter, hop, split)
		}
	}
}
