package accounting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFeesFloorsAndSplits(t *testing.T) {
	fees, err := ComputeFees(1_000_000_000, 200, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), fees.TotalFees)
	assert.Equal(t, uint64(0), fees.Reserve)
}

func TestComputeFeesRejectsOverBudget(t *testing.T) {
	_, err := ComputeFees(1_000_000_000, 6000, 6000)
	assert.Error(t, err)
}

func TestAllocateSplitsLastAbsorbsDust(t *testing.T) {
	alloc, err := AllocateSplits(100, 3)
	assert.NoError(t, err)
	assert.Equal(t, uint64(33), alloc.PerSplit)
	assert.Equal(t, uint64(34), alloc.Last)
	assert.Equal(t, uint64(100), alloc.PerSplit*2+alloc.Last)
}

func TestAllocateSplitsRejectsZeroSplits(t *testing.T) {
	_, err := AllocateSplits(100, 0)
	assert.Error(t, err)
}

func TestCheckConservationAcceptsExactMatch(t *testing.T) {
	err := CheckConservation(1_000_000_000, 0, 980_000_000, 20_000_000)
	assert.NoError(t, err)
}

func TestCheckConservationRejectsShortfall(t *testing.T) {
	err := CheckConservation(1_000_000_000, 0, 900_000_000, 20_000_000)
	assert.Error(t, err)
}

func TestCheckConservationRejectsBalanceIncrease(t *testing.T) {
	err := CheckConservation(100, 200, 0, 0)
	assert.Error(t, err)
}

func TestCheckRentExempt(t *testing.T) {
	assert.NoError(t, CheckRentExempt(890_880, 890_880))
	assert.Error(t, CheckRentExempt(890_879, 890_880))
}

func TestRecoverableExcess(t *testing.T) {
	assert.Equal(t, uint64(0), RecoverableExcess(890_880, 890_880))
	assert.Equal(t, uint64(120), RecoverableExcess(891_000, 890_880))
}
