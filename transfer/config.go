package transfer

import (
	"github.com/stealthmix/transfercore/accounting"
	"github.com/stealthmix/transfercore/common"
)

// minComputeUnitsPerHop is the conservative floor the core enforces
// for cu_budget_per_hop: one PDA derivation, one bloom check, and one
// aggregate proof verification per split (spec §4.3, §5). The default
// configuration of 48 splits at ~2.5k CU each plus verification
// overhead settles comfortably above this floor.
const minComputeUnitsPerHop = 120_000

// MaxAdditionalRecipients is the number of optional recipients beyond
// the primary one a transfer may name (spec §3 "up to 5 additional
// optional recipients").
const MaxAdditionalRecipients = 5

// MaxSplitsPerHop bounds real_splits+fake_splits at the default
// configuration's 48, matching the `execute_hop` account-set size in
// spec §6.1.
const MaxSplitsPerHop = 48

// Config is the fixed per-transfer parameter set (spec §3 `config`).
type Config struct {
	NumHops        uint8
	RealSplits     uint8
	FakeSplits     uint8
	ReserveBps     uint16
	FeeBps         uint16
	CUBudgetPerHop uint32
}

// Validate enforces the config-sanity floor spec §5 describes plus
// the supplemented checks pulled in from the original source's
// `TransferConfig::validate` (see SPEC_FULL.md): nonzero hop/split
// counts, a fee+reserve rate that cannot exceed 100%, and a compute
// budget sufficient for one hop's worth of derivation and
// verification work.
func (c Config) Validate() error {
	if c.NumHops == 0 {
		return common.Validation(common.CodeInvalidConfig, "InvalidConfig", "num_hops must be nonzero")
	}
	if c.RealSplits == 0 {
		return common.Validation(common.CodeInvalidConfig, "InvalidConfig", "real_splits must be nonzero")
	}
	if c.FakeSplits == 0 {
		return common.Validation(common.CodeInvalidConfig, "InvalidConfig", "fake_splits must be nonzero")
	}
	if int(c.RealSplits)+int(c.FakeSplits) > MaxSplitsPerHop {
		return common.Validation(common.CodeInvalidConfig, "InvalidConfig", "real_splits + fake_splits exceeds the maximum splits per hop")
	}
	if uint32(c.FeeBps)+uint32(c.ReserveBps) > accounting.BasisPointsDenominator {
		return common.Validation(common.CodeInvalidConfig, "InvalidConfig", "fee_bps + reserve_bps must not exceed 10000")
	}
	if c.CUBudgetPerHop < minComputeUnitsPerHop {
		return common.ErrComputeBudgetExhausted
	}
	return nil
}

// TotalSplits returns real_splits + fake_splits for one hop.
func (c Config) TotalSplits() uint8 {
	return c.RealSplits + c.FakeSplits
}
