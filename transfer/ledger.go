package transfer

import (
	"sync"

	"github.com/stealthmix/transfercore/common"
)

// RentExemptMinimum is the ledger runtime's minimum lamport balance
// for an account to persist (spec GLOSSARY "Rent exempt"). The value
// mirrors a typical Solana rent-exempt minimum for a zero-data
// account and is treated as a runtime-supplied constant by the core.
const RentExemptMinimum uint64 = 890_880

// Ledger is a minimal in-memory stand-in for the host ledger's account
// balances. The real runtime owns lamport accounting natively; this
// type exists so the state machine and split executor -- which only
// ever *call into* the runtime's transfer primitive -- have something
// concrete to call in tests and in an off-chain development harness.
type Ledger struct {
	mutex    sync.Mutex
	balances map[[32]byte]uint64
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[[32]byte]uint64)}
}

// Balance returns the current lamport balance of addr.
func (l *Ledger) Balance(addr [32]byte) uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.balances[addr]
}

// Credit adds amount to addr's balance.
func (l *Ledger) Credit(addr [32]byte, amount uint64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.balances[addr] += amount
}

// Debit subtracts amount from addr's balance, failing with
// InsufficientLamports rather than wrapping if the account can't
// cover it.
func (l *Ledger) Debit(addr [32]byte, amount uint64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.balances[addr] < amount {
		return common.ErrInsufficientLamports
	}
	l.balances[addr] -= amount
	return nil
}

// Move transfers amount lamports from `from` to `to` atomically from
// the caller's perspective.
func (l *Ledger) Move(from, to [32]byte, amount uint64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.balances[from] < amount {
		return common.ErrInsufficientLamports
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// snapshot captures every balance the ledger currently holds. The real
// runtime rolls an entire invocation's account mutations back when it
// aborts; this stands in for that so a hop that fails partway through
// -- a proof check or a conservation check after some splits have
// already moved -- can be undone in full (spec §4.5 failure semantics:
// "abort the call and leave the state unchanged").
func (l *Ledger) snapshot() map[[32]byte]uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	out := make(map[[32]byte]uint64, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out
}

// restore replaces the ledger's balances with a previously captured
// snapshot.
func (l *Ledger) restore(snap map[[32]byte]uint64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.balances = snap
}
