package transfer

import (
	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"

	"github.com/stealthmix/transfercore/common"
)

// TransferStore is the persistence surface Machine depends on. *Store
// is the production implementation (gorm-backed); tests substitute an
// in-memory fake so the state machine can be exercised without a live
// database connection.
type TransferStore interface {
	Create(id uuid.UUID, state *State) error
	Get(id uuid.UUID) (*State, error)
	GetByOwner(owner [32]byte) (uuid.UUID, *State, error)
	Update(id uuid.UUID, state *State) error
	Delete(id uuid.UUID) error
}

// Store persists TransferState accounts the way the ledger's account
// database would, so the entry points in machine.go can be exercised
// and tested off-chain. It is deliberately thin: gorm.DB is the
// teacher's own persistence layer (`dbconf.DatabaseConnection()` in
// store/store.go), reused here unmodified.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an existing database connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates/updates the transfer_states table.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&record{}).Error
}

// Create persists a brand-new State keyed by id (a random UUID the
// caller generates). Re-entry into initialize for an owner with an in-flight
// transfer is prevented by the unique index on owner (spec §4.5:
// "rejected until the prior one completes or refunds").
func (s *Store) Create(id uuid.UUID, state *State) error {
	rec := toRecord(id, state)
	if err := s.db.Create(rec).Error; err != nil {
		return common.Validation(common.CodeInvalidConfig, "CreateFailed", err.Error())
	}
	return nil
}

// Get loads a State by id. Returns (nil, nil) if not found -- callers
// use this to implement spec property P7: "reading the TransferState
// PDA yields account not found" after finalize/refund, without
// treating that as an error condition.
func (s *Store) Get(id uuid.UUID) (*State, error) {
	var rec record
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, common.Validation(common.CodeInvalidConfig, "LookupFailed", err.Error())
	}
	return fromRecord(&rec), nil
}

// GetByOwner loads the single in-flight State for an owner, if any.
func (s *Store) GetByOwner(owner [32]byte) (uuid.UUID, *State, error) {
	var rec record
	err := s.db.Where("owner = ?", owner[:]).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return uuid.UUID{}, nil, nil
	}
	if err != nil {
		return uuid.UUID{}, nil, common.Validation(common.CodeInvalidConfig, "LookupFailed", err.Error())
	}
	return rec.ID, fromRecord(&rec), nil
}

// Update persists mutations to an existing State (e.g. after a hop
// advances current_hop, or reveal_fake repairs the bloom filter).
func (s *Store) Update(id uuid.UUID, state *State) error {
	rec := toRecord(id, state)
	return s.db.Model(&record{}).Where("id = ?", id).Updates(rec).Error
}

// Delete removes the TransferState account -- the mechanism by which
// Completed and RefundTriggered are realized (spec §3 invariant #1/#2,
// §4.5): neither terminal status is ever persisted, the row simply
// stops existing.
func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Delete(&record{}, "id = ?", id).Error
}
