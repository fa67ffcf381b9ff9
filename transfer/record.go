package transfer

import (
	"time"

	uuid "github.com/kthomas/go.uuid"

	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
)

// record is the gorm-backed persistence shape of a State. It exists
// separately from State because gorm (the teacher's ORM of choice --
// see store/providers/merkletree/store.go) has no native column type
// for a fixed-size byte array; record flattens every fixed array to a
// []byte column the way the teacher flattens srs/Artifacts to []byte
// on Circuit/Prover.
type record struct {
	ID        uuid.UUID `gorm:"primary_key;type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Owner      []byte `gorm:"type:bytea;unique_index"`
	Amount     uint64
	CurrentHop uint8
	Status     string

	Seed        []byte `gorm:"type:bytea"`
	Challenge   []byte `gorm:"type:bytea"`
	Commitments []byte `gorm:"type:bytea"`

	AggregateProof []byte `gorm:"type:bytea"`
	RangeProof     []byte `gorm:"type:bytea"`
	MerkleRoot     []byte `gorm:"type:bytea"`
	FakeBloom      []byte `gorm:"type:bytea"`

	NumHops        uint8
	RealSplits     uint8
	FakeSplits     uint8
	ReserveBps     uint16
	FeeBps         uint16
	CUBudgetPerHop uint32

	BatchCount uint8
	TotalFees  uint64
	Reserve    uint64

	PrimaryRecipient     []byte `gorm:"type:bytea"`
	AdditionalRecipients []byte `gorm:"type:bytea"` // concatenated 32-byte addresses

	Bump          uint8
	LedgerCreated int64
}

// TableName pins the table name so a future column addition via
// migration doesn't accidentally pluralize differently.
func (record) TableName() string {
	return "transfer_states"
}

func toRecord(id uuid.UUID, s *State) *record {
	commitments := make([]byte, 0, CommitmentCount*proof.ChallengeSize)
	for _, c := range s.Commitments {
		commitments = append(commitments, c[:]...)
	}

	additional := make([]byte, 0, len(s.AdditionalRecipients)*pda.Size)
	for _, r := range s.AdditionalRecipients {
		additional = append(additional, r[:]...)
	}

	return &record{
		ID:                   id,
		Owner:                s.Owner[:],
		Amount:               s.Amount,
		CurrentHop:           s.CurrentHop,
		Status:               string(s.Status),
		Seed:                 s.Seed[:],
		Challenge:            s.Challenge[:],
		Commitments:          commitments,
		AggregateProof:       s.AggregateProof[:],
		RangeProof:           s.RangeProof[:],
		MerkleRoot:           s.MerkleRoot[:],
		FakeBloom:            s.FakeBloom[:],
		NumHops:              s.Config.NumHops,
		RealSplits:           s.Config.RealSplits,
		FakeSplits:           s.Config.FakeSplits,
		ReserveBps:           s.Config.ReserveBps,
		FeeBps:               s.Config.FeeBps,
		CUBudgetPerHop:       s.Config.CUBudgetPerHop,
		BatchCount:           s.BatchCount,
		TotalFees:            s.TotalFees,
		Reserve:              s.Reserve,
		PrimaryRecipient:     s.PrimaryRecipient[:],
		AdditionalRecipients: additional,
		Bump:                 s.Bump,
		LedgerCreated:        s.CreatedAt,
	}
}

func fromRecord(r *record) *State {
	s := &State{
		Amount:     r.Amount,
		CurrentHop: r.CurrentHop,
		Status:     Status(r.Status),
		Config: Config{
			NumHops:        r.NumHops,
			RealSplits:     r.RealSplits,
			FakeSplits:     r.FakeSplits,
			ReserveBps:     r.ReserveBps,
			FeeBps:         r.FeeBps,
			CUBudgetPerHop: r.CUBudgetPerHop,
		},
		BatchCount: r.BatchCount,
		TotalFees:  r.TotalFees,
		Reserve:    r.Reserve,
		Bump:       r.Bump,
		CreatedAt:  r.LedgerCreated,
	}

	copy(s.Owner[:], r.Owner)
	copy(s.Seed[:], r.Seed)
	copy(s.Challenge[:], r.Challenge)
	copy(s.AggregateProof[:], r.AggregateProof)
	copy(s.RangeProof[:], r.RangeProof)
	copy(s.MerkleRoot[:], r.MerkleRoot)
	copy(s.FakeBloom[:], r.FakeBloom)
	copy(s.PrimaryRecipient[:], r.PrimaryRecipient)

	for i := 0; i*proof.ChallengeSize < len(r.Commitments) && i < CommitmentCount; i++ {
		copy(s.Commitments[i][:], r.Commitments[i*proof.ChallengeSize:(i+1)*proof.ChallengeSize])
	}

	for i := 0; i*pda.Size < len(r.AdditionalRecipients); i++ {
		var addr [pda.Size]byte
		copy(addr[:], r.AdditionalRecipients[i*pda.Size:(i+1)*pda.Size])
		s.AdditionalRecipients = append(s.AdditionalRecipients, addr)
	}

	return s
}
