package transfer

import (
	"sync"

	uuid "github.com/kthomas/go.uuid"

	"github.com/stealthmix/transfercore/common"
)

// fakeStore is an in-memory TransferStore used by the test suite so
// the state machine can be exercised without a live database
// connection, mirroring what *Store does against postgres.
type fakeStore struct {
	mutex sync.Mutex
	byID  map[uuid.UUID]*State
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[uuid.UUID]*State)}
}

func cloneState(s *State) *State {
	c := *s
	c.AdditionalRecipients = append([][32]byte(nil), s.AdditionalRecipients...)
	return &c
}

func (f *fakeStore) Create(id uuid.UUID, state *State) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, exists := f.byID[id]; exists {
		return common.Validation(common.CodeInvalidConfig, "CreateFailed", "id already exists")
	}
	f.byID[id] = cloneState(state)
	return nil
}

func (f *fakeStore) Get(id uuid.UUID) (*State, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneState(s), nil
}

func (f *fakeStore) GetByOwner(owner [32]byte) (uuid.UUID, *State, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for id, s := range f.byID {
		if s.Owner == owner {
			return id, cloneState(s), nil
		}
	}
	return uuid.UUID{}, nil, nil
}

func (f *fakeStore) Update(id uuid.UUID, state *State) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrTransferNotFound
	}
	f.byID[id] = cloneState(state)
	return nil
}

func (f *fakeStore) Delete(id uuid.UUID) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.byID, id)
	return nil
}
