// Package memory is the in-process registration store used by tests and
// single-node development runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"teamreg/internal/registration/models"
	id "teamreg/pkg/domain"
	"teamreg/pkg/platform/sentinel"
)

// Store keeps registrations keyed by team leader email. The mutex plays the
// role of the SQL unique index: the existence check and insert happen under
// one lock.
type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Registration
	byID    map[id.RegistrationID]*models.Registration
}

func New() *Store {
	return &Store{
		byEmail: make(map[string]*models.Registration),
		byID:    make(map[id.RegistrationID]*models.Registration),
	}
}

func (s *Store) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[reg.TeamLeaderEmail]; ok {
		return sentinel.ErrAlreadyUsed
	}
	stored := clone(reg)
	s.byEmail[reg.TeamLeaderEmail] = stored
	s.byID[reg.ID] = stored
	return nil
}

func (s *Store) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *Store) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.byID[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(reg), nil
}

// ListAll returns every registration, newest first, ties broken by ID.
func (s *Store) ListAll(_ context.Context) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(), nil
}

func (s *Store) List(_ context.Context, offset, limit int) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted()
	if offset >= len(all) {
		return []*models.Registration{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *Store) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byID)
	s.byEmail = make(map[string]*models.Registration)
	s.byID = make(map[id.RegistrationID]*models.Registration)
	return n, nil
}

func (s *Store) sorted() []*models.Registration {
	out := make([]*models.Registration, 0, len(s.byID))
	for _, reg := range s.byID {
		out = append(out, clone(reg))
	}
	slices.SortFunc(out, compareNewestFirst)
	return out
}

// compareNewestFirst orders registrations by date descending, then ID.
func compareNewestFirst(a, b *models.Registration) int {
	if c := b.RegistrationDate.Compare(a.RegistrationDate); c != 0 {
		return c
	}
	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b id.RegistrationID) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func clone(reg *models.Registration) *models.Registration {
	c := *reg
	c.Members = slices.Clone(reg.Members)
	return &c
}
