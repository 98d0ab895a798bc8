// Package storetest holds the behaviour suite every registration store must
// pass, so the in-memory and SQL backends stay interchangeable.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"teamreg/internal/registration/models"
	id "teamreg/pkg/domain"
	"teamreg/pkg/platform/sentinel"
)

// Store is the surface under test.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	EmailExists(ctx context.Context, email string) (bool, error)
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ListAll(ctx context.Context) ([]*models.Registration, error)
	List(ctx context.Context, offset, limit int) ([]*models.Registration, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Suite runs against a fresh store per test. NewStore must return an empty store.
type Suite struct {
	suite.Suite
	NewStore func() Store

	ctx   context.Context
	store Store
	base  time.Time
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
	s.base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

// NewRegistration builds a valid two-member registration registered at when.
func NewRegistration(email string, when time.Time, extra ...models.TeamMember) *models.Registration {
	members := append([]models.TeamMember{
		{Name: "John Smith", Level: models.LevelBachelor, Order: 1},
		{Name: "Jane Doe", Level: models.LevelMaster, Order: 2},
	}, extra...)
	reg, err := models.NewRegistration(id.NewRegistrationID(), email,
		models.FieldHealth, models.CategoryStudentResearch, true, members, when)
	if err != nil {
		panic(err)
	}
	return reg
}

func (s *Suite) TestCreateAndFind() {
	reg := NewRegistration("a@b.edu", s.base, models.TeamMember{Name: "Ann Lee", Level: models.LevelPhD, Order: 4})
	s.Require().NoError(s.store.Create(s.ctx, reg))

	got, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ID, got.ID)
	s.Equal("a@b.edu", got.TeamLeaderEmail)
	s.Equal(models.FieldHealth, got.ProjectField)
	s.Equal(models.CategoryStudentResearch, got.ProjectCategory)
	s.True(got.AcceptTerms)
	s.True(reg.RegistrationDate.Equal(got.RegistrationDate))
	s.True(reg.UpdatedAt.Equal(got.UpdatedAt))
	s.Equal(3, got.MembersCount())
	s.Equal(reg.Members, got.Members)
}

func (s *Suite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.NewRegistrationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestEmailExists() {
	s.Require().NoError(s.store.Create(s.ctx, NewRegistration("a@b.edu", s.base)))

	exists, err := s.store.EmailExists(s.ctx, "a@b.edu")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.EmailExists(s.ctx, "A@b.edu")
	s.Require().NoError(err)
	s.False(exists, "email match is case-sensitive")
}

func (s *Suite) TestDuplicateEmailLeavesStateUnchanged() {
	first := NewRegistration("a@b.edu", s.base)
	s.Require().NoError(s.store.Create(s.ctx, first))

	dup := NewRegistration("a@b.edu", s.base.Add(time.Minute))
	err := s.store.Create(s.ctx, dup)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.FindByID(s.ctx, dup.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *Suite) TestListAllNewestFirst() {
	older := NewRegistration("old@b.edu", s.base)
	newer := NewRegistration("new@b.edu", s.base.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("new@b.edu", all[0].TeamLeaderEmail)
	s.Equal("old@b.edu", all[1].TeamLeaderEmail)
	for _, reg := range all {
		s.Equal(2, reg.MembersCount())
		s.Equal(1, reg.Members[0].Order)
		s.Equal(2, reg.Members[1].Order)
	}
}

func (s *Suite) TestListAllEmpty() {
	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *Suite) TestListPages() {
	for i := range 12 {
		reg := NewRegistration(fmt.Sprintf("t%02d@b.edu", i), s.base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Create(s.ctx, reg))
	}

	first, err := s.store.List(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(first, 10)
	s.Equal("t11@b.edu", first[0].TeamLeaderEmail)
	s.Equal(2, first[0].MembersCount())

	second, err := s.store.List(s.ctx, 10, 10)
	s.Require().NoError(err)
	s.Require().Len(second, 2)
	s.Equal("t00@b.edu", second[1].TeamLeaderEmail)

	beyond, err := s.store.List(s.ctx, 20, 10)
	s.Require().NoError(err)
	s.Empty(beyond)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(12, n)
}

func (s *Suite) TestDeleteAll() {
	s.Require().NoError(s.store.Create(s.ctx, NewRegistration("a@b.edu", s.base)))
	s.Require().NoError(s.store.Create(s.ctx, NewRegistration("b@b.edu", s.base)))

	removed, err := s.store.DeleteAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, removed)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	// The email is free again after clearing.
	s.NoError(s.store.Create(s.ctx, NewRegistration("a@b.edu", s.base)))
}

// TestConcurrentSameEmail verifies that racing creates with one email yield
// exactly one success.
func (s *Suite) TestConcurrentSameEmail() {
	const goroutines = 20
	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
		others     atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, NewRegistration("race@b.edu", s.base))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				duplicates.Add(1)
			default:
				others.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), duplicates.Load())
	s.Zero(others.Load())

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}
