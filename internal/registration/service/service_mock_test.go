package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"teamreg/internal/audit"
	"teamreg/internal/registration/models"
	"teamreg/internal/registration/service/mocks"
	"teamreg/internal/registration/validation"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/sentinel"
	"teamreg/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,StoreTx,AuditPublisher

var errStore = errors.New("connection reset")

// ServiceMockSuite injects store and audit failures that the in-memory
// store cannot produce.
type ServiceMockSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	mockAudit *mocks.MockAuditPublisher
	service   *Service
}

func TestServiceMockSuite(t *testing.T) {
	suite.Run(t, new(ServiceMockSuite))
}

func (s *ServiceMockSuite) SetupTest() {
	s.ctx = testutil.FixedTimeContext(testTime)
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	svc, err := New(s.mockStore, WithAuditPublisher(s.mockAudit))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

// =============================================================================
// Register
// =============================================================================
// Justification: the advisory check can pass while a concurrent request
// commits the same email first. Only the store's unique constraint sees it.

func (s *ServiceMockSuite) TestDuplicateAtCommitIsConflict() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), "lead@uni.edu").Return(false, nil)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("insert registration: %w", sentinel.ErrAlreadyUsed))

	reg, verrs, err := s.service.Register(s.ctx, validRaw("lead@uni.edu"))
	s.Nil(reg)
	s.Empty(verrs)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(validation.DuplicateEmailMessage, de.Message)
}

func (s *ServiceMockSuite) TestLookupFailureIsInternal() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, errStore)

	_, verrs, err := s.service.Register(s.ctx, validRaw("lead@uni.edu"))
	s.Empty(verrs)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, errStore)
}

func (s *ServiceMockSuite) TestCreateFailureIsInternal() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, nil)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errStore)

	_, _, err := s.service.Register(s.ctx, validRaw("lead@uni.edu"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestAuditFailureDoesNotFailRegistration() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, nil)
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e audit.Event) error {
			s.Equal(audit.ActionRegistrationCreated, e.Action)
			return audit.ErrBufferFull
		})

	reg, _, err := s.service.Register(s.ctx, validRaw("lead@uni.edu"))
	s.Require().NoError(err)
	s.NotNil(reg)
}

func (s *ServiceMockSuite) TestCommitRunsInsideTx() {
	tx := mocks.NewMockStoreTx(s.ctrl)
	svc, err := New(s.mockStore, WithTx(tx), WithAuditPublisher(s.mockAudit))
	s.Require().NoError(err)

	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, nil)
	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, reg *models.Registration) error {
			s.Equal("lead@uni.edu", reg.TeamLeaderEmail)
			s.False(reg.ID.IsNil())
			return nil
		})
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	_, _, err = svc.Register(s.ctx, validRaw("lead@uni.edu"))
	s.Require().NoError(err)
}

func (s *ServiceMockSuite) TestTxTimeoutPassesThrough() {
	tx := mocks.NewMockStoreTx(s.ctrl)
	svc, err := New(s.mockStore, WithTx(tx))
	s.Require().NoError(err)

	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, nil)
	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeTimeout, "transaction aborted: context cancelled"))

	_, _, err = svc.Register(s.ctx, validRaw("lead@uni.edu"))
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

// =============================================================================
// Admin operations
// =============================================================================

func (s *ServiceMockSuite) TestCheckEmailLookupFailure() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), "a@b.edu").Return(false, errStore)

	_, err := s.service.CheckEmailAvailable(s.ctx, "a@b.edu")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestListCountFailure() {
	s.mockStore.EXPECT().Count(gomock.Any()).Return(0, errStore)

	_, err := s.service.ListRegistrations(s.ctx, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestListUsesOffset() {
	s.mockStore.EXPECT().Count(gomock.Any()).Return(25, nil)
	s.mockStore.EXPECT().List(gomock.Any(), 20, PageSize).Return(nil, nil)

	page, err := s.service.ListRegistrations(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(3, page.TotalPages)
}

func (s *ServiceMockSuite) TestGetFailureIsInternal() {
	s.mockStore.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, errStore)

	_, err := s.service.GetRegistration(s.ctx, id.NewRegistrationID())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestExportLoadFailure() {
	s.mockStore.EXPECT().ListAll(gomock.Any()).Return(nil, errStore)

	var buf bytes.Buffer
	err := s.service.WriteExport(s.ctx, &buf)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Zero(buf.Len())
}

func (s *ServiceMockSuite) TestClearFailureEmitsNoAudit() {
	s.mockStore.EXPECT().DeleteAll(gomock.Any()).Return(0, errStore)

	_, err := s.service.ClearAll(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceMockSuite) TestSeedStopsOnStoreFailure() {
	s.mockStore.EXPECT().EmailExists(gomock.Any(), gomock.Any()).Return(false, errStore)

	result, err := s.service.Seed(s.ctx, []validation.RawSubmission{validRaw("a@b.edu"), validRaw("c@d.edu")})
	s.Require().Error(err)
	s.Zero(result.Created)
}
