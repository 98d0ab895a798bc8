package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"teamreg/internal/registration/export"
	"teamreg/internal/registration/models"
	"teamreg/internal/registration/service"
	"teamreg/internal/registration/store/memory"
	"teamreg/internal/registration/validation"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/middleware/admin"
	"teamreg/pkg/testutil"
)

const adminToken = "secret-token"

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type HandlerSuite struct {
	suite.Suite
	store  *memory.Store
	svc    *service.Service
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = memory.New()
	svc, err := service.New(s.store)
	s.Require().NoError(err)
	s.svc = svc
	s.router = newRouter(svc)
}

func newRouter(svc Service) http.Handler {
	h := New(svc, slog.Default(), admin.PlainVerifier(adminToken))
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterAdmin(r)
	return r
}

func validForm() url.Values {
	return url.Values{
		"team_leader_email": {"lead@uni.edu"},
		"member1_name":      {"John Smith"},
		"member1_level":     {"bachelor"},
		"member2_name":      {"Jane Doe"},
		"member2_level":     {"master"},
		"project_field":     {"health"},
		"project_category":  {"student_research"},
		"accept_terms":      {"on"},
	}
}

func adminRequest(t *testing.T, method, path string) *http.Request {
	req := testutil.NewRequest(t, method, path)
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	return req
}

func (s *HandlerSuite) seed(n int) []*models.Registration {
	var regs []*models.Registration
	for i := range n {
		ctx := testutil.FixedTimeContext(testTime.Add(time.Duration(i) * time.Minute))
		reg, verrs, err := s.svc.Register(ctx, validation.RawSubmission{
			Email: fmt.Sprintf("lead%02d@uni.edu", i),
			Members: []validation.RawMember{
				{Name: "John Smith", Level: "bachelor"},
				{Name: "Jane Doe", Level: "phd"},
			},
			ProjectField:    "environment",
			ProjectCategory: "science_communication",
			AcceptTerms:     true,
		})
		s.Require().NoError(err)
		s.Require().Empty(verrs)
		regs = append(regs, reg)
	}
	return regs
}

// =============================================================================
// Submission
// =============================================================================

func (s *HandlerSuite) TestRegisterFromForm() {
	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/registrations", validForm()))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[RegistrationCreatedResponse](s.T(), rr)
	s.Equal("lead@uni.edu", resp.TeamLeaderEmail)
	s.Equal(2, resp.MembersCount)
	s.Equal("health", resp.ProjectField)
	s.Equal("student_research", resp.ProjectCategory)
	_, err := id.ParseRegistrationID(resp.ID)
	s.NoError(err)
}

func (s *HandlerSuite) TestRegisterFromJSON() {
	body := map[string]any{
		"team_leader_email": "lead@uni.edu",
		"members": []map[string]string{
			{"name": "John Smith", "level": "bachelor"},
			{"name": "Jane Doe", "level": "master"},
			{"name": "Ann Lee", "level": "phd"},
		},
		"project_field":    "energy",
		"project_category": "prototype",
		"accept_terms":     true,
	}
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/registrations", body))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "members_count", 3.0)
}

func (s *HandlerSuite) TestRegisterValidationFailure() {
	form := validForm()
	form.Set("team_leader_email", "not-an-email")
	form.Set("member2_name", "")
	form.Del("accept_terms")

	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/registrations", form))

	testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	resp := testutil.UnmarshalResponse[ValidationFailedResponse](s.T(), rr)
	s.Equal(ErrValidationFailed, resp.Error)
	s.Contains(resp.Fields, validation.FieldEmail)
	s.Contains(resp.Fields, validation.MemberNameField(2))
	s.Contains(resp.Fields, validation.FieldAcceptTerms)
	s.NotNil(resp.Errors)

	count, err := s.store.Count(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *HandlerSuite) TestRegisterDuplicateEmail() {
	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/registrations", validForm()))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	rr = testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), "/registrations", validForm()))
	testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	resp := testutil.UnmarshalResponse[ValidationFailedResponse](s.T(), rr)
	s.Equal([]string{validation.DuplicateEmailMessage}, resp.Fields[validation.FieldEmail])
}

func (s *HandlerSuite) TestRegisterMalformedJSON() {
	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/registrations", "{not json"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func (s *HandlerSuite) TestRegisterRejectsUnknownJSONFields() {
	rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/registrations", `{"team_leader_email":"a@b.edu","admin":true}`))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

// =============================================================================
// Email check
// =============================================================================

func (s *HandlerSuite) TestValidateEmail() {
	s.seed(1)

	tests := []struct {
		name   string
		body   string
		status int
		want   EmailCheckResponse
	}{
		{"available", `{"email":"new@uni.edu"}`, http.StatusOK, EmailCheckResponse{Valid: true}},
		{"taken", `{"email":"lead00@uni.edu"}`, http.StatusOK, EmailCheckResponse{Exists: true, Error: validation.DuplicateEmailMessage}},
		{"missing", `{}`, http.StatusOK, EmailCheckResponse{Error: "Email is required"}},
		{"malformed", `{email`, http.StatusBadRequest, EmailCheckResponse{Error: "Invalid request"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/validate-email", tt.body))
			testutil.AssertStatus(s.T(), rr, tt.status)
			s.Equal(tt.want, *testutil.UnmarshalResponse[EmailCheckResponse](s.T(), rr))
		})
	}
}

// =============================================================================
// Admin
// =============================================================================

func (s *HandlerSuite) TestAdminTokenRequired() {
	for _, path := range []string{"/admin/registrations", "/admin/export.csv"} {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	}

	req := testutil.NewRequest(s.T(), http.MethodDelete, "/admin/registrations")
	req.Header.Set(admin.HeaderAdminToken, "wrong")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestListPages() {
	s.seed(12)

	rr := testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/registrations?page=2"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
	s.Equal(2, resp.Page)
	s.Equal(12, resp.Total)
	s.Equal(2, resp.TotalPages)
	s.True(resp.HasPrev)
	s.False(resp.HasNext)
	s.Require().Len(resp.Registrations, 2)
	s.Equal("lead01@uni.edu", resp.Registrations[0].TeamLeaderEmail)
	s.Equal("Environment", resp.Registrations[0].ProjectFieldLabel)
}

func (s *HandlerSuite) TestListRejectsNonNumericPage() {
	rr := testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/registrations?page=two"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestGetRegistration() {
	regs := s.seed(1)

	rr := testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/registrations/"+regs[0].ID.String()))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[RegistrationResponse](s.T(), rr)
	s.Equal(regs[0].ID.String(), resp.ID)
	s.Require().Len(resp.Members, 2)
	s.Equal("Graduate Studies (PhD)", resp.Members[1].LevelLabel)

	rr = testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/registrations/"+id.NewRegistrationID().String()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))

	rr = testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/registrations/nope"))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestExportCSV() {
	s.seed(2)

	rr := testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodGet, "/admin/export.csv"))
	testutil.AssertStatusOK(s.T(), rr)
	s.Equal("text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	s.Contains(rr.Header().Get("Content-Disposition"), `filename="registrations.csv"`)

	rows, err := export.Read(bytes.NewReader(testutil.ReadBody(s.T(), rr)))
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("lead01@uni.edu", rows[0].TeamLeaderEmail)
}

func (s *HandlerSuite) TestClearAll() {
	s.seed(3)

	rr := testutil.DoRequest(s.router, adminRequest(s.T(), http.MethodDelete, "/admin/registrations"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "removed", 3.0)

	count, err := s.store.Count(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

// =============================================================================
// Failure mapping
// =============================================================================

type failingService struct {
	Service
	err error
}

func (f failingService) Register(context.Context, validation.RawSubmission) (*models.Registration, validation.Errors, error) {
	return nil, nil, f.err
}

func (f failingService) ExportAll(context.Context) ([]byte, error) {
	return nil, f.err
}

func TestStorageFailureIsOpaque(t *testing.T) {
	router := newRouter(failingService{err: dErrors.Wrap(fmt.Errorf("dial tcp: refused"), dErrors.CodeInternal, "failed to save registration")})

	rr := testutil.DoRequest(router, testutil.NewFormRequest(t, "/registrations", validForm()))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	resp := testutil.UnmarshalErrorResponse(t, rr)
	if resp["error"] != "internal_error" {
		t.Fatalf("expected internal_error, got %q", resp["error"])
	}
	if _, ok := resp["error_description"]; ok {
		t.Fatalf("internal error description leaked: %v", resp)
	}

	req := testutil.NewRequest(t, http.MethodGet, "/admin/export.csv")
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
}

func TestCommitConflictIsDuplicateEmail(t *testing.T) {
	router := newRouter(failingService{err: dErrors.New(dErrors.CodeConflict, validation.DuplicateEmailMessage)})

	rr := testutil.DoRequest(router, testutil.NewFormRequest(t, "/registrations", validForm()))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	resp := testutil.UnmarshalResponse[ValidationFailedResponse](t, rr)
	if resp.Error != ErrDuplicateEmail {
		t.Fatalf("expected %s, got %s", ErrDuplicateEmail, resp.Error)
	}
	if got := resp.Fields[validation.FieldEmail]; len(got) != 1 || got[0] != validation.DuplicateEmailMessage {
		t.Fatalf("unexpected email errors: %v", got)
	}
}

func TestRateLimitGroups(t *testing.T) {
	store := memory.New()
	svc, err := service.New(store)
	if err != nil {
		t.Fatal(err)
	}
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := New(svc, slog.Default(), admin.PlainVerifier(adminToken), WithRateLimits(deny, nil, deny))
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterAdmin(r)

	rr := testutil.DoRequest(r, testutil.NewFormRequest(t, "/registrations", validForm()))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	rr = testutil.DoRequest(r, testutil.NewRequestWithBody(t, http.MethodPost, "/validate-email", `{"email":"a@b.edu"}`))
	testutil.AssertStatusOK(t, rr)

	// limits apply before the admin token check
	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/admin/registrations"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
}
