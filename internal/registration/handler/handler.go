package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"teamreg/internal/registration/models"
	"teamreg/internal/registration/service"
	"teamreg/internal/registration/validation"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/httputil"
	"teamreg/pkg/platform/middleware/admin"
	"teamreg/pkg/requestcontext"
)

// Service defines the registration operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, raw validation.RawSubmission) (*models.Registration, validation.Errors, error)
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	ListRegistrations(ctx context.Context, page int) (*service.Page, error)
	GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	ExportAll(ctx context.Context) ([]byte, error)
	ClearAll(ctx context.Context) (int, error)
}

// Handler serves the public submission endpoints and the admin endpoints.
type Handler struct {
	svc         Service
	logger      *slog.Logger
	verify      admin.Verifier
	submitLimit func(http.Handler) http.Handler
	lookupLimit func(http.Handler) http.Handler
	adminLimit  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRateLimits sets per-group middleware for submissions, email lookups
// and admin routes. Nil entries leave that group unlimited.
func WithRateLimits(submit, lookup, adminRoutes func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimit = submit
		h.lookupLimit = lookup
		h.adminLimit = adminRoutes
	}
}

// New creates a registration Handler. verify guards the admin routes.
func New(svc Service, logger *slog.Logger, verify admin.Verifier, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: logger, verify: verify}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func with(r chi.Router, mw func(http.Handler) http.Handler) chi.Router {
	if mw == nil {
		return r
	}
	return r.With(mw)
}

// RegisterPublic mounts the submission endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	with(r, h.submitLimit).Post("/registrations", h.HandleRegister)
	with(r, h.lookupLimit).Post("/validate-email", h.HandleValidateEmail)
}

// RegisterAdmin mounts the operator endpoints behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.adminLimit != nil {
			r.Use(h.adminLimit)
		}
		r.Use(admin.RequireAdminToken(h.verify, h.logger))
		r.Get("/admin/registrations", h.HandleList)
		r.Get("/admin/registrations/{id}", h.HandleGet)
		r.Delete("/admin/registrations", h.HandleClear)
		r.Get("/admin/export.csv", h.HandleExport)
	})
}

// HandleRegister accepts a form post or a JSON body.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw, err := decodeSubmission(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	reg, verrs, err := h.svc.Register(ctx, raw)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			httputil.WriteJSON(w, http.StatusConflict, &ValidationFailedResponse{
				Error:  ErrDuplicateEmail,
				Fields: map[string][]string{validation.FieldEmail: {validation.DuplicateEmailMessage}},
			})
			return
		}
		h.logger.ErrorContext(ctx, "failed to register team",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if len(verrs) > 0 {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, toValidationFailed(verrs))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toCreatedResponse(reg))
}

func decodeSubmission(w http.ResponseWriter, r *http.Request) (validation.RawSubmission, error) {
	var raw validation.RawSubmission
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := httputil.DecodeJSON(w, r, &raw)
		return raw, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return raw, dErrors.New(dErrors.CodeBadRequest, "request body too large")
		}
		return raw, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body")
	}
	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}
	return validation.FromForm(fields), nil
}

// HandleValidateEmail is the advisory uniqueness check used before submit.
func (h *Handler) HandleValidateEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EmailCheckRequest
	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, &EmailCheckResponse{Error: "Invalid request"})
		return
	}

	available, err := h.svc.CheckEmailAvailable(ctx, req.Email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			de, _ := dErrors.As(err)
			httputil.WriteJSON(w, http.StatusOK, &EmailCheckResponse{Error: de.Message})
			return
		}
		h.logger.ErrorContext(ctx, "failed to check email",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := &EmailCheckResponse{Valid: available, Exists: !available}
	if !available {
		resp.Error = validation.DuplicateEmailMessage
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "page must be a number"))
			return
		}
		page = n
	}

	result, err := h.svc.ListRegistrations(ctx, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list registrations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(result))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reg, err := h.svc.GetRegistration(ctx, regID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load registration",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(reg))
}

// HandleExport renders the full CSV export as a download.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := h.svc.ExportAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to export registrations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="registrations.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.svc.ClearAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to clear registrations",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ClearResponse{Removed: removed})
}
