package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"teamreg/internal/audit"
	"teamreg/internal/platform/tracing"
	"teamreg/internal/registration/export"
	"teamreg/internal/registration/models"
	"teamreg/internal/registration/validation"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/sentinel"
)

// PageSize is the number of registrations per admin listing page.
const PageSize = 10

// Page is one slice of the admin listing, newest first.
type Page struct {
	Registrations []*models.Registration
	Page          int
	PageSize      int
	Total         int
	TotalPages    int
}

func (p *Page) HasPrev() bool { return p.Page > 1 }
func (p *Page) HasNext() bool { return p.Page < p.TotalPages }

// ListRegistrations returns a page of registrations. Pages below 1 become 1
// and pages past the end clamp to the last page.
func (s *Service) ListRegistrations(ctx context.Context, page int) (*Page, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		s.storageFailure(ctx, "count", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}
	totalPages := max(1, (total+PageSize-1)/PageSize)
	page = min(max(page, 1), totalPages)

	regs, err := s.store.List(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		s.storageFailure(ctx, "list", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return &Page{
		Registrations: regs,
		Page:          page,
		PageSize:      PageSize,
		Total:         total,
		TotalPages:    totalPages,
	}, nil
}

func (s *Service) GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.store.FindByID(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		s.storageFailure(ctx, "find", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}
	return reg, nil
}

// ExportAll renders every registration as CSV, newest first.
func (s *Service) ExportAll(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteExport(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteExport streams the CSV export to w.
func (s *Service) WriteExport(ctx context.Context, w io.Writer) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registration.export")
	defer span.End()

	regs, err := s.store.ListAll(ctx)
	if err != nil {
		s.storageFailure(ctx, "list_all", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrations")
	}
	if err := export.Write(w, regs); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}

	span.SetAttributes(attribute.Int(tracing.AttrExportRows, len(regs)))
	if s.metrics != nil {
		s.metrics.ObserveExport(start, len(regs))
	}
	s.logAudit(ctx, audit.Event{
		Action: audit.ActionRegistrationsExport,
		Count:  len(regs),
	}, "rows", len(regs))
	return nil
}

// ClearAll deletes every registration and member. Administrative only.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	var removed int
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.store.DeleteAll(txCtx)
		removed = n
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return 0, err
		}
		s.storageFailure(ctx, "delete_all", err)
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear registrations")
	}
	s.logAudit(ctx, audit.Event{
		Action: audit.ActionRegistrationsCleared,
		Count:  removed,
	}, "removed", removed)
	return removed, nil
}

// SeedFailure describes a seed entry that did not validate.
type SeedFailure struct {
	Index  int
	Email  string
	Errors validation.Errors
}

// SeedResult summarises a Seed run.
type SeedResult struct {
	Created int
	Skipped int
	Invalid []SeedFailure
}

// Seed registers demo data through the normal workflow. Entries whose email
// already exists are skipped; invalid entries are reported and skipped.
func (s *Service) Seed(ctx context.Context, entries []validation.RawSubmission) (*SeedResult, error) {
	result := &SeedResult{}
	for i, raw := range entries {
		_, verrs, err := s.Register(ctx, raw)
		switch {
		case err != nil && dErrors.HasCode(err, dErrors.CodeConflict):
			result.Skipped++
		case err != nil:
			return result, err
		case verrs.HasCode(validation.CodeDuplicate) && len(verrs) == 1:
			result.Skipped++
		case len(verrs) > 0:
			result.Invalid = append(result.Invalid, SeedFailure{Index: i, Email: raw.Email, Errors: verrs})
		default:
			result.Created++
		}
	}
	return result, nil
}
