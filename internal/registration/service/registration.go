package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"teamreg/internal/audit"
	"teamreg/internal/platform/tracing"
	"teamreg/internal/registration/models"
	"teamreg/internal/registration/validation"
	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
	"teamreg/pkg/platform/sentinel"
	"teamreg/pkg/requestcontext"
)

// Validate runs every validation rule, using the store for the advisory
// uniqueness lookup. Validation problems come back as data; the error return
// is reserved for lookup failures.
func (s *Service) Validate(ctx context.Context, raw validation.RawSubmission) (*validation.Submission, validation.Errors, error) {
	sub, verrs, err := validation.Validate(ctx, raw, s.store)
	if err != nil {
		s.storageFailure(ctx, "email_exists", err)
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if len(verrs) > 0 && s.metrics != nil {
		for _, fe := range verrs {
			s.metrics.IncrementValidationFailure(fe.Field)
		}
	}
	return sub, verrs, nil
}

// Register validates and, when the submission is clean, commits it. A
// duplicate detected only at commit time is returned as a CodeConflict error.
func (s *Service) Register(ctx context.Context, raw validation.RawSubmission) (*models.Registration, validation.Errors, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveRegister(time.Now())
	}
	ctx, span := s.tracer.Start(ctx, "registration.register")
	defer span.End()

	sub, verrs, err := s.Validate(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, "validation lookup failed")
		return nil, nil, err
	}
	if len(verrs) > 0 {
		span.SetAttributes(attribute.Int(tracing.AttrValidationErrs, len(verrs)))
		s.logger.InfoContext(ctx, "registration rejected",
			"errors", len(verrs),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, verrs, nil
	}

	reg, err := s.CreateRegistration(ctx, sub)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, nil, err
	}
	return reg, nil, nil
}

// CreateRegistration commits a validated submission. Uniqueness is re-checked
// by the store inside the transaction.
func (s *Service) CreateRegistration(ctx context.Context, sub *validation.Submission) (*models.Registration, error) {
	if sub == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "submission is required")
	}
	ctx, span := s.tracer.Start(ctx, "registration.create")
	defer span.End()

	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	reg, err := models.NewRegistration(
		id.NewRegistrationID(),
		sub.Email,
		sub.ProjectField,
		sub.ProjectCategory,
		sub.AcceptTerms,
		sub.Members,
		now,
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String(tracing.AttrRegistrationID, reg.ID.String()),
		attribute.Int(tracing.AttrMembersCount, reg.MembersCount()),
	)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		return s.store.Create(txCtx, reg)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			if s.metrics != nil {
				s.metrics.IncrementDuplicate()
			}
			s.logger.InfoContext(ctx, "duplicate email at commit",
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, validation.DuplicateEmailMessage)
		}
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		span.RecordError(err)
		s.storageFailure(ctx, "create", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logAudit(ctx, audit.Event{
		Action:  audit.ActionRegistrationCreated,
		Subject: reg.ID.String(),
	}, "registration_id", reg.ID.String(), "members_count", reg.MembersCount())
	return reg, nil
}

// CheckEmailAvailable is the advisory pre-submit check. A true result does
// not guarantee the commit will succeed.
func (s *Service) CheckEmailAvailable(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, dErrors.New(dErrors.CodeValidation, "Email is required")
	}
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		s.storageFailure(ctx, "email_exists", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	return !exists, nil
}
