package handler

import (
	"time"

	"teamreg/internal/registration/models"
	"teamreg/internal/registration/service"
	"teamreg/internal/registration/validation"
)

// Error codes in submission responses.
const (
	ErrValidationFailed = "validation_failed"
	ErrDuplicateEmail   = "duplicate_email"
)

type RegistrationCreatedResponse struct {
	ID              string `json:"id"`
	TeamLeaderEmail string `json:"team_leader_email"`
	MembersCount    int    `json:"members_count"`
	ProjectField    string `json:"project_field"`
	ProjectCategory string `json:"project_category"`
}

// ValidationFailedResponse lists field errors by field name and general
// (cross-field) errors separately.
type ValidationFailedResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
	Errors []string            `json:"errors"`
}

type EmailCheckRequest struct {
	Email string `json:"email"`
}

type EmailCheckResponse struct {
	Valid  bool   `json:"valid"`
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
}

type MemberResponse struct {
	Name       string `json:"name"`
	Level      string `json:"level"`
	LevelLabel string `json:"level_label"`
	Order      int    `json:"order"`
}

type RegistrationResponse struct {
	ID                   string           `json:"id"`
	TeamLeaderEmail      string           `json:"team_leader_email"`
	ProjectField         string           `json:"project_field"`
	ProjectFieldLabel    string           `json:"project_field_label"`
	ProjectCategory      string           `json:"project_category"`
	ProjectCategoryLabel string           `json:"project_category_label"`
	RegistrationDate     time.Time        `json:"registration_date"`
	MembersCount         int              `json:"members_count"`
	Members              []MemberResponse `json:"members"`
}

type ListResponse struct {
	Registrations []RegistrationResponse `json:"registrations"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
	Total         int                    `json:"total"`
	TotalPages    int                    `json:"total_pages"`
	HasPrev       bool                   `json:"has_prev"`
	HasNext       bool                   `json:"has_next"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

func toCreatedResponse(reg *models.Registration) *RegistrationCreatedResponse {
	return &RegistrationCreatedResponse{
		ID:              reg.ID.String(),
		TeamLeaderEmail: reg.TeamLeaderEmail,
		MembersCount:    reg.MembersCount(),
		ProjectField:    string(reg.ProjectField),
		ProjectCategory: string(reg.ProjectCategory),
	}
}

func toValidationFailed(errs validation.Errors) *ValidationFailedResponse {
	general := errs.General()
	if general == nil {
		general = []string{}
	}
	return &ValidationFailedResponse{
		Error:  ErrValidationFailed,
		Fields: errs.Fields(),
		Errors: general,
	}
}

func toRegistrationResponse(reg *models.Registration) RegistrationResponse {
	members := make([]MemberResponse, 0, len(reg.Members))
	for _, m := range reg.Members {
		members = append(members, MemberResponse{
			Name:       m.Name,
			Level:      string(m.Level),
			LevelLabel: m.Level.Label(),
			Order:      m.Order,
		})
	}
	return RegistrationResponse{
		ID:                   reg.ID.String(),
		TeamLeaderEmail:      reg.TeamLeaderEmail,
		ProjectField:         string(reg.ProjectField),
		ProjectFieldLabel:    reg.ProjectField.Label(),
		ProjectCategory:      string(reg.ProjectCategory),
		ProjectCategoryLabel: reg.ProjectCategory.Label(),
		RegistrationDate:     reg.RegistrationDate,
		MembersCount:         reg.MembersCount(),
		Members:              members,
	}
}

func toListResponse(page *service.Page) *ListResponse {
	regs := make([]RegistrationResponse, 0, len(page.Registrations))
	for _, reg := range page.Registrations {
		regs = append(regs, toRegistrationResponse(reg))
	}
	return &ListResponse{
		Registrations: regs,
		Page:          page.Page,
		PageSize:      page.PageSize,
		Total:         page.Total,
		TotalPages:    page.TotalPages,
		HasPrev:       page.HasPrev(),
		HasNext:       page.HasNext(),
	}
}
