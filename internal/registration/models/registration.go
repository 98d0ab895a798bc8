package models

import (
	"fmt"
	"slices"
	"time"

	id "teamreg/pkg/domain"
	dErrors "teamreg/pkg/domain-errors"
)

const (
	MinMembers = 2
	MaxMembers = 5
)

// TeamMember is one person on a team. Order 1 is the team leader.
type TeamMember struct {
	ID    id.MemberID `json:"id"`
	Name  string      `json:"name"`
	Level Level       `json:"level"`
	Order int         `json:"order"`
}

// Registration is the aggregate root for a team's competition entry.
//
// Invariants:
//   - TeamLeaderEmail is non-empty and unique across registrations (enforced by storage)
//   - Members holds 2..5 entries with distinct Order values in 1..5
//   - Orders 1 and 2 are always present
//   - ProjectField and ProjectCategory are valid enumeration values
//   - AcceptTerms is true
//   - RegistrationDate is immutable after construction
type Registration struct {
	ID               id.RegistrationID `json:"id"`
	TeamLeaderEmail  string            `json:"team_leader_email"`
	ProjectField     ProjectField      `json:"project_field"`
	ProjectCategory  ProjectCategory   `json:"project_category"`
	AcceptTerms      bool              `json:"accept_terms"`
	RegistrationDate time.Time         `json:"registration_date"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Members          []TeamMember      `json:"members"`
}

// NewRegistration builds a registration, sorting members by order. Members
// without an ID are assigned one.
func NewRegistration(
	registrationID id.RegistrationID,
	email string,
	field ProjectField,
	category ProjectCategory,
	acceptTerms bool,
	members []TeamMember,
	now time.Time,
) (*Registration, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team leader email cannot be empty")
	}
	if !field.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid project field")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid project category")
	}
	if !acceptTerms {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "terms must be accepted")
	}
	if err := checkMembers(members); err != nil {
		return nil, err
	}

	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b TeamMember) int { return a.Order - b.Order })
	for i := range sorted {
		if sorted[i].ID.IsNil() {
			sorted[i].ID = id.NewMemberID()
		}
	}

	return &Registration{
		ID:               registrationID,
		TeamLeaderEmail:  email,
		ProjectField:     field,
		ProjectCategory:  category,
		AcceptTerms:      true,
		RegistrationDate: now,
		UpdatedAt:        now,
		Members:          sorted,
	}, nil
}

func checkMembers(members []TeamMember) error {
	if len(members) < MinMembers || len(members) > MaxMembers {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("registration needs between %d and %d members", MinMembers, MaxMembers))
	}
	seen := make(map[int]bool, len(members))
	for _, m := range members {
		if m.Order < 1 || m.Order > MaxMembers {
			return dErrors.New(dErrors.CodeInvariantViolation, "member order out of range")
		}
		if seen[m.Order] {
			return dErrors.New(dErrors.CodeInvariantViolation, "duplicate member order")
		}
		if m.Name == "" {
			return dErrors.New(dErrors.CodeInvariantViolation, "member name cannot be empty")
		}
		if !m.Level.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "invalid member level")
		}
		seen[m.Order] = true
	}
	if !seen[1] || !seen[2] {
		return dErrors.New(dErrors.CodeInvariantViolation, "members 1 and 2 are required")
	}
	return nil
}

// Leader returns the member with order 1.
func (r *Registration) Leader() (TeamMember, bool) {
	for _, m := range r.Members {
		if m.Order == 1 {
			return m, true
		}
	}
	return TeamMember{}, false
}

// MembersCount mirrors the number of linked members.
func (r *Registration) MembersCount() int {
	return len(r.Members)
}

// String identifies a registration in logs and admin listings.
func (r *Registration) String() string {
	return fmt.Sprintf("Registration %s - %s", r.ID, r.TeamLeaderEmail)
}
