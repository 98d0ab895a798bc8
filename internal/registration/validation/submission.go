package validation

import (
	"fmt"
	"strconv"
	"strings"

	"teamreg/internal/registration/models"
)

// Form field names.
const (
	FieldEmail           = "team_leader_email"
	FieldProjectField    = "project_field"
	FieldProjectCategory = "project_category"
	FieldAcceptTerms     = "accept_terms"
)

// RequiredSlots is the number of leading member slots that must be filled.
const RequiredSlots = 2

// MemberNameField returns the form field for member n's name (1-based).
func MemberNameField(n int) string { return fmt.Sprintf("member%d_name", n) }

// MemberLevelField returns the form field for member n's level (1-based).
func MemberLevelField(n int) string { return fmt.Sprintf("member%d_level", n) }

// RawMember is a member slot exactly as submitted.
type RawMember struct {
	Name  string `json:"name" yaml:"name"`
	Level string `json:"level" yaml:"level"`
}

// RawSubmission is a registration exactly as submitted. Members[i] is the
// slot with order i+1; blank entries keep their position.
type RawSubmission struct {
	Email           string      `json:"team_leader_email" yaml:"team_leader_email"`
	Members         []RawMember `json:"members" yaml:"members"`
	ProjectField    string      `json:"project_field" yaml:"project_field"`
	ProjectCategory string      `json:"project_category" yaml:"project_category"`
	AcceptTerms     bool        `json:"accept_terms" yaml:"accept_terms"`
}

// Submission is a normalized payload ready for commit.
type Submission struct {
	Email           string
	Members         []models.TeamMember
	ProjectField    models.ProjectField
	ProjectCategory models.ProjectCategory
	AcceptTerms     bool
}

// FromForm reads the flat form layout (member1_name, member1_level, ...).
// Slots 1..5 are always read, as is every higher slot up to the largest one
// present, so oversized teams reach the count rule instead of being dropped.
func FromForm(fields map[string]string) RawSubmission {
	raw := RawSubmission{
		Email:           fields[FieldEmail],
		ProjectField:    fields[FieldProjectField],
		ProjectCategory: fields[FieldProjectCategory],
		AcceptTerms:     IsTruthy(fields[FieldAcceptTerms]),
	}
	last := max(models.MaxMembers, highestMemberSlot(fields))
	for n := 1; n <= last; n++ {
		raw.Members = append(raw.Members, RawMember{
			Name:  fields[MemberNameField(n)],
			Level: fields[MemberLevelField(n)],
		})
	}
	return raw
}

// highestMemberSlot returns the largest n with a memberN_name or memberN_level
// key, or 0.
func highestMemberSlot(fields map[string]string) int {
	highest := 0
	for key := range fields {
		rest, ok := strings.CutPrefix(key, "member")
		if !ok {
			continue
		}
		digits, ok := strings.CutSuffix(rest, "_name")
		if !ok {
			if digits, ok = strings.CutSuffix(rest, "_level"); !ok {
				continue
			}
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n <= 0 || strconv.Itoa(n) != digits {
			continue
		}
		highest = max(highest, n)
	}
	return highest
}

// IsTruthy reports whether a checkbox-style value means "checked".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
