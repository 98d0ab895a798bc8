// Package validation decides whether a raw submission forms a legal
// registration. Problems are returned as data, never as Go errors; the only
// error return is an operational failure of the uniqueness lookup.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"teamreg/internal/registration/models"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// Whitespace follows Unicode rules: separators (\pZ) plus the control
	// characters Unicode classes as spaces.
	namePattern = regexp.MustCompile("^[a-zA-Z\\s\\pZ\\x{1c}-\\x{1f}\\x{85}\\-\\.'`,]+$")
)

const (
	msgEmailRequired  = "Email address is required"
	msgEmailInvalid   = "Please enter a valid email address using English characters."
	msgEmailDuplicate = "This email is already registered in the system"
	msgTooFew         = "At least 2 team members are required"
	msgTooMany        = "Maximum 5 team members allowed"
	msgFieldRequired  = "Project field is required"
	msgFieldInvalid   = "Project field is invalid"
	msgCatRequired    = "Project category is required"
	msgCatInvalid     = "Project category is invalid"
	msgTerms          = "You must accept the competition rules"
)

// DuplicateEmailMessage is shown on the email field when the address is taken.
const DuplicateEmailMessage = msgEmailDuplicate

// EmailChecker answers whether an email is already registered.
type EmailChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// EmailCheckerFunc adapts a function to EmailChecker.
type EmailCheckerFunc func(ctx context.Context, email string) (bool, error)

func (f EmailCheckerFunc) EmailExists(ctx context.Context, email string) (bool, error) {
	return f(ctx, email)
}

// IsValidEmail reports whether email matches the accepted ASCII form.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidName reports whether a trimmed, non-blank name uses only the
// accepted characters.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Validate applies every rule and accumulates all violations. A nil checker
// skips the uniqueness lookup.
func Validate(ctx context.Context, raw RawSubmission, checker EmailChecker) (*Submission, Errors, error) {
	var errs Errors

	email, err := checkEmail(ctx, raw.Email, checker, &errs)
	if err != nil {
		return nil, nil, err
	}

	members := checkMembers(raw.Members, &errs)

	field := models.ProjectField(strings.TrimSpace(raw.ProjectField))
	switch {
	case field == "":
		errs.add(FieldProjectField, CodeRequired, msgFieldRequired)
	case !field.IsValid():
		errs.add(FieldProjectField, CodeInvalid, msgFieldInvalid)
	}

	category := models.ProjectCategory(strings.TrimSpace(raw.ProjectCategory))
	switch {
	case category == "":
		errs.add(FieldProjectCategory, CodeRequired, msgCatRequired)
	case !category.IsValid():
		errs.add(FieldProjectCategory, CodeInvalid, msgCatInvalid)
	}

	if !raw.AcceptTerms {
		errs.add(FieldAcceptTerms, CodeTermsRequired, msgTerms)
	}

	if !errs.Empty() {
		return nil, errs, nil
	}
	return &Submission{
		Email:           email,
		Members:         members,
		ProjectField:    field,
		ProjectCategory: category,
		AcceptTerms:     true,
	}, nil, nil
}

func checkEmail(ctx context.Context, raw string, checker EmailChecker, errs *Errors) (string, error) {
	email := strings.TrimSpace(raw)
	switch {
	case email == "":
		errs.add(FieldEmail, CodeRequired, msgEmailRequired)
	case !IsValidEmail(email):
		errs.add(FieldEmail, CodeInvalid, msgEmailInvalid)
	case checker != nil:
		exists, err := checker.EmailExists(ctx, email)
		if err != nil {
			return "", fmt.Errorf("check email uniqueness: %w", err)
		}
		if exists {
			errs.add(FieldEmail, CodeDuplicate, msgEmailDuplicate)
		}
	}
	return email, nil
}

// checkMembers runs the slot rules, then the charset rule, then the count
// rule, so messages come out in that order.
func checkMembers(slots []RawMember, errs *Errors) []models.TeamMember {
	var (
		members []models.TeamMember
		named   []int
	)

	for i := 0; i < max(len(slots), RequiredSlots); i++ {
		n := i + 1
		var slot RawMember
		if i < len(slots) {
			slot = slots[i]
		}
		name := strings.TrimSpace(slot.Name)
		levelRaw := strings.TrimSpace(slot.Level)
		level := models.Level(levelRaw)
		required := n <= RequiredSlots

		if name == "" {
			if required {
				errs.add(MemberNameField(n), CodeRequired, fmt.Sprintf("Member %d name is required", n))
				checkLevel(n, levelRaw, level, "", errs)
			}
			continue
		}
		named = append(named, i)

		if required {
			checkLevel(n, levelRaw, level, "", errs)
		} else {
			checkLevel(n, levelRaw, level, " when name is entered", errs)
		}
		members = append(members, models.TeamMember{Name: name, Level: level, Order: n})
	}

	for _, i := range named {
		if !IsValidName(strings.TrimSpace(slots[i].Name)) {
			n := i + 1
			errs.add(MemberNameField(n), CodeInvalidCharset, fmt.Sprintf(
				"Member %d name must contain only English letters, spaces, hyphens, apostrophes, dots, and commas", n))
		}
	}

	switch {
	case len(named) < models.MinMembers:
		errs.add("", CodeTooFewMembers, msgTooFew)
	case len(named) > models.MaxMembers || (len(named) > 0 && named[len(named)-1] >= models.MaxMembers):
		errs.add("", CodeTooManyMembers, msgTooMany)
	}

	return members
}

func checkLevel(n int, raw string, level models.Level, requiredSuffix string, errs *Errors) {
	switch {
	case raw == "":
		errs.add(MemberLevelField(n), CodeRequired, fmt.Sprintf("Member %d academic level is required%s", n, requiredSuffix))
	case !level.IsValid():
		errs.add(MemberLevelField(n), CodeInvalid, fmt.Sprintf("Member %d academic level is invalid", n))
	}
}
