// Package domain holds identifier types shared across modules. Distinct types
// keep registration and member IDs from being swapped at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "teamreg/pkg/domain-errors"
)

type (
	RegistrationID uuid.UUID
	MemberID       uuid.UUID
)

func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }
func NewMemberID() MemberID             { return MemberID(uuid.New()) }

func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id MemberID) String() string       { return uuid.UUID(id).String() }

func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id MemberID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *MemberID) UnmarshalText(b []byte) error {
	parsed, err := ParseMemberID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRegistrationID parses a non-nil UUID registration identifier.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration id")
	if err != nil {
		return RegistrationID{}, err
	}
	return RegistrationID(u), nil
}

// ParseMemberID parses a non-nil UUID member identifier.
func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s, "member id")
	if err != nil {
		return MemberID{}, err
	}
	return MemberID(u), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
