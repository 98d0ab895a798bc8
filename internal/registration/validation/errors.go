package validation

import "strings"

// Error codes carried by FieldError.
const (
	CodeRequired       = "required"
	CodeInvalid        = "invalid"
	CodeInvalidCharset = "invalid_charset"
	CodeDuplicate      = "duplicate"
	CodeTooFewMembers  = "too_few_members"
	CodeTooManyMembers = "too_many_members"
	CodeTermsRequired  = "terms_required"
)

// FieldError is one user-correctable problem. Field is empty for general
// (cross-field) errors.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is the ordered set of problems found in one submission.
type Errors []FieldError

func (e Errors) Empty() bool {
	return len(e) == 0
}

// Fields groups field-scoped messages by field name.
func (e Errors) Fields() map[string][]string {
	out := make(map[string][]string)
	for _, fe := range e {
		if fe.Field == "" {
			continue
		}
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// General returns messages that are not tied to a single field.
func (e Errors) General() []string {
	var out []string
	for _, fe := range e {
		if fe.Field == "" {
			out = append(out, fe.Message)
		}
	}
	return out
}

// Messages returns every message in rule order.
func (e Errors) Messages() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Message)
	}
	return out
}

func (e Errors) HasField(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (e Errors) HasCode(code string) bool {
	for _, fe := range e {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// String joins messages for logs.
func (e Errors) String() string {
	return strings.Join(e.Messages(), "; ")
}

func (e *Errors) add(field, code, message string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: message})
}
