package validators

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/userhub/accounts/internal/errors"
)

// FieldError describes one failing rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result is the outcome of validating a payload. Errors is empty when Valid.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Values holds the raw string form of each submitted field. A missing key and
// an empty string are both treated as "not provided".
type Values map[string]string

// Rule checks a single field value.
type Rule interface {
	// Name identifies the rule in FieldError.Rule
	Name() string

	// Check returns an empty string when value passes, otherwise a message
	Check(value string) string
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type ruleFunc struct {
	name  string
	check func(string) string
}

func (r ruleFunc) Name() string              { return r.name }
func (r ruleFunc) Check(value string) string { return r.check(value) }

type requiredRule struct{}

func (requiredRule) Name() string { return "required" }

func (requiredRule) Check(value string) string {
	if strings.TrimSpace(value) == "" {
		return "is required"
	}
	return ""
}

// Required fails on missing or blank values. Every other rule skips values
// that were not provided.
func Required() Rule { return requiredRule{} }

func Email() Rule {
	return ruleFunc{name: "email", check: func(v string) string {
		if !emailRegex.MatchString(strings.TrimSpace(v)) {
			return "must be a valid email"
		}
		return ""
	}}
}

// MinLen and MaxLen count characters, not bytes.
func MinLen(n int) Rule {
	return ruleFunc{name: "min", check: func(v string) string {
		if utf8.RuneCountInString(v) < n {
			return fmt.Sprintf("length must be at least %d characters long", n)
		}
		return ""
	}}
}

func MaxLen(n int) Rule {
	return ruleFunc{name: "max", check: func(v string) string {
		if utf8.RuneCountInString(v) > n {
			return fmt.Sprintf("length must be less than or equal to %d characters long", n)
		}
		return ""
	}}
}

// MaxBytes bounds the encoded size, e.g. the 72-byte bcrypt input limit.
func MaxBytes(n int) Rule {
	return ruleFunc{name: "maxBytes", check: func(v string) string {
		if len(v) > n {
			return fmt.Sprintf("must be at most %d bytes", n)
		}
		return ""
	}}
}

// Date accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func Date() Rule {
	return ruleFunc{name: "date", check: func(v string) string {
		if _, err := ParseDate(v); err != nil {
			return "must be a valid date"
		}
		return ""
	}}
}

func Integer() Rule {
	return ruleFunc{name: "integer", check: func(v string) string {
		if _, err := strconv.Atoi(v); err != nil {
			return "must be an integer"
		}
		return ""
	}}
}

// ParseDate parses the formats accepted by Date and truncates to the day.
func ParseDate(v string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// OptionalDate parses an already validated date, returning nil when empty.
func OptionalDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return nil
	}
	return &t
}

type field struct {
	name  string
	rules []Rule
}

// Schema is an ordered set of field rules.
type Schema struct {
	fields []field
}

func NewSchema() *Schema {
	return &Schema{}
}

// Field registers rules for name. Rules run in order and stop at the first
// failure for that field.
func (s *Schema) Field(name string, rules ...Rule) *Schema {
	s.fields = append(s.fields, field{name: name, rules: rules})
	return s
}

// Validate checks every registered field and collects all failures.
func (s *Schema) Validate(values Values) Result {
	var errs []FieldError

	for _, f := range s.fields {
		value, ok := values[f.name]
		provided := ok && value != ""

		for _, rule := range f.rules {
			if _, isRequired := rule.(requiredRule); !isRequired && !provided {
				continue
			}
			if msg := rule.Check(value); msg != "" {
				errs = append(errs, FieldError{
					Field:   f.name,
					Rule:    rule.Name(),
					Message: fmt.Sprintf("%q %s", f.name, msg),
				})
				break
			}
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Check is Validate for handlers: it returns an invalid-parameter error
// carrying the field errors, or nil.
func (s *Schema) Check(values Values) error {
	if result := s.Validate(values); !result.Valid {
		return apperrors.InvalidParameter().WithDetails(result.Errors)
	}
	return nil
}
