package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no bet has the requested id
	ErrNotFound = errors.New("bet not found")
	// ErrDuplicateID is returned when appending a bet whose id is already taken
	ErrDuplicateID = errors.New("duplicate bet id")
)

// RawFields is a bet as typed by the user, before parsing
type RawFields struct {
	Date   string `json:"date" validate:"required"`
	Event  string `json:"event" validate:"required"`
	Stake  string `json:"stake" validate:"required,numeric"`
	Odds   string `json:"odds" validate:"required,numeric"`
	Result string `json:"result" validate:"omitempty,oneof=win lose pending"`
}

// ValidationError lists the fields that failed validation, keyed by field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return "invalid bet: " + strings.Join(parts, ", ")
}

// Names returns the failed field names in sorted order
func (e *ValidationError) Names() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be a number"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

// ParseFields validates raw user input and converts it into Fields.
// Stake and odds accept a decimal comma. An empty result means pending.
func ParseFields(raw RawFields) (Fields, error) {
	raw = RawFields{
		Date:   strings.TrimSpace(raw.Date),
		Event:  strings.TrimSpace(raw.Event),
		Stake:  normalizeNumber(raw.Stake),
		Odds:   normalizeNumber(raw.Odds),
		Result: strings.ToLower(strings.TrimSpace(raw.Result)),
	}

	verr := &ValidationError{}
	if err := validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return Fields{}, err
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), tagMessage(fe))
		}
	}

	var f Fields
	if _, bad := verr.Fields["date"]; !bad {
		d, err := ParseDate(raw.Date)
		if err != nil {
			verr.add("date", "must be a date (YYYY-MM-DD)")
		}
		f.Date = d
	}
	f.Event = raw.Event
	f.Stake = parsePositive(verr, "stake", raw.Stake)
	f.Odds = parsePositive(verr, "odds", raw.Odds)
	if _, bad := verr.Fields["result"]; !bad {
		f.Result, _ = ParseResult(raw.Result)
	}

	if err := verr.orNil(); err != nil {
		return Fields{}, err
	}
	return f, nil
}

func parsePositive(verr *ValidationError, field, s string) decimal.Decimal {
	if _, bad := verr.Fields[field]; bad {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		verr.add(field, "must be a number")
		return decimal.Zero
	}
	if !d.IsPositive() {
		verr.add(field, "must be greater than 0")
	}
	return d
}

func normalizeNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
}
