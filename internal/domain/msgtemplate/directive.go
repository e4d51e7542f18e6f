package msgtemplate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DirectiveKind selects the transformation applied to a field before substitution.
type DirectiveKind int

const (
	DirectiveDate DirectiveKind = iota + 1
	DirectiveRound
)

// maxRoundDigits bounds round-N; float64 carries no more meaningful decimals.
const maxRoundDigits = 15

var (
	ErrMalformedDirective = errors.New("malformed format directive")
	ErrUnparsableValue    = errors.New("value cannot be formatted")
)

// Directive is a parsed "date" or "round-N" instruction.
type Directive struct {
	Kind   DirectiveKind
	Digits int
}

// Directives maps a field name to its directive.
type Directives map[string]Directive

// ParseDirective parses "date" or "round-N" (0 <= N <= 15).
// PRE: none
// POST: Returns an ErrMalformedDirective-wrapped error for anything else
func ParseDirective(s string) (Directive, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "date" {
		return Directive{Kind: DirectiveDate}, nil
	}
	if n, ok := strings.CutPrefix(s, "round-"); ok {
		digits, err := strconv.Atoi(n)
		if err != nil || digits < 0 || digits > maxRoundDigits {
			return Directive{}, fmt.Errorf("%w: %q", ErrMalformedDirective, s)
		}
		return Directive{Kind: DirectiveRound, Digits: digits}, nil
	}
	return Directive{}, fmt.Errorf("%w: %q", ErrMalformedDirective, s)
}

// ParseDirectives parses a field-to-directive mapping.
// PRE: none
// POST: Returns the first malformed entry (by field name order) as a TemplateError
func ParseDirectives(byField map[string]string) (Directives, error) {
	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make(Directives, len(byField))
	for _, field := range fields {
		d, err := ParseDirective(byField[field])
		if err != nil {
			return nil, &TemplateError{Field: field, Err: err}
		}
		out[field] = d
	}
	return out, nil
}

// ParseDirectiveLines parses one "field=directive" (or "field: directive") per line. Blank lines are ignored.
func ParseDirectiveLines(text string) (Directives, error) {
	byField := make(map[string]string)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, directive, ok := strings.Cut(line, "=")
		if !ok {
			field, directive, ok = strings.Cut(line, ":")
		}
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, &TemplateError{Err: fmt.Errorf("%w: line %d %q", ErrMalformedDirective, i+1, line)}
		}
		byField[field] = directive
	}
	return ParseDirectives(byField)
}

// Apply transforms v according to the directive.
// PRE: d was produced by ParseDirective
// POST: Returns the transformed value or an ErrUnparsableValue-wrapped error
func (d Directive) Apply(v Value) (Value, error) {
	switch d.Kind {
	case DirectiveDate:
		if v.Kind == KindDate {
			return Date(v.Time), nil
		}
		if v.Kind == KindString {
			if t, ok := parseDate(v.Raw); ok {
				return Date(t), nil
			}
		}
		return Value{}, fmt.Errorf("%w: %q is not a date", ErrUnparsableValue, v.Raw)
	case DirectiveRound:
		f := v.Num
		if v.Kind != KindNumber {
			parsed, ok := parseNumber(strings.TrimSpace(v.Raw))
			if !ok {
				return Value{}, fmt.Errorf("%w: %q is not a number", ErrUnparsableValue, v.Raw)
			}
			f = parsed
		}
		raw := strconv.FormatFloat(f, 'f', d.Digits, 64)
		rounded, _ := strconv.ParseFloat(raw, 64)
		return Value{Kind: KindNumber, Raw: raw, Num: rounded}, nil
	default:
		return Value{}, ErrMalformedDirective
	}
}

// String returns the directive in its textual form.
func (d Directive) String() string {
	if d.Kind == DirectiveRound {
		return "round-" + strconv.Itoa(d.Digits)
	}
	return "date"
}
