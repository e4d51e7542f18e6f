package msgtemplate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedTemplate = errors.New("malformed template")
	ErrMissingField      = errors.New("field not present in row")
)

// TemplateError reports a rendering failure. Row is the 1-based data row, 0 when not tied to a row.
type TemplateError struct {
	Row   int
	Field string
	Err   error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	var b strings.Builder
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

type segment struct {
	text    string
	isField bool
}

// Template is a parsed message template with {field} placeholders.
// "{{" and "}}" produce literal braces.
type Template struct {
	source   string
	segments []segment
	fields   []string
}

// Parse splits text into literal and placeholder segments.
// PRE: none
// POST: Returns a TemplateError wrapping ErrMalformedTemplate on unbalanced or empty braces
func Parse(text string) (*Template, error) {
	t := &Template{source: text}
	seen := make(map[string]bool)
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(text[i+1:], "{}")
			if end < 0 || text[i+1+end] != '}' {
				return nil, &TemplateError{Err: fmt.Errorf("%w: unclosed '{' at offset %d", ErrMalformedTemplate, i)}
			}
			name := text[i+1 : i+1+end]
			if strings.TrimSpace(name) == "" {
				return nil, &TemplateError{Err: fmt.Errorf("%w: empty placeholder at offset %d", ErrMalformedTemplate, i)}
			}
			flush()
			t.segments = append(t.segments, segment{text: name, isField: true})
			if !seen[name] {
				seen[name] = true
				t.fields = append(t.fields, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &TemplateError{Err: fmt.Errorf("%w: single '}' at offset %d", ErrMalformedTemplate, i)}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// Source returns the original template text.
func (t *Template) Source() string {
	return t.source
}

// Fields returns the placeholder names in order of first appearance.
func (t *Template) Fields() []string {
	return append([]string(nil), t.fields...)
}

// MissingFields returns the placeholders that are not among columns.
// Used to reject a template against a table header before any row is rendered.
func (t *Template) MissingFields(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, f := range t.fields {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// Execute applies directives to the fields present in row, then substitutes every placeholder.
// PRE: directives were produced by ParseDirectives
// POST: Returns the rendered message or a *TemplateError; row is not mutated
func (t *Template) Execute(row Row, directives Directives) (string, error) {
	values := make(Row, len(row))
	for k, v := range row {
		values[k] = v
	}
	for field, d := range directives {
		v, ok := values[field]
		if !ok {
			continue
		}
		formatted, err := d.Apply(v)
		if err != nil {
			return "", &TemplateError{Field: field, Err: err}
		}
		values[field] = formatted
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if !seg.isField {
			b.WriteString(seg.text)
			continue
		}
		v, ok := values[seg.text]
		if !ok {
			return "", &TemplateError{Field: seg.text, Err: ErrMissingField}
		}
		b.WriteString(v.String())
	}
	return b.String(), nil
}

// Render parses text and directives and renders a single row.
// Any failure, including a malformed directive, is reported as a *TemplateError.
func Render(text string, row Row, directives map[string]string) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	parsed, err := ParseDirectives(directives)
	if err != nil {
		return "", err
	}
	return t.Execute(row, parsed)
}
