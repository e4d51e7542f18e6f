package msgtemplate_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"bulksms/internal/domain/msgtemplate"
)

// TestRender_RoundDirective renders a greeting with a rounded amount.
func TestRender_RoundDirective(t *testing.T) {
	row := msgtemplate.Row{
		"name": msgtemplate.Text("Ali"),
		"amt":  msgtemplate.Number(12.345),
	}
	got, err := msgtemplate.Render("Hi {name}, {amt}", row, map[string]string{"amt": "round-1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hi Ali, 12.3" {
		t.Errorf("Render = %q, want %q", got, "Hi Ali, 12.3")
	}
}

// TestRender_MissingField verifies an absent field yields a TemplateError.
func TestRender_MissingField(t *testing.T) {
	row := msgtemplate.Row{"name": msgtemplate.Text("Ali")}
	_, err := msgtemplate.Render("Hi {name}, you owe {amt}", row, nil)

	var te *msgtemplate.TemplateError
	if !errors.As(err, &te) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if te.Field != "amt" {
		t.Errorf("Field = %q, want amt", te.Field)
	}
	if !errors.Is(err, msgtemplate.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

// TestRender_Directives covers date and rounding transformations and their failures.
func TestRender_Directives(t *testing.T) {
	due := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		template   string
		row        msgtemplate.Row
		directives map[string]string
		want       string
		wantErr    error
	}{
		{
			name:       "date value formatted as ISO",
			template:   "Due {date}",
			row:        msgtemplate.Row{"date": msgtemplate.Date(due)},
			directives: map[string]string{"date": "date"},
			want:       "Due 2026-03-09",
		},
		{
			name:       "date string reformatted",
			template:   "Due {date}",
			row:        msgtemplate.Row{"date": msgtemplate.Infer("03/09/2026")},
			directives: map[string]string{"date": "date"},
			want:       "Due 2026-03-09",
		},
		{
			name:       "datetime string truncated to date",
			template:   "Due {date}",
			row:        msgtemplate.Row{"date": msgtemplate.Infer("2026-03-09 00:00:00")},
			directives: map[string]string{"date": "date"},
			want:       "Due 2026-03-09",
		},
		{
			name:       "unparsable date",
			template:   "Due {date}",
			row:        msgtemplate.Row{"date": msgtemplate.Text("soon")},
			directives: map[string]string{"date": "date"},
			wantErr:    msgtemplate.ErrUnparsableValue,
		},
		{
			name:       "round string number",
			template:   "{amt}",
			row:        msgtemplate.Row{"amt": msgtemplate.Text(" 7.5 ")},
			directives: map[string]string{"amt": "round-0"},
			want:       "8",
		},
		{
			name:       "round pads decimals",
			template:   "{amt}",
			row:        msgtemplate.Row{"amt": msgtemplate.Number(12)},
			directives: map[string]string{"amt": "round-2"},
			want:       "12.00",
		},
		{
			name:       "round non number",
			template:   "{amt}",
			row:        msgtemplate.Row{"amt": msgtemplate.Text("abc")},
			directives: map[string]string{"amt": "round-2"},
			wantErr:    msgtemplate.ErrUnparsableValue,
		},
		{
			name:       "malformed directive",
			template:   "{amt}",
			row:        msgtemplate.Row{"amt": msgtemplate.Number(1)},
			directives: map[string]string{"amt": "round-x"},
			wantErr:    msgtemplate.ErrMalformedDirective,
		},
		{
			name:       "directive for absent field is ignored",
			template:   "Hello",
			row:        msgtemplate.Row{},
			directives: map[string]string{"amt": "round-1"},
			want:       "Hello",
		},
		{
			name:     "escaped braces",
			template: "{{literal}} {name}",
			row:      msgtemplate.Row{"name": msgtemplate.Text("Ali")},
			want:     "{literal} Ali",
		},
		{
			name:     "raw text keeps leading zero",
			template: "{phone}",
			row:      msgtemplate.Row{"phone": msgtemplate.Infer("0501234567")},
			want:     "0501234567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := msgtemplate.Render(tt.template, tt.row, tt.directives)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				var te *msgtemplate.TemplateError
				if !errors.As(err, &te) {
					t.Errorf("expected TemplateError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParse_Malformed rejects unbalanced braces.
func TestParse_Malformed(t *testing.T) {
	for _, text := range []string{"Hi {name", "Hi name}", "Hi {}", "{a{b}"} {
		if _, err := msgtemplate.Parse(text); !errors.Is(err, msgtemplate.ErrMalformedTemplate) {
			t.Errorf("Parse(%q) = %v, want ErrMalformedTemplate", text, err)
		}
	}
}

// TestTemplate_Fields verifies placeholder discovery and header checks.
func TestTemplate_Fields(t *testing.T) {
	tpl, err := msgtemplate.Parse("{name} {date} {name} {amt}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tpl.Fields(); !reflect.DeepEqual(got, []string{"name", "date", "amt"}) {
		t.Errorf("Fields = %v", got)
	}
	if got := tpl.MissingFields([]string{"name", "phone", "date"}); !reflect.DeepEqual(got, []string{"amt"}) {
		t.Errorf("MissingFields = %v", got)
	}
}

// TestExecute_DoesNotMutateRow verifies directives work on a copy.
func TestExecute_DoesNotMutateRow(t *testing.T) {
	tpl, _ := msgtemplate.Parse("{amt}")
	directives, _ := msgtemplate.ParseDirectives(map[string]string{"amt": "round-0"})
	row := msgtemplate.Row{"amt": msgtemplate.Number(2.6)}
	if _, err := tpl.Execute(row, directives); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if row["amt"].Raw != "2.6" {
		t.Errorf("row mutated: %q", row["amt"].Raw)
	}
}

// TestParseDirectiveLines covers the form textarea syntax.
func TestParseDirectiveLines(t *testing.T) {
	got, err := msgtemplate.ParseDirectiveLines("date=date\n\n amt : round-2 \n")
	if err != nil {
		t.Fatalf("ParseDirectiveLines: %v", err)
	}
	want := msgtemplate.Directives{
		"date": {Kind: msgtemplate.DirectiveDate},
		"amt":  {Kind: msgtemplate.DirectiveRound, Digits: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := msgtemplate.ParseDirectiveLines("no separator"); !errors.Is(err, msgtemplate.ErrMalformedDirective) {
		t.Errorf("expected ErrMalformedDirective, got %v", err)
	}
	if _, err := msgtemplate.ParseDirectiveLines("amt=round-99"); !errors.Is(err, msgtemplate.ErrMalformedDirective) {
		t.Errorf("expected ErrMalformedDirective for out of range digits, got %v", err)
	}
}

// TestInfer classifies raw cells.
func TestInfer(t *testing.T) {
	tests := []struct {
		raw  string
		kind msgtemplate.Kind
	}{
		{"42", msgtemplate.KindNumber},
		{"-3.5", msgtemplate.KindNumber},
		{"2026-03-09", msgtemplate.KindDate},
		{"09.03.2026", msgtemplate.KindDate},
		{"Ali", msgtemplate.KindString},
		{"Inf", msgtemplate.KindString},
		{"", msgtemplate.KindString},
	}
	for _, tt := range tests {
		if got := msgtemplate.Infer(tt.raw).Kind; got != tt.kind {
			t.Errorf("Infer(%q).Kind = %s, want %s", tt.raw, got, tt.kind)
		}
	}
}
