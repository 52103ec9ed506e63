package cvparse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cv-assistant/internal/llm"
	"cv-assistant/internal/records"
)

type stubCompleter struct {
	answer string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}

func TestParseFullDocument(t *testing.T) {
	raw := "```json\n" + `{
		"experience":[{"jobTitle":"Engineer","company":"Acme","description":"APIs","yearsText":"2020-2023"}],
		"education":[{"degreeField":"BSc CS","school":"TU Delft"}],
		"certifications":[{"title":"CKA"}],
		"skills":[{"title":"Go"},{"title":"SQL"}]
	}` + "\n```"

	rec, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rec.Experience) != 1 || rec.Experience[0].Company != "Acme" || rec.Experience[0].YearsText != "2020-2023" {
		t.Fatalf("unexpected experience %+v", rec.Experience)
	}
	if rec.Education[0].School != "TU Delft" || rec.Certifications[0].Title != "CKA" || len(rec.Skills) != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestParseDefaultsAndCoercion(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, rec records.Record)
	}{
		{
			name: "missing sections become empty lists",
			raw:  `{"skills":["Go"]}`,
			check: func(t *testing.T, rec records.Record) {
				if rec.Experience == nil || len(rec.Experience) != 0 || rec.Education == nil || rec.Certifications == nil {
					t.Fatalf("expected empty non-nil sections, got %+v", rec)
				}
				if len(rec.Skills) != 1 || rec.Skills[0].Title != "Go" {
					t.Fatalf("bare string skill not wrapped: %+v", rec.Skills)
				}
			},
		},
		{
			name: "missing fields default to empty",
			raw:  `{"experience":[{"company":"Acme"}]}`,
			check: func(t *testing.T, rec records.Record) {
				if rec.Experience[0] != (records.Experience{Company: "Acme"}) {
					t.Fatalf("unexpected experience %+v", rec.Experience[0])
				}
			},
		},
		{
			name: "numbers and aliases",
			raw:  `{"experience":[{"title":"Dev","years":3}],"education":[{"degree":"MSc","institution":"ETH"}]}`,
			check: func(t *testing.T, rec records.Record) {
				if rec.Experience[0].JobTitle != "Dev" || rec.Experience[0].YearsText != "3" {
					t.Fatalf("unexpected experience %+v", rec.Experience[0])
				}
				if rec.Education[0] != (records.Education{DegreeField: "MSc", School: "ETH"}) {
					t.Fatalf("unexpected education %+v", rec.Education[0])
				}
			},
		},
		{
			name: "empty and null entries dropped",
			raw:  `{"skills":[null,{"title":"  "},{"title":"Go"}],"experience":[{}]}`,
			check: func(t *testing.T, rec records.Record) {
				if len(rec.Skills) != 1 || len(rec.Experience) != 0 {
					t.Fatalf("expected empty entries to be dropped, got %+v", rec)
				}
			},
		},
		{
			name: "prose around the object",
			raw:  "Here you go: {\"certifications\":[{\"name\":\"PMP\"}]} Hope it helps.",
			check: func(t *testing.T, rec records.Record) {
				if len(rec.Certifications) != 1 || rec.Certifications[0].Title != "PMP" {
					t.Fatalf("unexpected certifications %+v", rec.Certifications)
				}
			},
		},
		{
			name: "wrong types ignored",
			raw:  `{"experience":"none","skills":{"title":"Go"}}`,
			check: func(t *testing.T, rec records.Record) {
				if len(rec.Experience) != 0 || len(rec.Skills) != 0 {
					t.Fatalf("expected non-array sections to be ignored, got %+v", rec)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			tt.check(t, rec)
		})
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", `{"skills":[}`} {
		_, err := Parse(raw)
		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("Parse(%q) expected *Error, got %v", raw, err)
		}
	}
}

func TestStructureUsesPromptAndWrapsFailures(t *testing.T) {
	stub := &stubCompleter{answer: `{"skills":[{"title":"Go"}]}`}
	rec, err := New(stub).Structure(context.Background(), "Go developer")
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(rec.Skills) != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !strings.Contains(stub.prompt, "Go developer") {
		t.Fatalf("prompt does not carry the CV text")
	}

	upstream := &llm.CompletionError{Provider: "proxy", Status: 503, Message: "down"}
	_, err = New(&stubCompleter{err: upstream}).Structure(context.Background(), "text")
	var perr *Error
	if !errors.As(err, &perr) || !llm.IsCompletionError(err) {
		t.Fatalf("expected *Error wrapping the completion error, got %v", err)
	}

	if _, err := New(stub).Structure(context.Background(), "  "); !errors.As(err, &perr) {
		t.Fatalf("expected *Error for empty text, got %v", err)
	}
}
