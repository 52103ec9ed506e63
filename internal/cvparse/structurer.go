// Package cvparse turns extracted CV text into a structured record using the
// completion provider.
package cvparse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cv-assistant/internal/llm"
	"cv-assistant/internal/records"
)

// Error reports text that could not be structured.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structure cv: %s: %v", e.Reason, e.Err)
	}
	return "structure cv: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Structurer asks the completer for structured career data.
type Structurer struct {
	completer llm.Completer
}

// New builds a Structurer.
func New(completer llm.Completer) *Structurer {
	return &Structurer{completer: completer}
}

// Structure returns the record sections found in text. The returned record
// has no name; the caller assigns the source file name.
func (s *Structurer) Structure(ctx context.Context, text string) (records.Record, error) {
	if strings.TrimSpace(text) == "" {
		return records.Record{}, &Error{Reason: "empty text"}
	}
	raw, err := s.completer.Complete(ctx, llm.StructurePrompt(text), nil, "")
	if err != nil {
		return records.Record{}, &Error{Reason: "completion failed", Err: err}
	}
	return Parse(raw)
}

// Parse decodes a model answer into a record. The answer is untrusted: code
// fences and surrounding prose are tolerated, missing fields default to empty,
// scalar values are coerced to strings, and entries with no content are
// dropped.
func Parse(raw string) (records.Record, error) {
	body := jsonObject(llm.StripCodeFence(raw))
	if body == "" {
		return records.Record{}, &Error{Reason: "answer holds no JSON object"}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return records.Record{}, &Error{Reason: "invalid JSON", Err: err}
	}

	rec := records.Record{}
	for _, item := range list(doc, "experience", "experiences", "workExperience") {
		e := records.Experience{
			JobTitle:    field(item, "jobTitle", "title", "position"),
			Company:     field(item, "company", "employer", "organization"),
			Description: field(item, "description", "summary", "details"),
			YearsText:   field(item, "yearsText", "years", "period", "dates"),
		}
		if e != (records.Experience{}) {
			rec.Experience = append(rec.Experience, e)
		}
	}
	for _, item := range list(doc, "education") {
		e := records.Education{
			DegreeField: field(item, "degreeField", "degree", "field"),
			School:      field(item, "school", "institution", "university"),
		}
		if e != (records.Education{}) {
			rec.Education = append(rec.Education, e)
		}
	}
	for _, item := range list(doc, "certifications", "certificates") {
		if title := field(item, "title", "name"); title != "" {
			rec.Certifications = append(rec.Certifications, records.Certification{Title: title})
		}
	}
	for _, item := range list(doc, "skills") {
		if title := field(item, "title", "name", "skill"); title != "" {
			rec.Skills = append(rec.Skills, records.Skill{Title: title})
		}
	}
	return rec.Normalize(), nil
}

func jsonObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// list returns the entries of the first key holding an array. Bare scalar
// entries are wrapped as {"title": value}.
func list(doc map[string]any, keys ...string) []map[string]any {
	for _, key := range keys {
		arr, ok := doc[key].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(arr))
		for _, v := range arr {
			switch t := v.(type) {
			case map[string]any:
				out = append(out, t)
			case nil:
			default:
				out = append(out, map[string]any{"title": t})
			}
		}
		return out
	}
	return nil
}

func field(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := scalar(item[key]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
