// Package advisor holds the user's chat rules and produces job
// recommendations from the submitted records.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cv-assistant/internal/llm"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/telemetry"
)

const DefaultLimit = 5

var (
	ErrNoRecords       = errors.New("no submitted records to recommend from")
	ErrInvalidResponse = errors.New("invalid recommendation response")
)

// Recommendation is one suggested job title.
type Recommendation struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
	Order  int    `json:"order"`
}

// NormalizeRules trims each rule and drops blanks, keeping order.
func NormalizeRules(rules []string) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule = strings.TrimSpace(rule); rule != "" {
			out = append(out, rule)
		}
	}
	return out
}

// Advisor asks the completer for recommendations.
type Advisor struct {
	completer llm.Completer
	limit     int
}

// New builds an Advisor returning at most limit recommendations.
func New(completer llm.Completer, limit int) *Advisor {
	if completer == nil {
		completer = llm.PlaceholderCompleter{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Advisor{completer: completer, limit: limit}
}

// Recommend builds a recommendation set for recs.
func (a *Advisor) Recommend(ctx context.Context, recs []records.Record) ([]Recommendation, error) {
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	raw, err := a.completer.Complete(ctx, llm.RecommendPrompt(string(payload), a.limit), nil, "")
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	out, err := Parse(raw, a.limit)
	if err != nil {
		telemetry.Warn("advisor.parse_failed", map[string]any{
			"error":      err,
			"raw_length": len(raw),
		})
		return nil, err
	}
	return out, nil
}

type response struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Parse decodes a model answer into at most limit recommendations. Both the
// {"recommendations":[...]} object and a bare array are accepted. Entries
// without a title and repeated titles are dropped.
func Parse(raw string, limit int) ([]Recommendation, error) {
	text := llm.StripCodeFence(raw)
	var items []Recommendation
	switch {
	case strings.HasPrefix(text, "{"):
		var resp response
		if err := json.Unmarshal([]byte(text), &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		items = resp.Recommendations
	case strings.HasPrefix(text, "["):
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	default:
		return nil, fmt.Errorf("%w: not JSON", ErrInvalidResponse)
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	seen := make(map[string]bool, len(items))
	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Recommendation{
			Title:  title,
			Reason: strings.TrimSpace(item.Reason),
			Order:  len(out) + 1,
		})
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no recommendations", ErrInvalidResponse)
	}
	return out, nil
}
