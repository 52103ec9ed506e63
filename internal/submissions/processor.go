// Package submissions reacts to submitted-record notifications by refreshing
// the workspace's recommendation set out of band.
package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/state"
)

// Processor recomputes recommendations for the workspace named in a message.
type Processor struct {
	Repo    state.Repo
	Advisor *advisor.Advisor
}

// NewProcessor builds a Processor.
func NewProcessor(repo state.Repo, adv *advisor.Advisor) *Processor {
	return &Processor{Repo: repo, Advisor: adv}
}

// Handle reads the workspace's submitted set and stores a fresh
// recommendation set next to it. A workspace with nothing submitted, which
// happens when records are deleted after the message was sent, is skipped.
// Errors are returned for redelivery.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	raw, err := p.Repo.Get(ctx, msg.WorkspaceID, state.KeySubmittedRecords)
	if errors.Is(err, state.ErrNotFound) {
		telemetry.Info("submissions.skipped", map[string]any{"workspace_id": msg.WorkspaceID, "reason": "nothing submitted"})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load submitted records: %w", err)
	}

	var submitted []records.Record
	if err := json.Unmarshal(raw, &submitted); err != nil {
		telemetry.Warn("submissions.skipped", map[string]any{"workspace_id": msg.WorkspaceID, "reason": "corrupt submitted records", "error": err.Error()})
		return nil
	}

	recs, err := p.Advisor.Recommend(ctx, submitted)
	if errors.Is(err, advisor.ErrNoRecords) {
		telemetry.Info("submissions.skipped", map[string]any{"workspace_id": msg.WorkspaceID, "reason": "nothing submitted"})
		return nil
	}
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	encoded, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	if err := p.Repo.Put(ctx, msg.WorkspaceID, state.KeyRecommendations, encoded); err != nil {
		return fmt.Errorf("save recommendations: %w", err)
	}
	telemetry.Info("submissions.recommended", map[string]any{
		"workspace_id": msg.WorkspaceID,
		"record_name":  msg.RecordName,
		"count":        len(recs),
	})
	return nil
}
