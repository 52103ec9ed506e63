package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/chat"
	"cv-assistant/internal/editor"
	"cv-assistant/internal/intake"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/metrics"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/state"
)

var (
	ErrEmptyPrompt    = errors.New("prompt is required")
	ErrIntakeDisabled = errors.New("upload processing is not configured")
)

// Workspace is one visitor's assistant state. All record and editor state is
// guarded by mu; chat turns are additionally serialized by turnMu so that a
// turn's transcript entries are never interleaved with another turn's.
// saveMu pairs each persisted snapshot with its write, so the stored value
// always matches the latest mutation. Lock order is turnMu, saveMu, mu.
type Workspace struct {
	ID      string
	OwnerID string

	deps Deps

	turnMu sync.Mutex
	saveMu sync.Mutex

	mu              sync.Mutex
	editor          *editor.Editor
	transcript      []llm.Message
	rules           []string
	recommendations []advisor.Recommendation
}

func newWorkspace(id, ownerID string, deps Deps) *Workspace {
	return &Workspace{
		ID:      id,
		OwnerID: ownerID,
		deps:    deps,
		editor:  editor.New(records.NewStore()),
	}
}

// Summary describes the working set.
type Summary struct {
	Names       []string `json:"names"`
	ActiveIndex int      `json:"activeIndex"`
	ActiveName  string   `json:"activeName,omitempty"`
}

// Upload processes files in order and loads each structured record into the
// working set. Records loaded before a failing file stay loaded and visible.
func (w *Workspace) Upload(ctx context.Context, files []intake.File) ([]string, error) {
	if w.deps.Intake == nil {
		return nil, ErrIntakeDisabled
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	store := w.editor.Store()
	loaded, err := w.deps.Intake.ProcessBatch(ctx, w.OwnerID, files, func(rec records.Record) error {
		return store.Load(rec.Name, rec)
	})
	if openErr := w.editor.Open(loaded); openErr != nil && err == nil {
		err = openErr
	}
	return loaded, err
}

// Summary lists the working records and the active one.
func (w *Workspace) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summaryLocked()
}

func (w *Workspace) summaryLocked() Summary {
	out := Summary{Names: w.editor.Store().Names(), ActiveIndex: -1}
	if rec, idx, err := w.editor.Active(); err == nil {
		out.ActiveIndex = idx
		out.ActiveName = rec.Name
	}
	return out
}

// ActiveView returns the editable view of the active record.
func (w *Workspace) ActiveView() (editor.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor.View()
}

// SetView replaces the active view with a client-edited one.
func (w *Workspace) SetView(v editor.View) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor.SetView(v)
}

// SetField updates one input of the active view.
func (w *Workspace) SetField(kind editor.SectionKind, row int, tag, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor.SetField(kind, row, tag, value)
}

// AddRow appends an empty row to a section of the active view.
func (w *Workspace) AddRow(kind editor.SectionKind) (editor.Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor.AddRow(kind)
}

// DeleteRow removes a row of the active view by position or by row ID.
func (w *Workspace) DeleteRow(kind editor.SectionKind, row int, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id != "" {
		return w.editor.DeleteRowByID(kind, id)
	}
	return w.editor.DeleteRow(kind, row)
}

// Switch captures the active view and activates the record at index.
func (w *Workspace) Switch(index int) (editor.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editor.Switch(index); err != nil {
		return editor.View{}, err
	}
	return w.editor.View()
}

// Submit captures the active view, merges it into the submitted set, persists
// the set and announces the submission.
func (w *Workspace) Submit(ctx context.Context, requestID string) (records.Record, error) {
	var (
		rec   records.Record
		count int
	)
	err := w.commit(ctx, state.KeySubmittedRecords, func() (any, error) {
		var err error
		if rec, err = w.editor.Submit(); err != nil {
			return nil, err
		}
		metrics.IncSubmission()
		submitted := w.editor.Submitted()
		count = len(submitted)
		return submitted, nil
	})
	if err != nil {
		return rec, err
	}

	msg := queue.Message{
		WorkspaceID:    w.ID,
		RecordName:     rec.Name,
		SubmittedCount: count,
		RequestID:      requestID,
		EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
		Version:        queue.MessageVersion,
	}
	if err := w.deps.Queue.Send(context.WithoutCancel(ctx), msg); err != nil {
		telemetry.Warn("workspace.submission_notify_failed", map[string]any{
			"workspace_id": w.ID,
			"record":       rec.Name,
			"error":        err,
		})
	}
	return rec, nil
}

// Submitted returns a copy of the submitted set.
func (w *Workspace) Submitted() []records.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editor.Submitted()
}

// DeleteSubmitted removes a record from the submitted set and persists it.
func (w *Workspace) DeleteSubmitted(ctx context.Context, name string) error {
	return w.commit(ctx, state.KeySubmittedRecords, func() (any, error) {
		if err := w.editor.DeleteSubmitted(name); err != nil {
			return nil, err
		}
		return w.editor.Submitted(), nil
	})
}

// RemoveRecord drops a working record. The submitted set is left alone.
func (w *Workspace) RemoveRecord(name string) (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editor.Remove(name); err != nil {
		return Summary{}, err
	}
	return w.summaryLocked(), nil
}

// Chat runs one user turn. The user message and exactly one assistant message
// are appended to the transcript, which is then persisted.
func (w *Workspace) Chat(ctx context.Context, prompt string, sink chat.Sink) (chat.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return chat.Result{}, ErrEmptyPrompt
	}

	w.turnMu.Lock()
	defer w.turnMu.Unlock()

	w.mu.Lock()
	req := chat.TurnRequest{
		Prompt:       prompt,
		History:      append([]llm.Message(nil), w.transcript...),
		SystemPrompt: w.systemPromptLocked(),
	}
	w.transcript = append(w.transcript, llm.Message{Text: prompt, IsUser: true})
	w.mu.Unlock()

	res := w.deps.Coordinator.Turn(ctx, req, sink)

	err := w.commit(ctx, state.KeyTranscript, func() (any, error) {
		w.transcript = append(w.transcript, res.Message)
		return append([]llm.Message(nil), w.transcript...), nil
	})
	if err != nil {
		telemetry.Warn("workspace.transcript_not_saved", map[string]any{
			"workspace_id": w.ID,
			"outcome":      string(res.Outcome),
		})
	}
	return res, nil
}

func (w *Workspace) systemPromptLocked() string {
	submitted := w.editor.Submitted()
	summary := ""
	if len(submitted) > 0 {
		if raw, err := json.Marshal(submitted); err == nil {
			summary = string(raw)
		}
	}
	return llm.ChatSystemPrompt(summary, w.rules)
}

// Transcript returns a copy of the chat transcript.
func (w *Workspace) Transcript() []llm.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]llm.Message{}, w.transcript...)
}

// Rules returns a copy of the user's chat rules.
func (w *Workspace) Rules() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.rules...)
}

// SetRules replaces the whole rule list and persists it.
func (w *Workspace) SetRules(ctx context.Context, rules []string) ([]string, error) {
	clean := advisor.NormalizeRules(rules)
	err := w.commit(ctx, state.KeyRules, func() (any, error) {
		w.rules = clean
		return clean, nil
	})
	return append([]string{}, clean...), err
}

// Recommend builds a new recommendation set from the submitted records and
// keeps it as the last set.
func (w *Workspace) Recommend(ctx context.Context) ([]advisor.Recommendation, error) {
	submitted := w.Submitted()
	recs, err := w.deps.Advisor.Recommend(ctx, submitted)
	if err != nil {
		return nil, err
	}
	err = w.commit(ctx, state.KeyRecommendations, func() (any, error) {
		w.recommendations = recs
		return recs, nil
	})
	return append([]advisor.Recommendation{}, recs...), err
}

// RefreshRecommendations reloads the last recommendation set from the state
// repo. A missing key keeps the cached set.
func (w *Workspace) RefreshRecommendations(ctx context.Context) error {
	recs, ok, err := loadValue[[]advisor.Recommendation](ctx, w, state.KeyRecommendations)
	if err != nil || !ok {
		return err
	}
	w.mu.Lock()
	w.recommendations = recs
	w.mu.Unlock()
	return nil
}

// Recommendations returns the last recommendation set.
func (w *Workspace) Recommendations() []advisor.Recommendation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]advisor.Recommendation{}, w.recommendations...)
}
