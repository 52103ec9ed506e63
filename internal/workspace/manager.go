// Package workspace owns the per-visitor state of the assistant: working
// records, the editor, the submitted set, the chat transcript, rules and the
// last recommendation set.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/chat"
	"cv-assistant/internal/intake"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/records"
	"cv-assistant/internal/shared/telemetry"
	"cv-assistant/internal/state"
)

var workspaceNamespace = uuid.MustParse("0f7c3a52-93f4-4d3e-9a53-5c6f0c1f2b7e")

// Deps are the collaborators shared by every workspace.
type Deps struct {
	Repo        state.Repo
	Intake      *intake.Service
	Coordinator *chat.Coordinator
	Advisor     *advisor.Advisor
	Queue       queue.Client
}

// Manager creates and caches workspaces per owner.
type Manager struct {
	deps Deps

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewManager builds a Manager. Missing optional collaborators get in-memory
// or no-op defaults.
func NewManager(deps Deps) *Manager {
	if deps.Repo == nil {
		deps.Repo = state.NewMemoryRepo()
	}
	if deps.Coordinator == nil {
		deps.Coordinator = chat.NewCoordinator(chat.Options{})
	}
	if deps.Advisor == nil {
		deps.Advisor = advisor.New(nil, 0)
	}
	if deps.Queue == nil {
		deps.Queue = queue.NopClient{}
	}
	return &Manager{deps: deps, workspaces: make(map[string]*Workspace)}
}

// IDFor derives the stable workspace ID of an owner.
func IDFor(ownerID string) string {
	return uuid.NewSHA1(workspaceNamespace, []byte(ownerID)).String()
}

// Get returns the owner's workspace, hydrating it from the state repo on
// first use.
func (m *Manager) Get(ctx context.Context, ownerID string) (*Workspace, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[ownerID]; ok {
		return ws, nil
	}

	ws := newWorkspace(IDFor(ownerID), ownerID, m.deps)
	if err := ws.hydrate(ctx); err != nil {
		return nil, err
	}
	m.workspaces[ownerID] = ws
	telemetry.Info("workspace.opened", map[string]any{
		"workspace_id": ws.ID,
		"owner_id":     ownerID,
		"transcript":   len(ws.transcript),
		"submitted":    len(ws.editor.Submitted()),
	})
	return ws, nil
}

// Len reports how many workspaces are cached.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

func (w *Workspace) hydrate(ctx context.Context) error {
	transcript, _, err := loadValue[[]llm.Message](ctx, w, state.KeyTranscript)
	if err != nil {
		return err
	}
	rules, _, err := loadValue[[]string](ctx, w, state.KeyRules)
	if err != nil {
		return err
	}
	recs, _, err := loadValue[[]advisor.Recommendation](ctx, w, state.KeyRecommendations)
	if err != nil {
		return err
	}
	submitted, _, err := loadValue[[]records.Record](ctx, w, state.KeySubmittedRecords)
	if err != nil {
		return err
	}
	w.transcript = transcript
	w.rules = rules
	w.recommendations = recs
	w.editor.SetSubmitted(submitted)
	return nil
}

// loadValue decodes the stored value of key into a fresh T. ok is false when
// the key is missing or its value is corrupt; corrupt values are dropped whole.
func loadValue[T any](ctx context.Context, w *Workspace, key state.Key) (value T, ok bool, err error) {
	raw, err := w.deps.Repo.Get(ctx, w.ID, key)
	if errors.Is(err, state.ErrNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("load %s: %w", key, err)
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		telemetry.Warn("workspace.state_corrupt", map[string]any{
			"workspace_id": w.ID,
			"key":          string(key),
			"error":        err,
		})
		return value, false, nil
	}
	return decoded, true, nil
}

// commit runs mutate under mu and writes the snapshot it returns while saveMu
// is still held.
func (w *Workspace) commit(ctx context.Context, key state.Key, mutate func() (any, error)) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	snapshot, err := mutate()
	w.mu.Unlock()
	if err != nil {
		return err
	}
	return w.save(ctx, key, snapshot)
}

func (w *Workspace) save(ctx context.Context, key state.Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := w.deps.Repo.Put(context.WithoutCancel(ctx), w.ID, key, raw); err != nil {
		telemetry.Error("workspace.save_failed", map[string]any{
			"workspace_id": w.ID,
			"key":          string(key),
			"error":        err,
		})
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
