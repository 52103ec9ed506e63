package workspace

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"cv-assistant/internal/advisor"
	"cv-assistant/internal/chat"
	"cv-assistant/internal/chat/stream"
	"cv-assistant/internal/intake"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/queue"
	"cv-assistant/internal/records"
	"cv-assistant/internal/state"
)

type fakeCompleter struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	history []llm.Message
	system  string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.history = append([]llm.Message(nil), history...)
	f.system = systemPrompt
	return f.answer, f.err
}

// lineStructurer turns "title: value" lines into an experience entry per line
// and fails on text containing "broken".
type lineStructurer struct{}

func (lineStructurer) Structure(ctx context.Context, text string) (records.Record, error) {
	if strings.Contains(text, "broken") {
		return records.Record{}, errors.New("model returned prose")
	}
	var rec records.Record
	for _, line := range strings.Split(text, "\n") {
		title, company, _ := strings.Cut(line, ":")
		rec.Experience = append(rec.Experience, records.Experience{
			JobTitle: strings.TrimSpace(title),
			Company:  strings.TrimSpace(company),
		})
	}
	rec.Skills = []records.Skill{{Title: "Go"}}
	return rec, nil
}

type streamConn struct {
	payloads []string
	idx      int
	closed   chan struct{}
	once     sync.Once
}

func newStreamConn(payloads ...string) *streamConn {
	return &streamConn{payloads: payloads, closed: make(chan struct{})}
}

func (c *streamConn) ReadMessage() (int, []byte, error) {
	if c.idx < len(c.payloads) {
		p := c.payloads[c.idx]
		c.idx++
		return 1, []byte(p), nil
	}
	return 0, nil, io.EOF
}

func (c *streamConn) WriteJSON(v any) error { return nil }

func (c *streamConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type streamDialer struct {
	conn *streamConn
	err  error
}

func (d streamDialer) Dial(ctx context.Context, endpoint string) (stream.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fixture struct {
	manager   *Manager
	repo      *state.MemoryRepo
	queue     *queue.MemoryClient
	completer *fakeCompleter
}

type fixtureOptions struct {
	dialer    stream.Dialer
	completer *fakeCompleter
}

func newFixture(t *testing.T, opts fixtureOptions) fixture {
	t.Helper()
	completer := opts.completer
	if completer == nil {
		completer = &fakeCompleter{answer: "fallback answer"}
	}
	coordOpts := chat.Options{Completer: completer, Deadline: time.Second}
	if opts.dialer != nil {
		coordOpts.Dialer = opts.dialer
		coordOpts.Endpoint = "ws://proxy.test/v1/chat/stream"
	}
	repo := state.NewMemoryRepo()
	q := &queue.MemoryClient{}
	m := NewManager(Deps{
		Repo:        repo,
		Intake:      intake.NewService(nil, lineStructurer{}),
		Coordinator: chat.NewCoordinator(coordOpts),
		Advisor:     advisor.New(completer, 3),
		Queue:       q,
	})
	return fixture{manager: m, repo: repo, queue: q, completer: completer}
}

func textFile(name, body string) intake.File {
	return intake.File{Name: name, MimeType: "text/plain", Data: []byte(body)}
}
