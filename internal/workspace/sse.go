package workspace

import (
	"github.com/gin-gonic/gin"

	"cv-assistant/internal/chat"
	"cv-assistant/internal/llm"
)

const (
	eventToken   = "token"
	eventDiscard = "discard"
	eventMessage = "message"
)

type tokenEvent struct {
	Text string `json:"text"`
}

type messageEvent struct {
	Message llm.Message  `json:"message"`
	Outcome chat.Outcome `json:"outcome"`
}

// sseSink relays a turn to the client as Server-Sent Events. The coordinator
// never calls it after the turn resolved, so writes do not overlap with the
// handler's final event.
type sseSink struct {
	c *gin.Context
}

func newSSESink(c *gin.Context) *sseSink {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseSink{c: c}
}

func (s *sseSink) Token(text string) {
	s.emit(eventToken, tokenEvent{Text: text})
}

func (s *sseSink) Discard() {
	s.emit(eventDiscard, struct{}{})
}

func (s *sseSink) Message(res chat.Result) {
	s.emit(eventMessage, messageEvent{Message: res.Message, Outcome: res.Outcome})
}

func (s *sseSink) emit(event string, data any) {
	s.c.SSEvent(event, data)
	s.c.Writer.Flush()
}
