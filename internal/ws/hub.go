package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/emandor/fusefind/internal/dispatch"
	"github.com/emandor/fusefind/internal/middleware"
	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/telemetry"
)

type Action string

const (
	ActionAsk Action = "ask"
)

type Event string

const (
	EventAnswered  Event = "qa.event.answered"
	EventError     Event = "qa.event.error"
	EventCompleted Event = "qa.event.completed"
	EventRejected  Event = "qa.event.rejected"
)

type PayloadEvent struct {
	Event  Event          `json:"event"`
	Source providers.Name `json:"source,omitempty"`
	Data   any            `json:"data,omitempty"`
}

type ClientMessage struct {
	Action    Action   `json:"action"`
	Question  string   `json:"question"`
	Providers []string `json:"providers,omitempty"`
}

type AnswerPayload struct {
	Model     string `json:"model,omitempty"`
	Text      string `json:"text"`
	LatencyMs int    `json:"latency_ms"`
}

type jsonWriter interface {
	WriteJSON(v any) error
}

// lockedWriter serializes writes: results arrive from several provider goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  jsonWriter
}

func (l *lockedWriter) WriteJSON(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.WriteJSON(v)
}

// Hub answers questions over a websocket, pushing each provider's result as it resolves.
type Hub struct {
	d       *dispatch.Dispatcher
	timeout time.Duration
}

func NewHub(d *dispatch.Dispatcher, timeout time.Duration) *Hub {
	return &Hub{d: d, timeout: timeout}
}

func (h *Hub) HandleWS(c *websocket.Conn) {
	rid, _ := c.Locals(middleware.ReqIDKey).(string)
	tlog := telemetry.L().With().Str("module", "ws").Str("req_id", rid).Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		_ = c.Close()
		tlog.Info().Msg("ws_disconnected")
	}()

	w := &lockedWriter{w: c}
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}
		h.serve(context.Background(), w, msg)
	}
}

func (h *Hub) serve(ctx context.Context, w jsonWriter, msg []byte) {
	var cm ClientMessage
	if err := json.Unmarshal(msg, &cm); err != nil {
		_ = w.WriteJSON(PayloadEvent{Event: EventRejected, Data: "invalid message"})
		return
	}

	switch cm.Action {
	case ActionAsk:
		h.ask(ctx, w, cm)
	default:
		_ = w.WriteJSON(PayloadEvent{Event: EventRejected, Data: "unknown action"})
	}
}

func (h *Hub) ask(ctx context.Context, w jsonWriter, cm ClientMessage) {
	q := strings.TrimSpace(cm.Question)
	if q == "" {
		_ = w.WriteJSON(PayloadEvent{Event: EventRejected, Data: "question is required"})
		return
	}

	enabled := h.d.Registry().Names()
	if cm.Providers != nil {
		enabled = providers.ParseNames(cm.Providers)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	rs, err := h.d.Run(ctx, q, enabled, func(r providers.Result) {
		_ = w.WriteJSON(resultEvent(r))
	})
	if err != nil {
		_ = w.WriteJSON(PayloadEvent{Event: EventRejected, Data: err.Error()})
		return
	}

	_ = w.WriteJSON(PayloadEvent{Event: EventCompleted, Data: rs.Texts()})
}

func resultEvent(r providers.Result) PayloadEvent {
	pl := PayloadEvent{
		Event:  EventAnswered,
		Source: r.Provider,
		Data:   AnswerPayload{Model: r.Model, Text: r.Text(), LatencyMs: r.LatencyMs},
	}
	if !r.OK() {
		pl.Event = EventError
	}
	return pl
}
