package ws

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/fusefind/internal/dispatch"
	"github.com/emandor/fusefind/internal/providers"
)

type stubAdapter struct {
	name   providers.Name
	answer string
	err    error
}

func (s stubAdapter) Name() providers.Name { return s.name }
func (s stubAdapter) Model() string        { return "stub" }
func (s stubAdapter) Ask(context.Context, string) (string, error) {
	return s.answer, s.err
}

type recordingWriter struct {
	mu     sync.Mutex
	events []PayloadEvent
}

func (r *recordingWriter) WriteJSON(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v.(PayloadEvent))
	return nil
}

func newHub(t *testing.T) *Hub {
	t.Helper()
	reg, err := providers.NewRegistry(
		stubAdapter{name: providers.NameOpenAI, answer: "4"},
		stubAdapter{name: providers.NameOllama, err: errors.New("connection refused")},
	)
	require.NoError(t, err)
	return NewHub(dispatch.New(reg, dispatch.Options{}), 0)
}

func TestServeAskStreamsPerProviderThenCompletes(t *testing.T) {
	h := newHub(t)
	w := &recordingWriter{}

	h.serve(context.Background(), w, []byte(`{"action":"ask","question":"What is 2+2?"}`))

	require.Len(t, w.events, 3)
	last := w.events[2]
	assert.Equal(t, EventCompleted, last.Event)
	assert.Equal(t, map[string]string{
		"openai": "4",
		"ollama": "[ollama error: connection refused]",
	}, last.Data)

	bySource := map[providers.Name]PayloadEvent{}
	for _, ev := range w.events[:2] {
		bySource[ev.Source] = ev
	}
	assert.Equal(t, EventAnswered, bySource[providers.NameOpenAI].Event)
	assert.Equal(t, EventError, bySource[providers.NameOllama].Event)
}

func TestServeAskSubset(t *testing.T) {
	h := newHub(t)
	w := &recordingWriter{}

	h.serve(context.Background(), w, []byte(`{"action":"ask","question":"q","providers":["OpenAI"]}`))

	require.Len(t, w.events, 2)
	assert.Equal(t, map[string]string{"openai": "4"}, w.events[1].Data)
}

func TestServeRejectsBadMessages(t *testing.T) {
	h := newHub(t)

	for _, msg := range []string{
		`not json`,
		`{"action":"dance"}`,
		`{"action":"ask","question":"   "}`,
		`{"action":"ask","question":"q","providers":["gemini"]}`,
	} {
		w := &recordingWriter{}
		h.serve(context.Background(), w, []byte(msg))
		require.Len(t, w.events, 1, msg)
		assert.Equal(t, EventRejected, w.events[0].Event, msg)
	}
}

func TestServeAskEmptyProviderListAsksNobody(t *testing.T) {
	h := newHub(t)
	w := &recordingWriter{}

	h.serve(context.Background(), w, []byte(`{"action":"ask","question":"q","providers":[]}`))

	require.Len(t, w.events, 1)
	assert.Equal(t, EventCompleted, w.events[0].Event)
	assert.Equal(t, map[string]string{}, w.events[0].Data)
}
