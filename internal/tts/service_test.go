package tts

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emandor/fusefind/internal/providers"
)

type fakeSynth struct {
	calls int
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + text), nil
}

func TestRenderWritesClip(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{}
	svc := NewService(synth, dir, "/storage/audio/", "tts-1/onyx", nil, 0)

	clip, err := svc.Render(context.Background(), providers.NameClaude, " Four. ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(clip.URL, "/storage/audio/"))
	assert.True(t, strings.HasSuffix(clip.URL, "_claude.mp3"))
	assert.False(t, clip.Cached)

	b, err := os.ReadFile(clip.File)
	require.NoError(t, err)
	assert.Equal(t, "audio:Four.", string(b))
}

func TestRenderRejectsFailuresAndEmptyText(t *testing.T) {
	synth := &fakeSynth{}
	svc := NewService(synth, t.TempDir(), "/storage/audio", "k", nil, 0)

	_, err := svc.Render(context.Background(), providers.NameOllama, providers.FailureText(providers.NameOllama, "timeout"))
	assert.ErrorIs(t, err, ErrFailureText)

	_, err = svc.Render(context.Background(), providers.NameOllama, "\n ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, synth.calls)
}

func TestRenderPropagatesSynthError(t *testing.T) {
	svc := NewService(&fakeSynth{err: errors.New("quota")}, t.TempDir(), "/a", "k", nil, 0)
	_, err := svc.Render(context.Background(), providers.NameOpenAI, "hi")
	assert.EqualError(t, err, "quota")
}

func TestRenderUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	synth := &fakeSynth{}
	svc := NewService(synth, t.TempDir(), "/storage/audio", "tts-1/onyx", rdb, time.Hour)
	ctx := context.Background()

	first, err := svc.Render(ctx, providers.NameGroq, "same answer")
	require.NoError(t, err)
	second, err := svc.Render(ctx, providers.NameGroq, "same answer")
	require.NoError(t, err)

	assert.Equal(t, 1, synth.calls)
	assert.True(t, second.Cached)
	assert.Equal(t, first.URL, second.URL)
	assert.True(t, mr.Exists(svc.cacheKey("same answer")))

	// a cached entry whose file disappeared is rendered again
	require.NoError(t, os.Remove(first.File))
	third, err := svc.Render(ctx, providers.NameGroq, "same answer")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, synth.calls)
}
