// Package dispatch fans one question out to every enabled provider and
// collects exactly one result per provider.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emandor/fusefind/internal/providers"
	"github.com/emandor/fusefind/internal/telemetry"
)

// ResultSet holds one entry per enabled provider. It is built by a single
// Run call and handed to exactly one caller.
type ResultSet map[providers.Name]providers.Result

// Texts is the wire form: provider name to answer or failure sentinel.
func (rs ResultSet) Texts() map[string]string {
	out := make(map[string]string, len(rs))
	for n, r := range rs {
		out[string(n)] = r.Text()
	}
	return out
}

// Names returns the providers present, sorted for display.
func (rs ResultSet) Names() []providers.Name {
	out := make([]providers.Name, 0, len(rs))
	for n := range rs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (rs ResultSet) Failed() int {
	n := 0
	for _, r := range rs {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Recorder receives every provider outcome. Implementations must be safe for
// concurrent use; Record is called from the per-provider goroutines.
type Recorder interface {
	Record(ctx context.Context, r providers.Result)
}

type Options struct {
	// ProviderTimeout bounds each adapter call; zero means no per-provider deadline.
	ProviderTimeout time.Duration
	// MaxConcurrency caps in-flight adapters; zero runs every provider at once.
	MaxConcurrency int
	Recorders      []Recorder
}

type Dispatcher struct {
	reg  *providers.Registry
	opts Options
}

func New(reg *providers.Registry, opts Options) *Dispatcher {
	return &Dispatcher{reg: reg, opts: opts}
}

func (d *Dispatcher) Registry() *providers.Registry { return d.reg }

// RunAll dispatches to every registered provider.
func (d *Dispatcher) RunAll(ctx context.Context, question string, onResult ...func(providers.Result)) (ResultSet, error) {
	return d.Run(ctx, question, d.reg.Names(), onResult...)
}

// Run renders the prompt once and asks every enabled provider concurrently.
// It returns after every provider resolved; failures become Failure results,
// never errors. The only error is an enabled name the registry does not know.
// onResult, when non-nil, is called from the provider goroutines as each one resolves.
func (d *Dispatcher) Run(ctx context.Context, question string, enabled []providers.Name, onResult ...func(providers.Result)) (ResultSet, error) {
	adapters, err := d.reg.Resolve(enabled)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	prompt := providers.Render(strings.TrimSpace(question))
	log := telemetry.L().With().Int("providers", len(adapters)).Logger()
	log.Debug().Int("prompt_len", len(prompt)).Msg("prompt_built")

	start := time.Now()
	// one slot per adapter; each goroutine writes only its own index
	results := make([]providers.Result, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	limit := len(adapters)
	if d.opts.MaxConcurrency > 0 && d.opts.MaxConcurrency < limit {
		limit = d.opts.MaxConcurrency
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, a := range adapters {
		g.Go(func() error {
			results[i] = d.invoke(gctx, a, prompt)
			for _, fn := range onResult {
				if fn != nil {
					guard(a.Name(), "result_callback_panic", func() { fn(results[i]) })
				}
			}
			// never fail the group: one provider must not cancel the others
			return nil
		})
	}
	_ = g.Wait()

	rs := make(ResultSet, len(results))
	for _, r := range results {
		rs[r.Provider] = r
	}

	telemetry.DispatchDuration.Observe(time.Since(start).Seconds())
	log.Info().Int("failed", rs.Failed()).Dur("took", time.Since(start)).Msg("dispatch_completed")
	return rs, nil
}

// invoke calls one adapter in isolation: its own deadline, panics recovered,
// every error folded into a Failure result.
func (d *Dispatcher) invoke(ctx context.Context, a providers.Adapter, prompt string) providers.Result {
	log := telemetry.Provider(string(a.Name()))
	t0 := time.Now()

	askCtx := ctx
	if d.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		askCtx, cancel = context.WithTimeout(ctx, d.opts.ProviderTimeout)
		defer cancel()
	}

	ans, err := ask(askCtx, a, prompt)
	if err == nil && strings.TrimSpace(ans) == "" {
		err = &providers.ProviderError{Provider: a.Name(), Kind: providers.KindMalformed, Msg: "empty answer", Err: providers.ErrEmptyAnswer}
	}

	var res providers.Result
	if err != nil {
		res = providers.Failed(a, err, time.Since(t0))
		log.Error().Err(err).Str("kind", string(res.Err.Kind)).Msg("provider_ask_error")
	} else {
		res = providers.Succeeded(a, ans, time.Since(t0))
		log.Info().Int("len", len(ans)).Int("latency_ms", res.LatencyMs).Msg("provider_done")
	}
	d.observe(ctx, res)
	return res
}

// ask runs the adapter on its own goroutine so an adapter that ignores its
// context still cannot hold the dispatch past the deadline.
func ask(ctx context.Context, a providers.Adapter, prompt string) (string, error) {
	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		// recover so that if 1 provider panics, it doesn't crash the whole process
		defer func() {
			if r := recover(); r != nil {
				log := telemetry.Provider(string(a.Name()))
				log.Error().Interface("panic", r).Msg("provider_panic")
				ch <- outcome{err: &providers.ProviderError{
					Provider: a.Name(),
					Kind:     providers.KindPanic,
					Msg:      fmt.Sprintf("panic: %v", r),
				}}
			}
		}()
		text, err := a.Ask(ctx, prompt)
		ch <- outcome{text: text, err: err}
	}()

	select {
	case o := <-ch:
		return o.text, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) observe(ctx context.Context, r providers.Result) {
	status := "ok"
	if !r.OK() {
		status = string(r.Err.Kind)
	}
	telemetry.ProviderRequestsTotal.WithLabelValues(string(r.Provider), r.Model, status).Inc()
	telemetry.ProviderLatency.WithLabelValues(string(r.Provider), r.Model).Observe(float64(r.LatencyMs) / 1000)

	for _, rec := range d.opts.Recorders {
		guard(r.Provider, "recorder_panic", func() { rec.Record(context.WithoutCancel(ctx), r) })
	}
}

// guard runs fn and logs instead of crashing when it panics.
func guard(p providers.Name, msg string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log := telemetry.Provider(string(p))
			log.Error().Interface("panic", r).Msg(msg)
		}
	}()
	fn()
}
