// Package orchestrator fans a validated deal out to the analysis engines,
// bounds and retries each call independently, and merges whatever comes back.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bridgegate/server/compare"
	"bridgegate/server/deal"
	"bridgegate/server/engine"
)

type Strategy string

const (
	StrategyGemini   Strategy = "gemini"
	StrategyBen      Strategy = "ben"
	StrategyCombined Strategy = "combined"
	StrategyCompare  Strategy = "compare"
)

func ParseStrategy(raw string) (Strategy, bool) {
	switch Strategy(raw) {
	case StrategyGemini, StrategyBen, StrategyCombined, StrategyCompare:
		return Strategy(raw), true
	}
	return "", false
}

type Options struct {
	GeminiTimeout time.Duration
	BenTimeout    time.Duration
	RetryBackoff  time.Duration

	// PreferComputed gives BEN's recommendation authority over Gemini's when
	// both engines answered. The explanation always comes from Gemini.
	PreferComputed bool
}

func DefaultOptions() Options {
	return Options{
		GeminiTimeout:  30 * time.Second,
		BenTimeout:     10 * time.Second,
		RetryBackoff:   250 * time.Millisecond,
		PreferComputed: true,
	}
}

type Orchestrator struct {
	gemini engine.Engine
	ben    engine.Engine
	opts   Options
	log    *zap.Logger
}

func New(gemini, ben engine.Engine, opts Options, log *zap.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.GeminiTimeout <= 0 {
		opts.GeminiTimeout = def.GeminiTimeout
	}
	if opts.BenTimeout <= 0 {
		opts.BenTimeout = def.BenTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{gemini: gemini, ben: ben, opts: opts, log: log}
}

// CombinedResult is the merged answer for the combined strategy. An absent
// engine is recorded with its error; it is never silently dropped.
type CombinedResult struct {
	Gemini          *engine.Result `json:"gemini,omitempty"`
	Ben             *engine.Result `json:"ben,omitempty"`
	GeminiError     *engine.Error  `json:"gemini_error,omitempty"`
	BenError        *engine.Error  `json:"ben_error,omitempty"`
	MergedNarrative string         `json:"merged_narrative"`
	MergedAction    *engine.Action `json:"merged_action,omitempty"`
}

// CombinedFailure means both engines failed for a combined/compare request.
// It carries both underlying errors.
type CombinedFailure struct {
	Gemini *engine.Error `json:"gemini"`
	Ben    *engine.Error `json:"ben"`
}

func (f *CombinedFailure) Error() string {
	return fmt.Sprintf("both engines failed: gemini(%s), ben(%s)", f.Gemini.Kind, f.Ben.Kind)
}

// Run dispatches one validated deal per the requested strategy. The concrete
// return type depends on the strategy: *engine.Result, *CombinedResult or
// *compare.Result.
func (o *Orchestrator) Run(ctx context.Context, d *deal.Deal, s Strategy) (any, error) {
	switch s {
	case StrategyGemini:
		return o.single(ctx, d, o.gemini, o.opts.GeminiTimeout)
	case StrategyBen:
		return o.single(ctx, d, o.ben, o.opts.BenTimeout)
	case StrategyCombined:
		return o.Combined(ctx, d)
	case StrategyCompare:
		return o.Compare(ctx, d)
	}
	return nil, fmt.Errorf("unknown strategy %q", s)
}

// single runs one engine. Errors come back as-is; no fallback to the other
// engine, which answers a different question.
func (o *Orchestrator) single(ctx context.Context, d *deal.Deal, eng engine.Engine, timeout time.Duration) (*engine.Result, error) {
	res, eerr := o.guard(ctx, d, eng, timeout)
	if eerr != nil {
		return nil, eerr
	}
	return res, nil
}

// Combined runs both engines concurrently and merges.
func (o *Orchestrator) Combined(ctx context.Context, d *deal.Deal) (*CombinedResult, error) {
	gRes, bRes, gErr, bErr := o.fanOut(ctx, d)
	if gErr != nil && bErr != nil {
		return nil, &CombinedFailure{Gemini: gErr, Ben: bErr}
	}

	out := &CombinedResult{Gemini: gRes, Ben: bRes, GeminiError: gErr, BenError: bErr}
	out.MergedNarrative, out.MergedAction = o.merge(gRes, bRes)
	return out, nil
}

// Compare collects both raw opinions under the same policy and hands them to
// the comparison engine. Both failing is still a combined failure.
func (o *Orchestrator) Compare(ctx context.Context, d *deal.Deal) (*compare.Result, error) {
	gRes, bRes, gErr, bErr := o.fanOut(ctx, d)
	if gErr != nil && bErr != nil {
		return nil, &CombinedFailure{Gemini: gErr, Ben: bErr}
	}
	return compare.Compare(
		compare.Opinion{Result: gRes, Error: gErr},
		compare.Opinion{Result: bRes, Error: bErr},
	), nil
}

// fanOut launches both guarded calls and waits for both to settle. Each call
// owns its own timeout; neither blocks the other's clock, and cancelling ctx
// aborts both.
func (o *Orchestrator) fanOut(ctx context.Context, d *deal.Deal) (gRes, bRes *engine.Result, gErr, bErr *engine.Error) {
	var g errgroup.Group
	g.Go(func() error {
		gRes, gErr = o.guard(ctx, d, o.gemini, o.opts.GeminiTimeout)
		return nil
	})
	g.Go(func() error {
		bRes, bErr = o.guard(ctx, d, o.ben, o.opts.BenTimeout)
		return nil
	})
	_ = g.Wait()
	return
}

// guard wraps one adapter call with its timeout, typed-error translation and
// at most one retry on transient kinds. InvalidResponse is a contract
// violation and is never retried.
func (o *Orchestrator) guard(ctx context.Context, d *deal.Deal, eng engine.Engine, timeout time.Duration) (*engine.Result, *engine.Error) {
	attempt := func() (*engine.Result, *engine.Error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		res, err := eng.Analyze(cctx, d)
		if err == nil {
			o.log.Debug("engine answered",
				zap.String("engine", eng.Name()),
				zap.Duration("latency", time.Since(start)))
			return res, nil
		}
		eerr := engine.AsError(eng.Name(), err)
		// The adapter may report its own deadline as unreachable; the call
		// clock decides.
		if cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			eerr = engine.Errorf(eng.Name(), engine.KindTimeout, "deadline %s exceeded", timeout)
		}
		o.log.Warn("engine failed",
			zap.String("engine", eng.Name()),
			zap.String("kind", string(eerr.Kind)),
			zap.Duration("latency", time.Since(start)))
		return nil, eerr
	}

	res, eerr := attempt()
	if eerr == nil || !eerr.Transient() {
		return res, eerr
	}
	select {
	case <-time.After(o.opts.RetryBackoff):
	case <-ctx.Done():
		return nil, eerr
	}
	o.log.Debug("retrying engine", zap.String("engine", eng.Name()), zap.String("kind", string(eerr.Kind)))
	return attempt()
}
