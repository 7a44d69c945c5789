package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgegate/server/deal"
	"bridgegate/server/engine"
)

func testDeal(t *testing.T) *deal.Deal {
	t.Helper()
	d, err := deal.Parse(deal.Record{
		Dealer: "S",
		Vuln:   []bool{true, true},
		Hands: []string{
			"AJ87632.J96.753.",
			"K9.Q8542.T6.AJ74",
			"QT4.A.KJ94.KQ986",
			"5.KT73.AQ82.T532",
		},
		Auction: []string{"1N", "PASS", "4H", "PASS"},
	})
	require.NoError(t, err)
	return d
}

// stub is a scriptable engine: optional latency, then either a result, a
// typed error, or a sequence of errors before success.
type stub struct {
	name  string
	res   *engine.Result
	errs  []error
	delay time.Duration
	calls int32
}

func (s *stub) Name() string { return s.name }

func (s *stub) Analyze(ctx context.Context, _ *deal.Deal) (*engine.Result, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if int(n) <= len(s.errs) {
		return nil, s.errs[n-1]
	}
	return s.res, nil
}

func ptr(f float64) *float64 { return &f }

func bid(t *testing.T, raw string) *engine.Action {
	t.Helper()
	a, ok := engine.BidAction(raw)
	require.True(t, ok)
	return &a
}

func geminiResult(t *testing.T) *engine.Result {
	return &engine.Result{
		Engine:     "gemini",
		Narrative:  "South should drive to game in spades.",
		Suggested:  bid(t, "4S"),
		Confidence: ptr(0.7),
	}
}

func benResult(t *testing.T, raw string) *engine.Result {
	return &engine.Result{
		Engine:      "ben",
		Suggested:   bid(t, raw),
		Confidence:  ptr(0.9),
		DoubleDummy: &engine.DDTable{Tricks: map[string]map[string]int{"S": {"S": 10}}, Par: "+620"},
	}
}

func fastOpts() Options {
	o := DefaultOptions()
	o.GeminiTimeout = 500 * time.Millisecond
	o.BenTimeout = 500 * time.Millisecond
	o.RetryBackoff = 5 * time.Millisecond
	return o
}

func TestCombinedBothSucceed(t *testing.T) {
	g := &stub{name: "gemini", res: geminiResult(t)}
	b := &stub{name: "ben", res: benResult(t, "4S")}
	o := New(g, b, fastOpts(), nil)

	out, err := o.Combined(context.Background(), testDeal(t))
	require.NoError(t, err)
	require.NotNil(t, out.Gemini)
	require.NotNil(t, out.Ben)
	assert.Nil(t, out.GeminiError)
	assert.Nil(t, out.BenError)
	assert.Contains(t, out.MergedNarrative, "drive to game in spades")
	assert.Contains(t, out.MergedNarrative, "BEN recommends 4S")
	assert.Contains(t, out.MergedNarrative, "par +620")
	require.NotNil(t, out.MergedAction)
	assert.Equal(t, "4S", out.MergedAction.String())
}

func TestCombinedGracefulDegradation(t *testing.T) {
	g := &stub{name: "gemini", errs: []error{engine.Errorf("gemini", engine.KindInvalidResponse, "garbage")}}
	b := &stub{name: "ben", res: benResult(t, "3N")}
	o := New(g, b, fastOpts(), nil)

	out, err := o.Combined(context.Background(), testDeal(t))
	require.NoError(t, err)
	assert.Nil(t, out.Gemini)
	require.NotNil(t, out.GeminiError)
	assert.Equal(t, engine.KindInvalidResponse, out.GeminiError.Kind)
	require.NotNil(t, out.Ben)
	require.NotNil(t, out.MergedAction)
	assert.Equal(t, "3N", out.MergedAction.String())
	assert.Contains(t, out.MergedNarrative, "BEN recommends 3N")
}

func TestCombinedBenFailureKeepsGemini(t *testing.T) {
	g := &stub{name: "gemini", res: geminiResult(t)}
	b := &stub{name: "ben", errs: []error{engine.Errorf("ben", engine.KindInvalidResponse, "garbage")}}
	o := New(g, b, fastOpts(), nil)

	out, err := o.Combined(context.Background(), testDeal(t))
	require.NoError(t, err)
	require.NotNil(t, out.Gemini)
	assert.Nil(t, out.GeminiError)
	assert.Nil(t, out.Ben)
	require.NotNil(t, out.BenError)
	assert.Equal(t, engine.KindInvalidResponse, out.BenError.Kind)
	assert.Equal(t, "South should drive to game in spades.", out.MergedNarrative)
	require.NotNil(t, out.MergedAction)
	assert.Equal(t, "4S", out.MergedAction.String())
}

func TestCombinedBothFail(t *testing.T) {
	g := &stub{name: "gemini", delay: time.Second} // will hit its timeout
	b := &stub{name: "ben", errs: []error{
		engine.Errorf("ben", engine.KindUnreachable, "conn refused"),
		engine.Errorf("ben", engine.KindUnreachable, "conn refused"),
	}}
	opts := fastOpts()
	opts.GeminiTimeout = 30 * time.Millisecond
	o := New(g, b, opts, nil)

	_, err := o.Combined(context.Background(), testDeal(t))
	var failure *CombinedFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, engine.KindTimeout, failure.Gemini.Kind)
	assert.Equal(t, engine.KindUnreachable, failure.Ben.Kind)
}

func TestTimeoutDoesNotBlockSibling(t *testing.T) {
	g := &stub{name: "gemini", delay: 5 * time.Second}
	b := &stub{name: "ben", res: benResult(t, "4S")}
	opts := fastOpts()
	opts.GeminiTimeout = 30 * time.Millisecond
	o := New(g, b, opts, nil)

	start := time.Now()
	out, err := o.Combined(context.Background(), testDeal(t))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "gemini's stall must not hold up the join")
	require.NotNil(t, out.GeminiError)
	assert.Equal(t, engine.KindTimeout, out.GeminiError.Kind)
	require.NotNil(t, out.Ben)
}

func TestRetryPolicy(t *testing.T) {
	t.Run("one retry on transient", func(t *testing.T) {
		b := &stub{name: "ben",
			errs: []error{engine.Errorf("ben", engine.KindRateLimited, "429")},
			res:  benResult(t, "4S"),
		}
		o := New(&stub{name: "gemini", res: geminiResult(t)}, b, fastOpts(), nil)
		out, err := o.Run(context.Background(), testDeal(t), StrategyBen)
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.EqualValues(t, 2, atomic.LoadInt32(&b.calls))
	})

	t.Run("no retry on contract violation", func(t *testing.T) {
		b := &stub{name: "ben",
			errs: []error{engine.Errorf("ben", engine.KindInvalidResponse, "bad payload")},
			res:  benResult(t, "4S"),
		}
		o := New(&stub{name: "gemini", res: geminiResult(t)}, b, fastOpts(), nil)
		_, err := o.Run(context.Background(), testDeal(t), StrategyBen)
		var eerr *engine.Error
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, engine.KindInvalidResponse, eerr.Kind)
		assert.EqualValues(t, 1, atomic.LoadInt32(&b.calls))
	})

	t.Run("at most one retry", func(t *testing.T) {
		b := &stub{name: "ben", errs: []error{
			engine.Errorf("ben", engine.KindUnreachable, "down"),
			engine.Errorf("ben", engine.KindUnreachable, "down"),
			nil, // never reached
		}}
		o := New(&stub{name: "gemini", res: geminiResult(t)}, b, fastOpts(), nil)
		_, err := o.Run(context.Background(), testDeal(t), StrategyBen)
		require.Error(t, err)
		assert.EqualValues(t, 2, atomic.LoadInt32(&b.calls))
	})
}

func TestSingleStrategyNoFallback(t *testing.T) {
	g := &stub{name: "gemini", errs: []error{
		engine.Errorf("gemini", engine.KindTimeout, "slow"),
	}}
	b := &stub{name: "ben", res: benResult(t, "4S")}
	o := New(g, b, fastOpts(), nil)

	_, err := o.Run(context.Background(), testDeal(t), StrategyGemini)
	var eerr *engine.Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "gemini", eerr.Engine)
	assert.EqualValues(t, 0, atomic.LoadInt32(&b.calls), "ben must not be consulted as a substitute")
}

func TestMergeAuthority(t *testing.T) {
	t.Run("computed wins by default", func(t *testing.T) {
		o := New(nil, nil, fastOpts(), nil)
		_, action := o.merge(geminiResult(t), benResult(t, "3N"))
		require.NotNil(t, action)
		assert.Equal(t, "3N", action.String())
	})

	t.Run("confidence decides when not forced", func(t *testing.T) {
		opts := fastOpts()
		opts.PreferComputed = false
		o := New(nil, nil, opts, nil)

		g := geminiResult(t)
		g.Confidence = ptr(0.95)
		b := benResult(t, "3N")
		b.Confidence = ptr(0.6)
		_, action := o.merge(g, b)
		require.NotNil(t, action)
		assert.Equal(t, "4S", action.String())
	})
}

func TestParentCancellationAbortsBoth(t *testing.T) {
	g := &stub{name: "gemini", delay: 5 * time.Second}
	b := &stub{name: "ben", delay: 5 * time.Second}
	o := New(g, b, fastOpts(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := o.Combined(ctx, testDeal(t))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseStrategy(t *testing.T) {
	for _, raw := range []string{"gemini", "ben", "combined", "compare"} {
		s, ok := ParseStrategy(raw)
		assert.True(t, ok)
		assert.Equal(t, Strategy(raw), s)
	}
	_, ok := ParseStrategy("both")
	assert.False(t, ok)

	_, err := New(&stub{name: "gemini"}, &stub{name: "ben"}, fastOpts(), nil).
		Run(context.Background(), testDeal(t), Strategy("both"))
	assert.True(t, err != nil && !errors.As(err, new(*engine.Error)))
}
