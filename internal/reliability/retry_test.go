package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/antoniostano/bootcamp/internal/failure"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetryPolicyRateLimitedExhaustsThreeAttempts(t *testing.T) {
	rec := &recordingSleeper{}
	p := DefaultRetryPolicy()
	p.Sleep = rec.sleep

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return failure.New(failure.KindRateLimited, "generate", errors.New("429"))
	})
	if !errors.Is(err, failure.ErrRateLimited) {
		t.Fatalf("Do() error = %v, want rate limited", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestRetryPolicySucceedsAfterServerError(t *testing.T) {
	rec := &recordingSleeper{}
	p := DefaultRetryPolicy()
	p.Sleep = rec.sleep

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return failure.New(failure.KindServerError, "generate", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(rec.delays) != 1 || rec.delays[0] != time.Second {
		t.Fatalf("delays = %v, want [1s]", rec.delays)
	}
}

func TestRetryPolicyDoesNotRetryNonRetryable(t *testing.T) {
	rec := &recordingSleeper{}
	p := DefaultRetryPolicy()
	p.Sleep = rec.sleep

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return failure.New(failure.KindConfigurationMissing, "generate", nil)
	})
	if !errors.Is(err, failure.ErrConfigurationMissing) {
		t.Fatalf("Do() error = %v, want configuration missing", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("delays = %v, want none", rec.delays)
	}
}

func TestRetryPolicyStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultRetryPolicy()
	p.BaseDelay = time.Hour

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return failure.New(failure.KindServerError, "generate", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled joined", err)
	}
	if !errors.Is(err, failure.ErrServerError) {
		t.Fatalf("Do() error = %v, want server error preserved", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestNoRetryRunsOnce(t *testing.T) {
	calls := 0
	err := NoRetry().Do(context.Background(), func(context.Context) error {
		calls++
		return failure.New(failure.KindRateLimited, "generate", nil)
	})
	if err == nil {
		t.Fatalf("Do() error = nil, want error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyOnRetryHook(t *testing.T) {
	var attempts []int
	p := DefaultRetryPolicy()
	p.Sleep = (&recordingSleeper{}).sleep
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}
	_ = p.Do(context.Background(), func(context.Context) error {
		return failure.New(failure.KindServerError, "generate", nil)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}
