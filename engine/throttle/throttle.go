// Package throttle provides an [http.RoundTripper] that rate-limits the
// engine's outbound requests with token buckets from
// [golang.org/x/time/rate], either globally or with one bucket per host.
package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the token bucket parameters. With PerHost set every
// request host gets its own bucket of RPS and Burst.
type Config struct {
	RPS     int
	Burst   int
	PerHost bool
}

// Validate reports whether the bucket parameters are usable.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}

	return nil
}

type throttle struct {
	cfg   Config
	next  http.RoundTripper
	logFn func() *slog.Logger

	mu       sync.Mutex
	global   *rate.Limiter
	limiters map[string]*rate.Limiter
}

// NewRoundTripper returns an http.RoundTripper limiting calls to next.
// logFn resolves the logger at request time so engine option ordering does
// not matter; a nil logger disables the exhaustion logs.
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &throttle{
		cfg:   cfg,
		next:  next,
		logFn: logFn,
	}
	if cfg.PerHost {
		t.limiters = make(map[string]*rate.Limiter)
	} else {
		t.global = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	}

	return t, nil
}

func (t *throttle) limiter(host string) *rate.Limiter {
	if t.global != nil {
		return t.global
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.cfg.RPS), t.cfg.Burst)
		t.limiters[host] = l
	}

	return l
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	l := t.limiter(r.URL.Host)

	if logger := t.logFn(); logger != nil {
		if l.Allow() {
			return t.next.RoundTrip(r)
		}
		logger.Info("throttle tokens exhausted", "host", r.URL.Host, "rate", t.cfg.RPS, "burst", t.cfg.Burst)

		start := time.Now()
		defer func() {
			logger.Info("throttle wait complete", "host", r.URL.Host, "waited", time.Since(start).String())
		}()
	}

	if err := l.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
