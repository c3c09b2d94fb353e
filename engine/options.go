package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp/engine/throttle"
)

// Option is a functional option for configuring an [Engine] via [Build].
type Option func(*options) error
type options struct {
	client              *http.Client
	rt                  http.RoundTripper
	timeout             *time.Duration
	userAgent           string
	throttle            *throttle.Config
	noFollowRedirects   bool
	maxIdleConnsPerHost int
	chunkSize           int
	logger              *slog.Logger
	tracer              trace.Tracer
}

// WithClient uses a copy of hc for all executions.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout bounds each execution, body delivery included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = header
		return nil
	}
}

// WithThrottle rate-limits all executions with one token bucket.
func WithThrottle(rps, burst int) Option {
	return withThrottle(throttle.Config{RPS: rps, Burst: burst})
}

// WithHostThrottle rate-limits executions with one token bucket per host.
func WithHostThrottle(rps, burst int) Option {
	return withThrottle(throttle.Config{RPS: rps, Burst: burst, PerHost: true})
}

func withThrottle(cfg throttle.Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects delivers redirect responses instead of following them.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithMaxIdleConnsPerHost sizes the idle pool of the default transport.
// It has no effect together with WithTransport or WithClient.
func WithMaxIdleConnsPerHost(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("max idle conns per host must not be negative")
		}
		o.maxIdleConnsPerHost = n
		return nil
	}
}

// WithChunkSize sets the read buffer size, and so the largest body part
// delivered to handlers.
func WithChunkSize(n int) Option {
	return func(o *options) error {
		if n < minChunkSize || n > maxChunkSize {
			return fmt.Errorf("chunk size %d out of range [%d, %d]", n, minChunkSize, maxChunkSize)
		}
		o.chunkSize = n
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Engine].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records one client span per execution.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithConfig applies a validated [Config]. Options given after it override
// its fields.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}

		if cfg.Timeout > 0 {
			o.timeout = &cfg.Timeout
		}
		if cfg.UserAgent != "" {
			o.userAgent = cfg.UserAgent
		}
		if cfg.NoFollowRedirects {
			o.noFollowRedirects = true
		}
		if cfg.MaxIdleConnsPerHost > 0 {
			o.maxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		}
		if cfg.ChunkSize > 0 {
			o.chunkSize = cfg.ChunkSize
		}
		if t := cfg.Throttle; t != nil {
			o.throttle = &throttle.Config{RPS: t.RPS, Burst: t.Burst, PerHost: t.PerHost}
		}

		return nil
	}
}
