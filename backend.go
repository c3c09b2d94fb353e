package asynchttp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/asynchttp/effect"
	"github.com/adamwoolhether/asynchttp/engine"
)

// Executor is the engine surface a Backend drives. *engine.Engine
// implements it.
type Executor interface {
	Execute(req *engine.Request, h engine.Handler)
	Close() error
}

var _ Executor = (*engine.Engine)(nil)

// Backend sends requests through an Executor.
type Backend struct {
	exec   Executor
	owned  bool
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates a Backend. Without WithEngine an engine is built from the
// WithEngineOptions options and closed together with the Backend.
func New(optFns ...Option) (*Backend, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying backend option: %w", err)
		}
	}

	b := &Backend{
		exec:   opts.exec,
		logger: slog.Default(),
	}
	if opts.logger != nil {
		b.logger = opts.logger
	}

	if b.exec == nil {
		engineOpts := append([]engine.Option{engine.WithLogger(b.logger)}, opts.engineOpts...)
		e, err := engine.Build(engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("building engine: %w", err)
		}
		b.exec = e
		b.owned = true
	}

	return b, nil
}

// Close closes the engine if the Backend built it, and does nothing
// otherwise. In-flight requests are not cancelled.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}

	b.closeOnce.Do(func() {
		b.closeErr = b.exec.Close()
	})

	return b.closeErr
}

// Send executes req and returns its response as an F. Send never blocks:
// when the request actually starts is up to m's Async, e.g. straight away
// for a future and on each run for a task. F resolves exactly once, with
// the response or with the first failure.
func Send[T, F, FF any](b *Backend, m effect.Monad[Response[T], F, FF], req Request[T]) F {
	if req.ResponseAs == nil {
		return m.Error(ErrMissingResponseAs)
	}

	var adapt func(Stream) T
	if sa, ok := req.ResponseAs.(StreamAs[T]); ok {
		var err error
		if adapt, err = streamAdapter(sa); err != nil {
			return m.Error(err)
		}
	}

	if req.Context == nil {
		req.Context = context.Background()
	}

	logger := b.logger.With("method", req.Method)
	if req.URI != nil {
		logger = logger.With("uri", req.URI.Redacted())
	}

	ff := m.Async(func(cb effect.Callback[F]) {
		var fired atomic.Bool
		deliver := func(fa F, err error) {
			if !fired.CompareAndSwap(false, true) {
				if err != nil {
					logger.Debug("dropping engine fault after delivery", "error", err)
				}
				return
			}
			cb(fa, err)
		}

		var h engine.Handler
		if adapt != nil {
			h = &streamHandler[T, F, FF]{adapt: adapt, m: m, cb: deliver, logger: logger}
		} else {
			h = &eagerHandler[T, F, FF]{ctx: req.Context, as: req.ResponseAs, m: m, cb: deliver, logger: logger}
		}

		b.exec.Execute(translate(req), h)
	})

	return m.Flatten(ff)
}

// streamAdapter resolves the adapt function of sa. A nil Adapt passes the
// Stream through when T is Stream.
func streamAdapter[T any](sa StreamAs[T]) (func(Stream) T, error) {
	if sa.Adapt != nil {
		return sa.Adapt, nil
	}

	var zero T
	if _, ok := any(zero).(Stream); !ok {
		return nil, defect("stream mode without adapt function for %T", zero)
	}
	return func(s Stream) T { return any(s).(T) }, nil
}
