package asynchttp

import (
	"errors"
	"log/slog"

	"github.com/adamwoolhether/asynchttp/engine"
)

// Option is a functional option for configuring a [Backend] via [New].
type Option func(*options) error
type options struct {
	exec       Executor
	engineOpts []engine.Option
	logger     *slog.Logger
}

// WithEngine sends through e. The caller keeps ownership: Backend.Close
// leaves e open.
func WithEngine(e Executor) Option {
	return func(o *options) error {
		if e == nil {
			return errors.New("engine must not be nil")
		}
		if len(o.engineOpts) > 0 {
			return errors.New("cannot combine WithEngine and WithEngineOptions")
		}
		o.exec = e
		return nil
	}
}

// WithEngineOptions configures the engine built by New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) error {
		if o.exec != nil {
			return errors.New("cannot combine WithEngine and WithEngineOptions")
		}
		o.engineOpts = append(o.engineOpts, opts...)
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Backend] and the
// engine it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
