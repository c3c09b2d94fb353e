// Package engine is a push-based asynchronous HTTP client. Requests run on
// engine goroutines and report their progress to a Handler through
// notification callbacks instead of returning a response.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/asynchttp/engine/throttle"
)

const defaultChunkSize = 8 << 10 // 8KB

// Engine executes requests asynchronously over an *http.Client.
type Engine struct {
	c         *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	chunkSize int
	closed    atomic.Bool
	inFlight  atomic.Int64
}

// Build creates an Engine. Without options it uses a clone of
// http.DefaultTransport, no timeout and follows redirects.
func Build(optFns ...Option) (*Engine, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying engine option: %w", err)
		}
	}

	e := &Engine{
		c:         &http.Client{},
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("asynchttp/engine"),
		chunkSize: defaultChunkSize,
	}

	if opts.client != nil {
		cpy := *opts.client
		e.c = &cpy
	}
	if opts.logger != nil {
		e.logger = opts.logger
	}
	if opts.tracer != nil {
		e.tracer = opts.tracer
	}
	if opts.chunkSize > 0 {
		e.chunkSize = opts.chunkSize
	}
	if opts.timeout != nil {
		e.c.Timeout = *opts.timeout
	}
	if opts.noFollowRedirects {
		e.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.maxIdleConnsPerHost > 0 {
			t.MaxIdleConnsPerHost = opts.maxIdleConnsPerHost
		}
		transport = t
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return e.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	e.c.Transport = transport

	return e, nil
}

// Execute starts req and returns immediately. h receives every
// notification on engine goroutines. An execution racing Close may still
// run; it is then treated as in flight.
func (e *Engine) Execute(req *Request, h Handler) {
	if e.closed.Load() {
		go h.OnThrowable(ErrClosed)
		return
	}

	e.inFlight.Add(1)
	go e.run(req, h)
}

// Close releases idle connections and rejects further executions. In-flight
// executions are left to finish. Close is idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.c.CloseIdleConnections()
	e.logger.Debug("engine closed", "in_flight", e.inFlight.Load())

	return nil
}

func (e *Engine) run(req *Request, h Handler) {
	x := e.start(req)

	httpReq, err := req.build(x.ctx)
	if err != nil {
		x.fail(h, fmt.Errorf("building request: %w", err))
		return
	}

	resp, err := e.c.Do(httpReq)
	if err != nil {
		x.fail(h, fmt.Errorf("exec http do: %w", err))
		return
	}
	x.span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if h.OnStatusReceived(resp.StatusCode) == Abort {
		e.abort(x, resp, h)
		return
	}
	if h.OnHeadersReceived(headerList(resp.Header)) == Abort {
		e.abort(x, resp, h)
		return
	}

	if sh, ok := h.(StreamedHandler); ok && hasBody(resp) {
		pub := &bodyPublisher{
			body:      resp.Body,
			chunkSize: e.chunkSize,
			logger:    e.logger,
			done: func(err error) {
				if err != nil {
					x.fail(h, err)
					return
				}
				x.succeed(h)
			},
		}
		if sh.OnStream(pub) == Abort && pub.cancel() {
			x.logger.Debug("stream aborted before subscription")
		}
		return
	}

	e.readParts(x, resp, h)
}

func (e *Engine) readParts(x *execution, resp *http.Response, h Handler) {
	defer e.closeBody(resp)

	buf := make([]byte, e.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 && h.OnBodyPartReceived(bytes.Clone(buf[:n])) == Abort {
			x.succeed(h)
			return
		}

		switch {
		case errors.Is(err, io.EOF):
			x.succeed(h)
			return
		case err != nil:
			x.fail(h, fmt.Errorf("reading body: %w", err))
			return
		}
	}
}

func (e *Engine) abort(x *execution, resp *http.Response, h Handler) {
	e.closeBody(resp)
	x.logger.Debug("execution aborted by handler")
	x.succeed(h)
}

func (e *Engine) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		e.logger.Error("failed to close response body", "error", err)
	}
}

// /////////////////////////////////////////////////////////////////

// execution carries the per-request observability state.
type execution struct {
	e      *Engine
	ctx    context.Context
	span   trace.Span
	logger *slog.Logger
	start  time.Time
	ended  atomic.Bool
}

func (e *Engine) start(req *Request) *execution {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	target := ""
	if req.URL != nil {
		target = req.URL.Redacted()
	}

	ctx, span := e.tracer.Start(ctx, "asynchttp.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("asynchttp.exec_id", id),
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", target),
		),
	)

	logger := e.logger.With("exec_id", id, "method", req.Method, "url", target)
	logger.Debug("execution started")

	return &execution{
		e:      e,
		ctx:    ctx,
		span:   span,
		logger: logger,
		start:  time.Now(),
	}
}

// end closes the span once; err marks it failed.
func (x *execution) end(err error) bool {
	if !x.ended.CompareAndSwap(false, true) {
		return false
	}
	if err != nil {
		x.span.RecordError(err)
		x.span.SetStatus(codes.Error, err.Error())
	}
	x.span.End()
	x.e.inFlight.Add(-1)
	return true
}

func (x *execution) succeed(h Handler) {
	if !x.end(nil) {
		return
	}
	x.logger.Debug("execution completed", "elapsed", time.Since(x.start).Round(time.Millisecond))
	h.OnCompleted()
}

func (x *execution) fail(h Handler, err error) {
	if !x.end(err) {
		return
	}
	x.logger.Debug("execution failed", "error", err, "elapsed", time.Since(x.start).Round(time.Millisecond))
	h.OnThrowable(err)
}

// /////////////////////////////////////////////////////////////////

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// headerList flattens h in canonical key order, keeping value order.
func headerList(h http.Header) []Header {
	var list []Header
	for _, k := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[k] {
			list = append(list, Header{Name: k, Value: v})
		}
	}

	return list
}

func hasBody(resp *http.Response) bool {
	return resp.Body != nil && resp.Body != http.NoBody && resp.ContentLength != 0
}
