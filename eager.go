package asynchttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/adamwoolhether/asynchttp/effect"
	"github.com/adamwoolhether/asynchttp/engine"
	"github.com/adamwoolhether/asynchttp/filesink"
)

// eagerHandler buffers the whole body and decodes it on completion.
type eagerHandler[T, F, FF any] struct {
	ctx    context.Context
	as     ResponseAs[T]
	m      effect.Monad[Response[T], F, FF]
	cb     effect.Callback[F]
	logger *slog.Logger

	mu      sync.Mutex
	code    int
	headers []Header
	body    bytes.Buffer
}

func (h *eagerHandler[T, F, FF]) OnStatusReceived(code int) engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.code = code
	return engine.Continue
}

func (h *eagerHandler[T, F, FF]) OnHeadersReceived(headers []engine.Header) engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.headers = appendHeaders(h.headers, headers)
	return engine.Continue
}

func (h *eagerHandler[T, F, FF]) OnBodyPartReceived(part []byte) engine.State {
	if _, ok := any(h.as).(IgnoreAs); ok {
		return engine.Continue
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.body.Write(part)
	return engine.Continue
}

func (h *eagerHandler[T, F, FF]) OnCompleted() {
	h.mu.Lock()
	code, headers, body := h.code, slices.Clone(h.headers), h.body.Bytes()
	h.mu.Unlock()

	decoded, err := decodeEager(h.ctx, h.as, body, h.logger)
	if err != nil {
		h.logger.Debug("decoding response body", "error", err)
		h.cb(h.m.Error(err), nil)
		return
	}

	h.cb(h.m.Map(h.m.Unit(Response[T]{Body: decoded}), func(r Response[T]) Response[T] {
		r.Code = code
		r.Headers = headers
		return r
	}), nil)
}

func (h *eagerHandler[T, F, FF]) OnThrowable(err error) {
	var zero F
	h.cb(zero, err)
}

// decodeEager materializes a fully received body according to as.
func decodeEager[T any](ctx context.Context, as ResponseAs[T], body []byte, logger *slog.Logger) (T, error) {
	var zero T

	switch a := any(as).(type) {
	case IgnoreAs:
		return any(struct{}{}).(T), nil

	case StringAs:
		s, err := decodeString(body, a.Charset)
		if err != nil {
			return zero, &DecodeError{Mode: "string", Err: err}
		}
		return any(s).(T), nil

	case BytesAs:
		return any(body).(T), nil

	case FileAs:
		if _, err := filesink.Write(ctx, bytes.NewReader(body), int64(len(body)), a.Path, a.Overwrite, logger, a.Options...); err != nil {
			return zero, &DecodeError{Mode: "file", Err: err}
		}
		return any(a.Path).(T), nil

	case StreamAs[T]:
		return zero, defect("eager decode requested for a streamed response")

	default:
		return zero, defect("unknown response mode %T", as)
	}
}

// decodeString decodes body from charset, UTF-8 when empty.
func decodeString(body []byte, charset string) (string, error) {
	if charset == "" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCharset, charset)
	}

	b, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", charset, err)
	}
	return string(b), nil
}

func appendHeaders(dst []Header, src []engine.Header) []Header {
	for _, h := range src {
		dst = append(dst, Header{Name: h.Name, Value: h.Value})
	}
	return dst
}
