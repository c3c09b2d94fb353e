package asynchttp

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/asynchttp/effect"
	"github.com/adamwoolhether/asynchttp/engine"
)

// streamHandler delivers the response as soon as the body publisher is
// known, or on completion for bodiless responses, whichever comes first.
// Either path may fire, in any order and from different goroutines; only
// the first one builds the response.
type streamHandler[T, F, FF any] struct {
	adapt  func(Stream) T
	m      effect.Monad[Response[T], F, FF]
	cb     effect.Callback[F]
	logger *slog.Logger

	completed atomic.Bool

	mu      sync.Mutex
	code    int
	headers []Header
	pub     engine.Publisher
}

func (h *streamHandler[T, F, FF]) OnStatusReceived(code int) engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.code = code
	return engine.Continue
}

func (h *streamHandler[T, F, FF]) OnHeadersReceived(headers []engine.Header) engine.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.headers = appendHeaders(h.headers, headers)
	return engine.Continue
}

// OnBodyPartReceived means the engine ignored the streamed handler shape.
func (h *streamHandler[T, F, FF]) OnBodyPartReceived([]byte) engine.State {
	panic(defect("body part delivered to a streaming handler"))
}

func (h *streamHandler[T, F, FF]) OnStream(p engine.Publisher) engine.State {
	h.mu.Lock()
	h.pub = p
	h.mu.Unlock()

	// OnCompleted only follows once the body is drained, which needs the
	// response delivered first.
	h.complete()
	return engine.Continue
}

func (h *streamHandler[T, F, FF]) OnCompleted() {
	h.complete()
}

func (h *streamHandler[T, F, FF]) OnThrowable(err error) {
	var zero F
	h.cb(zero, err)
}

func (h *streamHandler[T, F, FF]) complete() {
	if !h.completed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	resp := Response[T]{Code: h.code, Headers: slices.Clone(h.headers)}
	pub := h.pub
	h.mu.Unlock()

	if pub == nil {
		h.logger.Debug("completed without body publisher")
		pub = emptyPublisher{}
	}
	resp.Body = h.adapt(publisherStream(pub))

	h.cb(h.m.Unit(resp), nil)
}

// emptyPublisher completes its subscriber straight away.
type emptyPublisher struct{}

func (emptyPublisher) Subscribe(s engine.Subscriber) {
	s.OnComplete()
}

// /////////////////////////////////////////////////////////////////

// publisherStream exposes p as a single-use Stream. Chunks are handed over
// one at a time; the publisher is held back until the previous chunk has
// been taken. Leaving the range early cancels the subscription.
func publisherStream(p engine.Publisher) Stream {
	var used atomic.Bool

	return func(yield func([]byte, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(nil, ErrStreamConsumed)
			return
		}

		sub := newChanSubscriber()
		defer sub.cancel()
		go p.Subscribe(sub)

		for ev := range sub.events {
			switch {
			case ev.err != nil:
				yield(nil, ev.err)
				return
			case ev.end:
				return
			case !yield(ev.chunk, nil):
				return
			}
		}
	}
}

type event struct {
	chunk []byte
	err   error
	end   bool
}

// chanSubscriber forwards publisher callbacks to a pulling consumer.
type chanSubscriber struct {
	events chan event
	done   chan struct{}
	once   sync.Once
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{
		events: make(chan event, 1),
		done:   make(chan struct{}),
	}
}

func (s *chanSubscriber) OnNext(chunk []byte) engine.State {
	select {
	case <-s.done:
		return engine.Abort
	default:
	}

	select {
	case s.events <- event{chunk: chunk}:
		return engine.Continue
	case <-s.done:
		return engine.Abort
	}
}

func (s *chanSubscriber) OnError(err error) {
	s.send(event{err: err, end: true})
}

func (s *chanSubscriber) OnComplete() {
	s.send(event{end: true})
}

func (s *chanSubscriber) send(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *chanSubscriber) cancel() {
	s.once.Do(func() { close(s.done) })
}
