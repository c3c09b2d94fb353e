package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// bodyPublisher pushes a response body to its one subscriber. Reading starts
// on a dedicated goroutine at subscription and done is called once the body
// has been drained, aborted or failed.
type bodyPublisher struct {
	body       io.ReadCloser
	chunkSize  int
	logger     *slog.Logger
	done       func(err error)
	subscribed atomic.Bool
}

func (p *bodyPublisher) Subscribe(s Subscriber) {
	if !p.subscribed.CompareAndSwap(false, true) {
		s.OnError(ErrAlreadySubscribed)
		return
	}

	go p.pump(s)
}

// cancel closes the body if nobody subscribed yet.
func (p *bodyPublisher) cancel() bool {
	if !p.subscribed.CompareAndSwap(false, true) {
		return false
	}
	p.finish(nil)
	return true
}

func (p *bodyPublisher) pump(s Subscriber) {
	buf := make([]byte, p.chunkSize)
	for {
		n, err := p.body.Read(buf)
		if n > 0 && s.OnNext(bytes.Clone(buf[:n])) == Abort {
			p.finish(nil)
			return
		}

		switch {
		case errors.Is(err, io.EOF):
			s.OnComplete()
			p.finish(nil)
			return
		case err != nil:
			err = fmt.Errorf("reading body: %w", err)
			s.OnError(err)
			p.finish(err)
			return
		}
	}
}

func (p *bodyPublisher) finish(err error) {
	if cerr := p.body.Close(); cerr != nil {
		p.logger.Error("failed to close response body", "error", cerr)
	}
	p.done(err)
}
