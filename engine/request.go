package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Request is the engine's native request.
type Request struct {
	Context context.Context
	Method  string
	URL     *url.URL
	Headers []Header
	Body    Body
}

// Body is a request payload the engine knows how to send. Open returns the
// bytes to send and their length, or -1 when unknown.
type Body interface {
	Open() (io.Reader, int64, error)
}

// BytesBody sends b as is.
func BytesBody(b []byte) Body { return bytesBody(b) }

// BufferBody sends the unread portion of buf.
func BufferBody(buf *bytes.Buffer) Body { return bufferBody{buf: buf} }

// ReaderBody streams r with an unknown length.
func ReaderBody(r io.Reader) Body { return readerBody{r: r} }

// FileBody streams the file at path.
func FileBody(path string) Body { return fileBody(path) }

// PublisherBody streams the chunks of p. contentLength is -1 when unknown,
// in which case the request is sent chunked.
func PublisherBody(p Publisher, contentLength int64) Body {
	return publisherBody{p: p, length: contentLength}
}

type bytesBody []byte

func (b bytesBody) Open() (io.Reader, int64, error) {
	return bytes.NewReader(b), int64(len(b)), nil
}

type bufferBody struct{ buf *bytes.Buffer }

func (b bufferBody) Open() (io.Reader, int64, error) {
	if b.buf == nil {
		return bytes.NewReader(nil), 0, nil
	}
	return b.buf, int64(b.buf.Len()), nil
}

type readerBody struct{ r io.Reader }

func (b readerBody) Open() (io.Reader, int64, error) {
	return b.r, -1, nil
}

type fileBody string

func (b fileBody) Open() (io.Reader, int64, error) {
	f, err := os.Open(string(b))
	if err != nil {
		return nil, 0, fmt.Errorf("opening body file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat body file: %w", err)
	}

	return f, info.Size(), nil
}

type publisherBody struct {
	p      Publisher
	length int64
}

func (b publisherBody) Open() (io.Reader, int64, error) {
	pr, pw := io.Pipe()
	go b.p.Subscribe(&pipeSubscriber{pw: pw})

	return pr, b.length, nil
}

// pipeSubscriber feeds published chunks into the request body pipe.
type pipeSubscriber struct {
	pw *io.PipeWriter
}

func (s *pipeSubscriber) OnNext(chunk []byte) State {
	if _, err := s.pw.Write(chunk); err != nil {
		return Abort
	}
	return Continue
}

func (s *pipeSubscriber) OnError(err error) {
	_ = s.pw.CloseWithError(err)
}

func (s *pipeSubscriber) OnComplete() {
	_ = s.pw.Close()
}

// build converts r into an *http.Request bound to ctx.
func (r *Request) build(ctx context.Context) (*http.Request, error) {
	if r.URL == nil {
		return nil, ErrMissingURL
	}

	var (
		body   io.Reader
		length int64
	)
	if r.Body != nil {
		var err error
		if body, length, err = r.Body.Open(); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if body != nil {
		switch {
		case length == 0:
			_ = req.Body.Close()
			req.Body = http.NoBody
			req.ContentLength = 0
		case length > 0:
			req.ContentLength = length
		default:
			req.ContentLength = -1
		}
	}

	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	return req, nil
}
