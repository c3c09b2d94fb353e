package asynchttp

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/adamwoolhether/asynchttp/engine"
)

// translate converts req into the engine's native request. It never fails;
// a missing or malformed Content-Length on a StreamBody means unknown length.
func translate[T any](req Request[T]) *engine.Request {
	native := &engine.Request{
		Context: req.Context,
		Method:  string(req.Method),
		URL:     req.URI,
		Headers: make([]engine.Header, len(req.Headers)),
	}
	for i, h := range req.Headers {
		native.Headers[i] = engine.Header{Name: h.Name, Value: h.Value}
	}

	switch b := req.Body.(type) {
	case nil, NoBody:
	case StringBody:
		native.Body = engine.BytesBody(encodeString(b.Text, b.Encoding))
	case BytesBody:
		native.Body = engine.BytesBody(b.Bytes)
	case BufferBody:
		native.Body = engine.BufferBody(b.Buffer)
	case ReaderBody:
		native.Body = engine.ReaderBody(b.Reader)
	case FileBody:
		native.Body = engine.FileBody(b.Path)
	case StreamBody:
		native.Body = engine.PublisherBody(seqPublisher{src: b.Source}, contentLength(req.Headers))
	default:
		panic(defect("unknown request body %T", b))
	}

	return native
}

func encodeString(text string, enc encoding.Encoding) []byte {
	if enc == nil {
		return []byte(text)
	}

	b, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return []byte(text)
	}
	return b
}

// contentLength reads the declared Content-Length, or -1.
func contentLength(headers []Header) int64 {
	v, ok := headerValue(headers, "Content-Length")
	if !ok {
		return -1
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// seqPublisher pushes the chunks of a Stream to a subscriber.
type seqPublisher struct {
	src Stream
}

func (p seqPublisher) Subscribe(s engine.Subscriber) {
	if p.src != nil {
		for chunk, err := range p.src {
			if err != nil {
				s.OnError(err)
				return
			}
			if s.OnNext(chunk) == engine.Abort {
				return
			}
		}
	}
	s.OnComplete()
}
