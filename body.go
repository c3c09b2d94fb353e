package asynchttp

import (
	"bytes"
	"io"
	"iter"

	"golang.org/x/text/encoding"
)

// Stream is a lazy sequence of byte chunks. A non-nil error ends it.
type Stream = iter.Seq2[[]byte, error]

// RequestBody is the payload of a Request. It is one of [NoBody],
// [StringBody], [BytesBody], [BufferBody], [ReaderBody], [FileBody] or
// [StreamBody].
type RequestBody interface {
	requestBody()
}

// NoBody sends no payload.
type NoBody struct{}

// StringBody sends Text encoded with Encoding, UTF-8 when nil. Runes the
// encoding cannot represent are replaced.
type StringBody struct {
	Text     string
	Encoding encoding.Encoding
}

// BytesBody sends Bytes as is.
type BytesBody struct {
	Bytes []byte
}

// BufferBody sends the unread portion of Buffer.
type BufferBody struct {
	Buffer *bytes.Buffer
}

// ReaderBody streams Reader with an unknown length.
type ReaderBody struct {
	Reader io.Reader
}

// FileBody streams the file at Path.
type FileBody struct {
	Path string
}

// StreamBody streams the chunks of Source. The length sent is taken from
// the request's Content-Length header, if any.
type StreamBody struct {
	Source Stream
}

func (NoBody) requestBody()     {}
func (StringBody) requestBody() {}
func (BytesBody) requestBody()  {}
func (BufferBody) requestBody() {}
func (ReaderBody) requestBody() {}
func (FileBody) requestBody()   {}
func (StreamBody) requestBody() {}

// StreamOf returns a Stream over fixed chunks.
func StreamOf(chunks ...[]byte) Stream {
	return func(yield func([]byte, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// ReadAll drains s into one slice, stopping at the first error.
func ReadAll(s Stream) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range s {
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}

	return buf.Bytes(), nil
}
