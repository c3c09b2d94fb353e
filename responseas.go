package asynchttp

import (
	"hash"

	"github.com/adamwoolhether/asynchttp/filesink"
)

// ResponseAs selects how a response body is materialized as a T. It is one
// of [IgnoreAs], [StringAs], [BytesAs], [FileAs] or [StreamAs]. Only
// StreamAs is delivered incrementally; every other mode is decoded once the
// body has been fully received.
type ResponseAs[T any] interface {
	responseAs(T)
}

// IgnoreAs drains and discards the body.
type IgnoreAs struct{}

// StringAs decodes the body as text in Charset, UTF-8 when empty. Charset
// takes the names of the WHATWG encoding standard, e.g. "latin1".
type StringAs struct {
	Charset string
}

// BytesAs returns the raw body.
type BytesAs struct{}

// FileAs writes the body to Path and yields that path. Without Overwrite an
// existing file fails the request and is left untouched.
type FileAs struct {
	Path      string
	Overwrite bool
	Options   []FileOption
}

// StreamAs hands the body to Adapt as a lazy Stream as soon as the headers
// are in, and yields what Adapt returns.
type StreamAs[T any] struct {
	Adapt func(Stream) T
}

func (IgnoreAs) responseAs(struct{}) {}
func (StringAs) responseAs(string)   {}
func (BytesAs) responseAs([]byte)    {}
func (FileAs) responseAs(string)     {}
func (StreamAs[T]) responseAs(T)     {}

// Ignore returns the IgnoreAs mode.
func Ignore() ResponseAs[struct{}] { return IgnoreAs{} }

// AsString returns the StringAs mode for charset.
func AsString(charset string) ResponseAs[string] { return StringAs{Charset: charset} }

// AsBytes returns the BytesAs mode.
func AsBytes() ResponseAs[[]byte] { return BytesAs{} }

// AsFile returns the FileAs mode.
func AsFile(path string, overwrite bool, opts ...FileOption) ResponseAs[string] {
	return FileAs{Path: path, Overwrite: overwrite, Options: opts}
}

// AsStream returns the StreamAs mode. A nil adapt yields the Stream itself
// when T is Stream.
func AsStream[T any](adapt func(Stream) T) ResponseAs[T] {
	return StreamAs[T]{Adapt: adapt}
}

// /////////////////////////////////////////////////////////////////

type (
	// FileOption configures the file written for a FileAs response.
	FileOption = filesink.Option

	// FileError wraps a file sink sentinel error with additional detail.
	FileError = filesink.Error
)

var (
	// ErrFileExists indicates a FileAs target exists and overwriting is off.
	ErrFileExists = filesink.ErrFileExists

	// ErrChecksumMismatch indicates the written file failed verification.
	ErrChecksumMismatch = filesink.ErrChecksumMismatch
)

// WithChecksum enables checksum validation of a FileAs response.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) FileOption {
	return filesink.WithChecksum(h, expected)
}

// WithProgress enables periodic progress logging while a FileAs response
// is written.
func WithProgress() FileOption { return filesink.WithProgress() }
