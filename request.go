package asynchttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodHead    Method = http.MethodHead
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
)

// Header is a single header field. Header lists keep their order and may
// repeat a name; names compare case-insensitively.
type Header struct {
	Name  string
	Value string
}

// Request describes one exchange: what to send and how the response body
// should be materialized as a T.
type Request[T any] struct {
	Context    context.Context
	Method     Method
	URI        *url.URL
	Headers    []Header
	Body       RequestBody
	ResponseAs ResponseAs[T]
}

// headerValue returns the first value of name, case-insensitively.
func headerValue(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// NewRequest builds a Request. A nil ctx means context.Background and an
// empty method means GET.
func NewRequest[T any](ctx context.Context, method Method, uri *url.URL, as ResponseAs[T], opts ...RequestOption) (Request[T], error) {
	if uri == nil {
		return Request[T]{}, ErrMissingURI
	}
	if as == nil {
		return Request[T]{}, ErrMissingResponseAs
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if method == "" {
		method = MethodGet
	}

	var settings requestOpts
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return Request[T]{}, fmt.Errorf("applying request option: %w", err)
		}
	}

	body := settings.body
	if body == nil {
		body = NoBody{}
	}

	return Request[T]{
		Context:    ctx,
		Method:     method,
		URI:        uri,
		Headers:    settings.headers,
		Body:       body,
		ResponseAs: as,
	}, nil
}

// RequestOption is a functional option for [NewRequest].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	headers []Header
	body    RequestBody
}

// WithHeader appends a header field. Repeated names are kept.
func WithHeader(name, value string) RequestOption {
	return func(opts *requestOpts) error {
		if name == "" {
			return errors.New("header name must not be empty")
		}
		opts.headers = append(opts.headers, Header{Name: name, Value: value})

		return nil
	}
}

// WithHeaders appends header fields in order.
func WithHeaders(headers ...Header) RequestOption {
	return func(opts *requestOpts) error {
		for _, h := range headers {
			if h.Name == "" {
				return errors.New("header name must not be empty")
			}
		}
		opts.headers = append(opts.headers, headers...)

		return nil
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}
		opts.headers = append(opts.headers, Header{Name: "Content-Type", Value: contentType})

		return nil
	}
}

// WithBody sets the request payload.
func WithBody(body RequestBody) RequestOption {
	return func(opts *requestOpts) error {
		if body == nil {
			return errors.New("body must not be nil, use NoBody")
		}
		opts.body = body

		return nil
	}
}

// WithCookies adds a Cookie header carrying the given cookies.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		pairs := make([]string, 0, len(cookies))
		for _, c := range cookies {
			if err := c.Valid(); err != nil {
				return fmt.Errorf("invalid cookie: %w", err)
			}
			pairs = append(pairs, (&http.Cookie{Name: c.Name, Value: c.Value, Quoted: c.Quoted}).String())
		}
		if len(pairs) > 0 {
			opts.headers = append(opts.headers, Header{Name: "Cookie", Value: strings.Join(pairs, "; ")})
		}

		return nil
	}
}

// /////////////////////////////////////////////////////////////////

// URL creates a url.URL for use in NewRequest.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}
