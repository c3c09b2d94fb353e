package asynchttp

import "strings"

// Response is a received response with its body materialized as a T.
// Headers are listed exactly as the engine reported them.
type Response[T any] struct {
	Body    T
	Code    int
	Headers []Header
}

// Header returns the first value of name, or "" when absent.
func (r Response[T]) Header(name string) string {
	v, _ := headerValue(r.Headers, name)
	return v
}

// HeaderValues returns every value of name in order.
func (r Response[T]) HeaderValues(name string) []string {
	var values []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// IsSuccess reports a 2xx status.
func (r Response[T]) IsSuccess() bool {
	return r.Code >= 200 && r.Code < 300
}
