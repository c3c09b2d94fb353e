package engine

import "errors"

var (
	// ErrClosed is delivered to handlers of executions started after Close.
	ErrClosed = errors.New("engine closed")

	// ErrAlreadySubscribed is delivered to a second subscriber of a response
	// body publisher.
	ErrAlreadySubscribed = errors.New("publisher already subscribed")

	// ErrMissingURL is delivered when a request carries no URL.
	ErrMissingURL = errors.New("request url must not be nil")
)
