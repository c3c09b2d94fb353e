package engine

// State is returned by handler notifications to tell the engine whether to
// keep going.
type State int

const (
	Continue State = iota
	Abort
)

func (s State) String() string {
	switch s {
	case Continue:
		return "continue"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Header is a single response or request header field.
type Header struct {
	Name  string
	Value string
}

// Handler receives the notifications of a single execution. All methods are
// called from engine goroutines, never from the goroutine calling Execute.
//
// The engine reports the status, then the headers, then every body part in
// order, then OnCompleted. OnThrowable replaces whatever remains of that
// sequence when the execution fails.
type Handler interface {
	OnStatusReceived(code int) State
	OnHeadersReceived(headers []Header) State
	OnBodyPartReceived(part []byte) State
	OnCompleted()
	OnThrowable(err error)
}

// StreamedHandler is a Handler that takes the response body as a Publisher
// rather than as individual parts.
//
// When the response carries a body the engine calls OnStream after the
// headers and fires OnCompleted only once the publisher has delivered its
// last chunk, which requires somebody to subscribe. Bodiless responses skip
// OnStream and go straight to OnCompleted.
type StreamedHandler interface {
	Handler
	OnStream(p Publisher) State
}

// Publisher pushes a sequence of byte chunks to a single Subscriber.
type Publisher interface {
	Subscribe(s Subscriber)
}

// Subscriber consumes the chunks of a Publisher. OnNext blocks the producer
// until it returns; returning Abort cancels the subscription. Exactly one
// of OnError or OnComplete ends a subscription that was not aborted.
type Subscriber interface {
	OnNext(chunk []byte) State
	OnError(err error)
	OnComplete()
}
