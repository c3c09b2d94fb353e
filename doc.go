// Package asynchttp sends HTTP requests through a callback-driven engine and
// returns the responses as values of a caller-chosen effect type.
//
// # Building a Backend
//
// Use [New] to create a [Backend]. It builds and owns an engine unless one
// is supplied with [WithEngine]:
//
//	b, err := asynchttp.New(
//		asynchttp.WithEngineOptions(
//			engine.WithTimeout(10*time.Second),
//			engine.WithUserAgent("myapp/1.0"),
//		),
//	)
//	defer b.Close()
//
// # Sending Requests
//
// A [Request] names how its response body should be materialized with a
// [ResponseAs]. [Send] is generic over the effect type, given as an
// [effect.Monad]:
//
//	req, err := asynchttp.NewRequest(ctx, asynchttp.MethodGet, u, asynchttp.AsString(""))
//	f := asynchttp.Send(b, future.Monad[asynchttp.Response[string]]{}, req)
//	resp, err := f.Await(ctx)
//
// The same call with task.Monad returns a lazy task that issues the request
// each time it runs.
//
// # Streaming Bodies
//
// [AsStream] delivers the response as soon as the headers arrive; the body
// follows as a [Stream] that can be ranged over once:
//
//	req, _ := asynchttp.NewRequest(ctx, asynchttp.MethodGet, u,
//		asynchttp.AsStream(func(s asynchttp.Stream) asynchttp.Stream { return s }))
//	resp, _ := asynchttp.Send(b, future.Monad[asynchttp.Response[asynchttp.Stream]]{}, req).Await(ctx)
//	for chunk, err := range resp.Body {
//		// ...
//	}
//
// The connection stays open until the Stream is drained or the range is
// left early.
//
// # Writing Bodies to Disk
//
// [AsFile] writes the body atomically with optional checksum verification
// and progress reporting:
//
//	asynchttp.AsFile("/tmp/file.bin", false,
//		asynchttp.WithChecksum(sha256.New(), expectedHex),
//		asynchttp.WithProgress(),
//	)
package asynchttp
