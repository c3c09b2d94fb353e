// Package effect defines the capability set asynchttp requires from an
// asynchronous effect type.
//
// Go has no higher-kinded types, so a [Monad] is instantiated at three
// types: the contained value A, its effect representation F and the
// representation FF of an F nested inside the effect. For a promise type
// that would be:
//
//	effect.Monad[Resp, *future.Future[Resp], *future.Future[*future.Future[Resp]]]
//
// See [github.com/adamwoolhether/asynchttp/effect/future] and
// [github.com/adamwoolhether/asynchttp/effect/task] for two implementations.
package effect

// Callback receives the outcome of an asynchronous operation. Exactly one
// of a value or a non-nil error is meaningful.
type Callback[A any] func(a A, err error)

// Monad is the capability set used by asynchttp.Send.
type Monad[A, F, FF any] interface {
	// Unit wraps a plain value.
	Unit(a A) F

	// Error raises err into the failure channel of the effect.
	Error(err error) F

	// Map transforms the contained value.
	Map(fa F, fn func(A) A) F

	// Async produces an effect resolved by the callback handed to register.
	// Implementations must honour at most one invocation of that callback.
	Async(register func(cb Callback[F])) FF

	// Flatten collapses a nested effect.
	Flatten(ffa FF) F
}
