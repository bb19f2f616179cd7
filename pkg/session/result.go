package session

// Result carries an operation's data and its provenance: live data from
// the engine, or the offline fallback together with why it was used.
type Result[T any] struct {
	data  T
	live  bool
	cause error
}

// Live wraps data obtained from the engine.
func Live[T any](data T) Result[T] {
	return Result[T]{data: data, live: true}
}

// Fallback wraps substitute data and the error that forced it.
func Fallback[T any](data T, cause error) Result[T] {
	return Result[T]{data: data, cause: cause}
}

// Data returns the payload regardless of provenance.
func (r Result[T]) Data() T { return r.data }

// IsLive reports whether the data came from the engine.
func (r Result[T]) IsLive() bool { return r.live }

// IsFallback reports whether the data is a substitute.
func (r Result[T]) IsFallback() bool { return !r.live }

// Cause returns the error behind a fallback, or nil for live results.
func (r Result[T]) Cause() error { return r.cause }
