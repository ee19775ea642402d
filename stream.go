package relay

// Stream uses a pull-based iterator pattern. Cancellation flows through the
// context passed to Provider.Stream().
//
// Next returns events in exactly the order the provider emitted them and
// io.EOF once the response has completed. An EventTurnCompleted always
// precedes io.EOF on a successful stream. Close releases the underlying
// connection and may be called at any time; after Close, Next returns an
// error wrapping ErrStreamClosed.
type Stream interface {
	Next() (Event, error)
	Close() error
}
