package tcpdial

import "context"

// Readiness names the I/O condition an Event can suspend on.
type Readiness int

const (
	Readable Readiness = iota
	Writable
)

func (r Readiness) String() string {
	switch r {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	}
	return "unknown"
}

// Reactor is a readiness-based I/O multiplexer: it lets a single-threaded
// cooperative scheduler manage many sockets by suspending a logical
// operation until its descriptor becomes ready. The dialer consumes this
// interface; it does not provide an implementation.
type Reactor interface {
	// Register places fd under the reactor's watch and returns the
	// registration handle. The fd is expected to be in non-blocking mode.
	Register(fd int) (Event, error)
}

// Event is one registered descriptor.
type Event interface {
	// Wait suspends the caller until the descriptor is ready for the given
	// condition, or ctx is done. Only connect completion (Writable) is
	// waited on by the dialer; no other suspension points exist.
	Wait(ctx context.Context, readiness Readiness) error

	// Close releases the registration. It must be called before the
	// descriptor is closed or handed off.
	Close() error
}
