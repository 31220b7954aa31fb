// Package tcpdial establishes outbound TCP connections without blocking the
// calling scheduler. A host:port pair is resolved to an ordered candidate
// list; each candidate gets a non-blocking socket whose pending connect is
// multiplexed through a Reactor, suspending only until the socket becomes
// writable. Candidates are tried sequentially until one connects.
package tcpdial

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrNoAddresses is reported when resolution produces an empty candidate
// list. It is pre-set before the candidate loop so an empty list can never
// silently look like a successful connect.
var ErrNoAddresses = errors.New("tcpdial: no usable addresses")

// Dialer connects to a host:port by trying resolved candidates in order.
//
// With a Reactor, sockets are placed in non-blocking mode and the pending
// connect suspends until the reactor reports the socket writable. Without
// one, connects are ordinary blocking syscalls.
type Dialer struct {
	// Reactor multiplexes pending connects. Optional.
	Reactor Reactor

	// Resolver produces the candidate list. Defaults to the system resolver.
	Resolver Resolver

	// Timeout bounds each candidate's pending connect. Zero means no bound
	// beyond ctx. The original behavior had no timeout at all; this is a
	// deliberate enhancement.
	Timeout time.Duration

	// Logger records per-candidate attempts. Defaults to a no-op logger.
	Logger *zap.Logger
}

// reactorFailure marks a failure of the reactor itself. It aborts the whole
// dial instead of falling through to the next candidate, since an unusable
// reactor dooms every candidate equally.
type reactorFailure struct {
	error
}

// Dial resolves host:port and connects to the first reachable candidate,
// returning the connected socket's file descriptor. Ownership of the
// descriptor transfers to the caller, who must close it. On exhaustion the
// last observed error is returned; an empty candidate list reports
// ErrNoAddresses.
func (d *Dialer) Dial(ctx context.Context, host, port string) (int, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = NewResolver()
	}

	candidates, err := resolver.Resolve(ctx, host, port)
	if err != nil {
		return -1, errors.Wrapf(err, "resolve %s:%s", host, port)
	}

	err = ErrNoAddresses
	for _, candidate := range candidates {
		log.Info("connecting",
			zap.String("host", host),
			zap.String("port", port),
			zap.Stringer("candidate", candidate),
		)

		fd, cerr := d.connect(ctx, candidate)
		if cerr != nil {
			log.Warn("connect failed",
				zap.String("host", host),
				zap.String("port", port),
				zap.Stringer("candidate", candidate),
				zap.Error(cerr),
			)
			if errors.As(cerr, &reactorFailure{}) {
				return -1, cerr
			}
			err = cerr
			continue
		}

		log.Info("connected",
			zap.String("host", host),
			zap.String("port", port),
			zap.Stringer("candidate", candidate),
		)
		return fd, nil
	}

	return -1, err
}

// connect runs one candidate's attempt: open a socket, optionally switch it
// to non-blocking mode and register it with the reactor, issue the connect,
// and if it is in progress suspend until writable and read back the pending
// socket error. The registration is always released before returning; the
// socket stays open only on success.
func (d *Dialer) connect(ctx context.Context, candidate Candidate) (_ int, err error) {
	fd, err := unix.Socket(candidate.Family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrapf(err, "socket family %d", candidate.Family)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()

	var event Event
	if d.Reactor != nil {
		if nerr := unix.SetNonblock(fd, true); nerr != nil {
			return -1, errors.Wrap(nerr, "set nonblocking")
		}
		event, err = d.Reactor.Register(fd)
		if err != nil {
			return -1, reactorFailure{errors.Wrap(err, "reactor register")}
		}
		defer event.Close()
	}

	err = unix.Connect(fd, candidate.Addr)
	if err == unix.EINPROGRESS && event != nil {
		wctx := ctx
		if d.Timeout > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, d.Timeout)
			defer cancel()
		}

		if werr := event.Wait(wctx, Writable); werr != nil {
			return -1, errors.Wrap(werr, "wait for connect")
		}

		soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		switch {
		case gerr != nil:
			err = gerr
		case soerr != 0:
			err = unix.Errno(soerr)
		default:
			err = nil
		}
	}
	if err != nil {
		return -1, errors.Wrapf(err, "connect %s", candidate)
	}

	return fd, nil
}
