package tcpdial

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// staticResolver returns a fixed candidate list, bypassing DNS.
type staticResolver struct {
	candidates []Candidate
}

func (r staticResolver) Resolve(ctx context.Context, host, port string) ([]Candidate, error) {
	return r.candidates, nil
}

// pollReactor is a minimal reactor for tests: Wait polls the descriptor
// until it is ready or the context runs out.
type pollReactor struct {
	registered int
}

func (r *pollReactor) Register(fd int) (Event, error) {
	r.registered++
	return &pollEvent{fd: fd}, nil
}

type pollEvent struct {
	fd int
}

func (e *pollEvent) Wait(ctx context.Context, readiness Readiness) error {
	events := int16(unix.POLLOUT)
	if readiness == Readable {
		events = unix.POLLIN
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds := []unix.PollFd{{Fd: int32(e.fd), Events: events}}
		n, err := unix.Poll(fds, 20)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}

func (e *pollEvent) Close() error {
	return nil
}

// failingReactor refuses every registration.
type failingReactor struct {
	registered int
}

func (r *failingReactor) Register(fd int) (Event, error) {
	r.registered++
	return nil, errors.New("reactor full")
}

func loopbackCandidate(t *testing.T, port int) Candidate {
	t.Helper()
	c, ok := newCandidate(net.ParseIP("127.0.0.1"), port)
	require.True(t, ok)
	return c
}

// listenTCP opens a loopback listener on an ephemeral port.
func listenTCP(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	return ln, ln.Addr().(*net.TCPAddr).Port
}

// deadPort returns a loopback port with nothing listening on it.
func deadPort(t *testing.T) int {
	t.Helper()
	ln, port := listenTCP(t)
	require.NoError(t, ln.Close())
	return port
}

func TestDialFallsThroughCandidates(t *testing.T) {
	ln, livePort := listenTCP(t)
	defer ln.Close()

	reactor := &pollReactor{}
	d := &Dialer{
		Reactor: reactor,
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, deadPort(t)),
			loopbackCandidate(t, deadPort(t)),
			loopbackCandidate(t, livePort),
		}},
		Timeout: 5 * time.Second,
	}

	fd, err := d.Dial(context.Background(), "test", "0")
	require.NoError(t, err)
	defer unix.Close(fd)

	// One registration per attempted candidate: two failures plus the
	// success.
	assert.Equal(t, 3, reactor.registered)

	conn, err := ln.Accept()
	require.NoError(t, err)
	conn.Close()
}

func TestDialFirstCandidateWins(t *testing.T) {
	ln, livePort := listenTCP(t)
	defer ln.Close()

	reactor := &pollReactor{}
	d := &Dialer{
		Reactor: reactor,
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, livePort),
			loopbackCandidate(t, deadPort(t)),
		}},
	}

	fd, err := d.Dial(context.Background(), "test", "0")
	require.NoError(t, err)
	defer unix.Close(fd)

	assert.Equal(t, 1, reactor.registered)
}

func TestDialEmptyCandidateList(t *testing.T) {
	d := &Dialer{
		Reactor:  &pollReactor{},
		Resolver: staticResolver{},
	}

	_, err := d.Dial(context.Background(), "nowhere", "0")
	assert.Equal(t, ErrNoAddresses, errors.Cause(err))
}

func TestDialAllCandidatesFail(t *testing.T) {
	d := &Dialer{
		Reactor: &pollReactor{},
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, deadPort(t)),
			loopbackCandidate(t, deadPort(t)),
		}},
	}

	_, err := d.Dial(context.Background(), "test", "0")
	require.Error(t, err)
	assert.NotEqual(t, ErrNoAddresses, errors.Cause(err))
}

func TestDialBlockingWithoutReactor(t *testing.T) {
	ln, livePort := listenTCP(t)
	defer ln.Close()

	d := &Dialer{
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, livePort),
		}},
	}

	fd, err := d.Dial(context.Background(), "test", "0")
	require.NoError(t, err)
	unix.Close(fd)
}

func TestDialReactorFailureAborts(t *testing.T) {
	ln, livePort := listenTCP(t)
	defer ln.Close()

	reactor := &failingReactor{}
	d := &Dialer{
		Reactor: reactor,
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, livePort),
			loopbackCandidate(t, livePort),
		}},
	}

	_, err := d.Dial(context.Background(), "test", "0")
	require.Error(t, err)

	// An unusable reactor aborts the whole dial: no second candidate.
	assert.Equal(t, 1, reactor.registered)
}

func TestDialContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Dialer{
		Reactor: &pollReactor{},
		Resolver: staticResolver{candidates: []Candidate{
			loopbackCandidate(t, deadPort(t)),
		}},
	}

	// The candidate fails either way; canceled context must not panic or
	// hang.
	_, err := d.Dial(ctx, "test", "0")
	assert.Error(t, err)
}

func TestNewCandidate(t *testing.T) {
	c4, ok := newCandidate(net.ParseIP("192.0.2.7"), 8080)
	require.True(t, ok)
	assert.Equal(t, unix.AF_INET, c4.Family)
	assert.Equal(t, "192.0.2.7:8080", c4.String())
	_, isV4 := c4.Addr.(*unix.SockaddrInet4)
	assert.True(t, isV4)

	c6, ok := newCandidate(net.ParseIP("2001:db8::1"), 443)
	require.True(t, ok)
	assert.Equal(t, unix.AF_INET6, c6.Family)
	assert.Equal(t, "[2001:db8::1]:443", c6.String())
	_, isV6 := c6.Addr.(*unix.SockaddrInet6)
	assert.True(t, isV6)
}
