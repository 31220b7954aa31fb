package httpwire

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mel2oo/go-httpwire/server"
	"github.com/mel2oo/go-httpwire/tcpdial"
	"github.com/mel2oo/go-httpwire/trace"
	"github.com/mel2oo/go-httpwire/wire"
)

// startServer runs a one-exchange-per-connection server on an ephemeral
// loopback port and returns its host and port.
func startServer(t *testing.T, s *server.Server) (host, port string) {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go s.Serve(ln)

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func newEchoServer() *server.Server {
	s := server.New(nil)
	s.Handle("GET", "/greeting", server.HandlerFunc(func(w *server.ResponseWriter, req *server.Request) error {
		if err := req.DrainHeaders(); err != nil {
			return err
		}
		if err := w.WriteResponse(wire.StatusOK, ""); err != nil {
			return err
		}
		return w.WriteFile(strings.NewReader("hello there"), 11)
	}))
	return s
}

func TestClientGet(t *testing.T) {
	host, port := startServer(t, newEchoServer())

	collector := trace.NewCollector()
	client, err := Dial(context.Background(), host, port, WithCollector(collector))
	require.NoError(t, err)
	defer client.Close()

	var body bytes.Buffer
	status, err := client.Get("/greeting", &body)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, "hello there", body.String())

	exchanges := collector.Exchanges()
	require.Len(t, exchanges, 1)
	ex := exchanges[0]
	assert.NotEqual(t, client.ID(), ex.ID)
	assert.Equal(t, host, ex.Host)
	assert.Equal(t, "GET", ex.Request.Method)
	assert.Equal(t, "/greeting", ex.Request.Path)
	assert.Equal(t, 200, ex.Response.Status)
	assert.Equal(t, int64(11), ex.Response.BodySize)
	assert.NotZero(t, ex.Duration)
}

func TestClientGetNotFound(t *testing.T) {
	host, port := startServer(t, newEchoServer())

	client, err := Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer client.Close()

	status, err := client.Get("/absent", nil)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusNotFound, status)
}

// waitReactor suspends pending connects with a plain poll loop, enough to
// exercise the non-blocking dial path end to end.
type waitReactor struct{}

func (waitReactor) Register(fd int) (tcpdial.Event, error) {
	return waitEvent(fd), nil
}

type waitEvent int

func (e waitEvent) Wait(ctx context.Context, readiness tcpdial.Readiness) error {
	events := int16(unix.POLLOUT)
	if readiness == tcpdial.Readable {
		events = unix.POLLIN
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds := []unix.PollFd{{Fd: int32(e), Events: events}}
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

func (waitEvent) Close() error {
	return nil
}

func TestClientGetThroughReactor(t *testing.T) {
	host, port := startServer(t, newEchoServer())

	client, err := Dial(context.Background(), host, port,
		WithReactor(waitReactor{}),
		WithConnectTimeout(5*time.Second),
	)
	require.NoError(t, err)
	defer client.Close()

	var body bytes.Buffer
	status, err := client.Get("/greeting", &body)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, status)
	assert.Equal(t, "hello there", body.String())
}

func TestDialHostTooLong(t *testing.T) {
	_, err := Dial(context.Background(), strings.Repeat("h", wire.MaxHost+1), "80")
	assert.Error(t, err)
}

func TestDialConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
}
