// Package httpwire is a small HTTP/1.x toolkit: an asynchronous TCP
// connector produces a connected socket, the caller wraps it in a buffered
// stream, and a wire-level protocol engine drives the request/response
// exchange over that stream. The modeled protocol is HTTP/1.0-style
// one-shot request/response, with HTTP/1.1 chunked encoding available for
// outbound bodies only.
package httpwire

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mel2oo/go-httpwire/optionals"
	"github.com/mel2oo/go-httpwire/stream"
	"github.com/mel2oo/go-httpwire/tcpdial"
	"github.com/mel2oo/go-httpwire/trace"
	"github.com/mel2oo/go-httpwire/wire"
)

// Client is one outbound HTTP/1.x connection: the connected socket, the
// stream wrapping it, and the protocol engine bound to the stream.
type Client struct {
	id   uuid.UUID
	host string

	file   *os.File
	stream *stream.Stream
	conn   *wire.Conn

	collector *trace.Collector
	log       *zap.Logger
}

// Dial connects to host:port and binds a protocol engine to the connection.
// The returned client owns the socket; Close releases it.
func Dial(ctx context.Context, host, port string, opts ...Option) (*Client, error) {
	options := NewOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if len(host) > wire.MaxHost {
		return nil, errors.Errorf("host too long: %d", len(host))
	}

	dialer := &tcpdial.Dialer{
		Reactor:  options.Reactor,
		Resolver: options.Resolver,
		Timeout:  options.ConnectTimeout,
		Logger:   options.Logger,
	}

	fd, err := dialer.Dial(ctx, host, port)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s:%s", host, port)
	}

	file := os.NewFile(uintptr(fd), net.JoinHostPort(host, port))
	s := stream.NewSize(file, options.MaxLine)

	return &Client{
		id:        uuid.New(),
		host:      host,
		file:      file,
		stream:    s,
		conn:      wire.NewConn(s),
		collector: options.Collector,
		log:       options.Logger,
	}, nil
}

// ID identifies this connection across logs and traces.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Conn exposes the protocol engine for callers driving the exchange
// themselves.
func (c *Client) Conn() *wire.Conn {
	return c.conn
}

// Close flushes buffered writes and releases the socket.
func (c *Client) Close() error {
	return multierr.Append(c.stream.Flush(), c.file.Close())
}

// Get issues a GET for path, copies the response body into dst (or discards
// it when dst is nil) and returns the response status. The exchange is
// recorded if the client was built with a collector.
func (c *Client) Get(path string, dst io.Writer) (wire.Status, error) {
	ex := trace.NewExchange(c.host)
	ex.Request = trace.Request{
		Method:  "GET",
		Path:    path,
		Version: wire.Version10,
		Headers: []trace.Header{{Name: "Host", Value: c.host}},
	}

	if err := c.conn.WriteRequest("", "GET", "%s", path); err != nil {
		return 0, err
	}
	if err := c.conn.WriteHeader("Host", "%s", c.host); err != nil {
		return 0, err
	}
	if err := c.conn.EndHeaders(); err != nil {
		return 0, err
	}

	version, status, reason, err := c.conn.ReadResponse()
	if err != nil {
		return 0, errors.Wrap(err, "read response")
	}
	ex.Response = trace.Response{
		Version: version,
		Status:  int(status),
		Reason:  reason,
	}

	contentLength := optionals.None[int64]()
	for {
		name, value, herr := c.conn.ReadHeader()
		if herr == io.EOF {
			break
		}
		if herr != nil {
			return status, errors.Wrap(herr, "read response header")
		}
		ex.Response.Headers = append(ex.Response.Headers, trace.Header{Name: name, Value: value})
		if name == "Content-Length" {
			if n, perr := strconv.ParseInt(value, 10, 64); perr == nil && n >= 0 {
				contentLength = optionals.Some(n)
			}
		}
	}

	if dst == nil {
		dst = io.Discard
	}
	counted := &countingWriter{w: dst}
	if err := c.conn.ReadFile(counted, contentLength); err != nil {
		return status, errors.Wrap(err, "read response body")
	}
	ex.Response.BodySize = counted.n
	ex.Duration = time.Since(ex.Start)

	if c.collector != nil {
		c.collector.Record(ex)
	}

	c.log.Info("exchange complete",
		zap.Stringer("id", ex.ID),
		zap.String("path", path),
		zap.Int("status", int(status)),
		zap.Int64("body_bytes", counted.n),
	)

	return status, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
