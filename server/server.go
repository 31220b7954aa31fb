// Package server is a minimal HTTP/1.0 request router on top of the wire
// engine: handlers are registered in order against a method and path prefix,
// each accepted connection carries exactly one request/response exchange,
// and any handler failure is mapped onto a response status instead of
// escaping to the transport.
package server

import (
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/go-httpwire/optionals"
	"github.com/mel2oo/go-httpwire/stream"
	"github.com/mel2oo/go-httpwire/wire"
)

// Handler serves one request. Returning nil means the handler took care of
// the response (or deliberately sent nothing, which the server turns into a
// 500). An error carrying a status, built with wire.Statusf, makes the
// server respond with that status; any other error maps to 500.
type Handler interface {
	Serve(w *ResponseWriter, req *Request) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(w *ResponseWriter, req *Request) error

func (f HandlerFunc) Serve(w *ResponseWriter, req *Request) error {
	return f(w, req)
}

type handlerEntry struct {
	// Empty method or prefix matches any.
	method string
	prefix string

	handler Handler
}

// Server routes incoming requests to registered handlers.
type Server struct {
	handlers []handlerEntry
	log      *zap.Logger
}

// New returns an empty server. A nil logger defaults to a no-op one.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log}
}

// Handle registers a handler for the given method and path prefix, matched
// in registration order with the first match winning. An empty method or
// prefix matches any request.
func (s *Server) Handle(method, prefix string, handler Handler) {
	s.handlers = append(s.handlers, handlerEntry{
		method:  method,
		prefix:  prefix,
		handler: handler,
	})
}

// lookup finds the first registered handler matching the request, or nil
// when none does.
func (s *Server) lookup(method, path string) Handler {
	for _, entry := range s.handlers {
		if entry.method != "" && entry.method != method {
			continue
		}
		if entry.prefix != "" && !strings.HasPrefix(path, entry.prefix) {
			continue
		}
		return entry.handler
	}
	return nil
}

// ListenAndServe listens on addr and serves each accepted connection in its
// own goroutine. Blocks until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	defer ln.Close()
	return s.Serve(ln)
}

// Serve accepts connections from ln until it fails.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "accept")
		}
		go s.ServeConn(conn)
	}
}

// ServeConn handles exactly one request/response exchange on conn and
// closes it.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()

	engine := wire.NewConn(stream.NewSize(conn, wire.MaxLine))
	w := &ResponseWriter{conn: engine, log: s.log}

	req, err := readRequest(engine)
	status := s.dispatch(w, req, err)

	// Whatever happened, the peer gets a status line and a finished header
	// section, never a hung connection.
	if status != 0 {
		if w.status != 0 {
			s.log.Warn("status already sent",
				zap.Int("sent", int(w.status)),
				zap.Int("intended", int(status)),
			)
		} else if werr := w.WriteResponse(status, ""); werr != nil {
			s.log.Warn("failed to send response status", zap.Error(werr))
		}
	}
	if !w.endedHeaders && w.status != 0 {
		if werr := w.EndHeaders(); werr != nil {
			s.log.Warn("failed to end response headers", zap.Error(werr))
		}
	}
}

// dispatch runs the matched handler and maps its outcome to a status still
// to be sent, or 0 when the response is already complete.
func (s *Server) dispatch(w *ResponseWriter, req *Request, readErr error) wire.Status {
	err := readErr
	if err == nil {
		handler := s.lookup(req.Method, req.Path)
		if handler == nil {
			s.log.Warn("no handler",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
			err = wire.Statusf(wire.StatusNotFound, "no handler for %s", req.Path)
		} else {
			err = handler.Serve(w, req)
		}
	}

	if err != nil {
		if status, ok := wire.StatusOf(err); ok {
			return status
		}
		s.log.Error("handler failed", zap.Error(err))
		return wire.StatusInternalServerError
	}
	if w.status == 0 {
		s.log.Warn("status not sent, defaulting to 500")
		return wire.StatusInternalServerError
	}
	return 0
}

// Request is one parsed request line plus the engine to read the rest of the
// message from.
type Request struct {
	Method  string
	Path    string
	Version string

	conn          *wire.Conn
	contentLength optionals.Optional[int64]
}

func readRequest(conn *wire.Conn) (*Request, error) {
	method, path, version, err := conn.ReadRequest()
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  method,
		Path:    path,
		Version: version,
		conn:    conn,
	}, nil
}

// ReadHeader reads the next request header, tracking Content-Length as it
// goes by. End of headers is io.EOF.
func (r *Request) ReadHeader() (name, value string, err error) {
	name, value, err = r.conn.ReadHeader()
	if err != nil {
		return name, value, err
	}

	if strings.EqualFold(name, "Content-Length") {
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil || n < 0 {
			return name, value, wire.Statusf(wire.StatusBadRequest, "invalid Content-Length %q", value)
		}
		r.contentLength = optionals.Some(n)
	}

	return name, value, nil
}

// DrainHeaders reads and discards the remaining request headers.
func (r *Request) DrainHeaders() error {
	for {
		_, _, err := r.ReadHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ContentLength reports the declared request body length, if one was seen.
func (r *Request) ContentLength() (int64, bool) {
	return r.contentLength.Get()
}

// ReadFile copies the request body into dst. A request that never declared a
// Content-Length is answered with 411.
func (r *Request) ReadFile(dst io.Writer) error {
	n, ok := r.contentLength.Get()
	if !ok || n == 0 {
		return wire.Statusf(wire.StatusLengthRequired, "no request body length given")
	}
	return r.conn.ReadFile(dst, r.contentLength)
}
