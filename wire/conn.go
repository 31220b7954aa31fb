// Package wire implements the HTTP/1.x message protocol over an established
// duplex stream: line-oriented parsing and formatting of request and status
// lines, headers with obs-fold support, and entity bodies framed by
// Content-Length, by end of stream, or (outbound only) by chunked transfer
// encoding.
//
// A Conn holds one connection's parse and format state. It does not own the
// stream it is bound to, does not retry failed operations, and does not
// enforce read ordering: a caller that reads out of order gets whatever bytes
// are next on the wire.
package wire

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/mel2oo/go-httpwire/optionals"
	"github.com/mel2oo/go-httpwire/stream"
)

// Conn is an HTTP protocol engine bound to a single duplex stream.
type Conn struct {
	s *stream.Stream

	// Name of the last non-folded header returned by ReadHeader. A folded
	// continuation line reports this name unchanged.
	lastHeader string

	// Entity bytes left to read. Some(n) clips reads to n; None reads until
	// the stream ends.
	remaining optionals.Optional[int64]
}

// NewConn binds an engine to s. The engine borrows the stream for its
// lifetime and never closes it.
func NewConn(s *stream.Stream) *Conn {
	return &Conn{s: s}
}

// Writing

// WriteRequest emits a request line: `METHOD SP path SP VERSION CRLF`. The
// path is produced from pathFormat; the engine does not bound-check it, that
// is the caller's responsibility. An empty version defaults to HTTP/1.0.
func (c *Conn) WriteRequest(version, method, pathFormat string, args ...interface{}) error {
	if version == "" {
		version = Version10
	}
	path := pathFormat
	if len(args) > 0 {
		path = fmt.Sprintf(pathFormat, args...)
	}
	if err := c.s.WriteString(method + " " + path + " " + version + "\r\n"); err != nil {
		return errors.Wrap(err, "write request line")
	}
	return nil
}

// WriteResponse emits a status line: `VERSION SP status SP reason CRLF`. An
// empty reason falls back to the standard phrase for the status, or to a
// generic one for codes outside the known set. An empty version defaults to
// HTTP/1.0.
func (c *Conn) WriteResponse(version string, status Status, reason string) error {
	if version == "" {
		version = Version10
	}
	if reason == "" {
		reason = status.Reason()
	}
	line := version + " " + strconv.Itoa(int(status)) + " " + reason + "\r\n"
	if err := c.s.WriteString(line); err != nil {
		return errors.Wrap(err, "write status line")
	}
	return nil
}

// WriteHeader emits one header line: `Name: value CRLF`. May be called any
// number of times between the status line and EndHeaders.
func (c *Conn) WriteHeader(name, valueFormat string, args ...interface{}) error {
	value := valueFormat
	if len(args) > 0 {
		value = fmt.Sprintf(valueFormat, args...)
	}
	if err := c.s.WriteString(name + ": " + value + "\r\n"); err != nil {
		return errors.Wrapf(err, "write header %s", name)
	}
	return nil
}

// EndHeaders emits the blank line terminating the header section and flushes.
// Must be called exactly once per message, after all headers.
func (c *Conn) EndHeaders() error {
	if err := c.s.WriteString("\r\n"); err != nil {
		return errors.Wrap(err, "write end of headers")
	}
	return c.s.Flush()
}

// Write sends raw entity bytes.
func (c *Conn) Write(p []byte) (int, error) {
	return c.s.Write(p)
}

// Printf formats and sends entity bytes, flushing afterwards.
func (c *Conn) Printf(format string, args ...interface{}) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, format, args...)
	if _, err := c.s.Write(buf.B); err != nil {
		return errors.Wrap(err, "write body")
	}
	return c.s.Flush()
}

// WriteFile streams the entity body from src: exactly contentLength bytes
// when one is given, or until src is exhausted otherwise. If src ends before
// a given contentLength is satisfied, WriteFile returns io.ErrUnexpectedEOF
// so the caller can observe the short write; any other failure is an error.
func (c *Conn) WriteFile(src io.Reader, contentLength optionals.Optional[int64]) error {
	var err error
	if n, ok := contentLength.Get(); ok {
		_, err = io.CopyN(c.s, src, n)
		if err == io.EOF {
			c.s.Flush()
			return io.ErrUnexpectedEOF
		}
	} else {
		_, err = io.Copy(c.s, src)
	}
	if err != nil {
		return errors.Wrap(err, "write body from file")
	}
	return c.s.Flush()
}

// WriteChunk emits one chunked-encoding chunk: `HEX(len) CRLF p CRLF`. A
// zero-length p emits an empty chunk, which is not the terminator; use
// EndChunks to finish the transfer.
func (c *Conn) WriteChunk(p []byte) error {
	if err := c.s.WriteString(strconv.FormatUint(uint64(len(p)), 16) + "\r\n"); err != nil {
		return errors.Wrap(err, "write chunk size")
	}
	if _, err := c.s.Write(p); err != nil {
		return errors.Wrap(err, "write chunk data")
	}
	if err := c.s.WriteString("\r\n"); err != nil {
		return errors.Wrap(err, "write chunk end")
	}
	return c.s.Flush()
}

// PrintChunk formats into a pooled buffer and sends the result as one chunk.
func (c *Conn) PrintChunk(format string, args ...interface{}) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, format, args...)
	return c.WriteChunk(buf.B)
}

// EndChunks emits the terminal zero-length chunk and the empty trailer
// section, ending the chunked transfer.
func (c *Conn) EndChunks() error {
	if err := c.s.WriteString("0\r\n\r\n"); err != nil {
		return errors.Wrap(err, "write last chunk")
	}
	return c.s.Flush()
}

// Reading

// ReadRequest parses one request line into method, path and version.
// Returns a ProtocolError with status 400 when the line does not split into
// exactly three tokens or the method exceeds its bound, and with status 414
// when the line or path exceeds its bound. A clean end of stream before the
// line is io.EOF.
func (c *Conn) ReadRequest() (method, path, version string, err error) {
	line, err := c.s.ReadLine()
	if err != nil {
		if err == stream.ErrLineTooLong {
			return "", "", "", Statusf(StatusRequestURITooLong, "request line too long")
		}
		return "", "", "", err
	}

	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", Statusf(StatusBadRequest, "malformed request line: %q", line)
	}
	method, path, version = parts[0], parts[1], parts[2]

	if len(method) > MaxMethod {
		return "", "", "", Statusf(StatusBadRequest, "method too long: %d", len(method))
	}
	if len(path) > MaxPath {
		return "", "", "", Statusf(StatusRequestURITooLong, "path too long: %d", len(path))
	}

	return method, path, version, nil
}

// ReadResponse parses one status line into version, numeric status and
// reason phrase. The reason may be empty.
func (c *Conn) ReadResponse() (version string, status Status, reason string, err error) {
	line, err := c.s.ReadLine()
	if err != nil {
		if err == stream.ErrLineTooLong {
			return "", 0, "", Statusf(StatusBadRequest, "status line too long")
		}
		return "", 0, "", err
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", Statusf(StatusBadRequest, "malformed status line: %q", line)
	}
	code, perr := strconv.ParseUint(parts[1], 10, 32)
	if perr != nil {
		return "", 0, "", Statusf(StatusBadRequest, "malformed status %q: %v", parts[1], perr)
	}
	version = parts[0]
	status = Status(code)
	if len(parts) == 3 {
		reason = parts[2]
	}

	return version, status, reason, nil
}

// ReadHeader reads one physical header line. A blank line ends the header
// section and is reported as io.EOF. A line starting with space or tab is a
// folded continuation: the previously returned name is reported unchanged
// and the value is the continuation's trimmed text. Otherwise the line is
// split on the first colon and the value trimmed of surrounding whitespace.
func (c *Conn) ReadHeader() (name, value string, err error) {
	line, err := c.s.ReadLine()
	if err != nil {
		if err == stream.ErrLineTooLong {
			return "", "", Statusf(StatusBadRequest, "header line too long")
		}
		return "", "", err
	}

	if line == "" {
		return "", "", io.EOF
	}

	if line[0] == ' ' || line[0] == '\t' {
		if c.lastHeader == "" {
			return "", "", Statusf(StatusBadRequest, "folded line without preceding header")
		}
		return c.lastHeader, strings.TrimSpace(line), nil
	}

	sep := strings.IndexByte(line, ':')
	if sep < 0 {
		return "", "", Statusf(StatusBadRequest, "malformed header line: %q", line)
	}
	name = strings.TrimSpace(line[:sep])
	if name == "" {
		return "", "", Statusf(StatusBadRequest, "empty header name: %q", line)
	}
	value = strings.TrimSpace(line[sep+1:])
	c.lastHeader = name

	return name, value, nil
}

// SetBodyLength arms Content-Length clipping: subsequent ReadRaw calls
// consume at most n bytes in total, then report io.EOF.
func (c *Conn) SetBodyLength(n int64) {
	c.remaining = optionals.Some(n)
}

// ReadRaw copies at most len(p) entity bytes into p, clipped to the declared
// remaining content length if one is in force. Both stream close and length
// exhaustion report io.EOF; neither is an error.
func (c *Conn) ReadRaw(p []byte) (int, error) {
	if rem, ok := c.remaining.Get(); ok {
		if rem <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > rem {
			p = p[:rem]
		}
		n, err := c.s.Read(p)
		c.remaining = optionals.Some(rem - int64(n))
		return n, err
	}
	return c.s.Read(p)
}

// ReadFile copies the entity body into dst (or discards it when dst is nil):
// exactly contentLength bytes when one is given, or everything until the
// stream ends otherwise. A stream that ends before a given contentLength is
// satisfied reports io.ErrUnexpectedEOF.
func (c *Conn) ReadFile(dst io.Writer, contentLength optionals.Optional[int64]) error {
	if dst == nil {
		dst = io.Discard
	}
	if n, ok := contentLength.Get(); ok {
		c.SetBodyLength(n)
	}

	buf := make([]byte, 4096)
	for {
		n, err := c.ReadRaw(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "write body to file")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read body")
		}
	}

	if rem, ok := c.remaining.Get(); ok && rem > 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}
