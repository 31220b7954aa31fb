package stream

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

const (
	// DefaultMaxLine bounds the length of a single protocol line, including
	// the CRLF terminator.
	DefaultMaxLine = 1024
)

var (
	// ErrLineTooLong is returned by ReadLine when a line does not terminate
	// within the configured bound.
	ErrLineTooLong = errors.New("stream: line too long")
)

// Stream is a buffered duplex byte channel. It wraps an established
// connection (or any io.ReadWriter) with line-oriented reads bounded to a
// maximum length, raw reads, and buffered writes.
//
// A Stream does not own the underlying channel. Closing the channel is the
// caller's responsibility, after every engine bound to the Stream is done
// with it.
type Stream struct {
	br      *bufio.Reader
	bw      *bufio.Writer
	maxLine int
}

// New returns a Stream over rw with the default line bound.
func New(rw io.ReadWriter) *Stream {
	return NewSize(rw, DefaultMaxLine)
}

// NewSize returns a Stream over rw whose ReadLine accepts lines of up to
// maxLine bytes including the terminator.
func NewSize(rw io.ReadWriter, maxLine int) *Stream {
	if maxLine < 1 {
		maxLine = DefaultMaxLine
	}
	return &Stream{
		// The read buffer doubles as the line bound: a line that does not
		// fit in the buffer is over the bound.
		br:      bufio.NewReaderSize(rw, maxLine),
		bw:      bufio.NewWriter(rw),
		maxLine: maxLine,
	}
}

// ReadLine reads one line, stripping the trailing LF and an optional
// preceding CR. Returns io.EOF if the stream ends cleanly before any byte of
// the line, io.ErrUnexpectedEOF if it ends mid-line, and ErrLineTooLong if
// the line exceeds the bound.
func (s *Stream) ReadLine() (string, error) {
	line, err := s.br.ReadSlice('\n')
	if err != nil {
		switch {
		case err == bufio.ErrBufferFull:
			return "", ErrLineTooLong
		case err == io.EOF && len(line) > 0:
			return "", io.ErrUnexpectedEOF
		case err == io.EOF:
			return "", io.EOF
		default:
			return "", errors.Wrap(err, "stream: read line")
		}
	}

	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	// ReadSlice's result aliases the read buffer; copy before the next read
	// invalidates it.
	return string(line), nil
}

// Read copies up to len(p) bytes from the stream into p. Returns io.EOF when
// the peer closes the stream.
func (s *Stream) Read(p []byte) (int, error) {
	return s.br.Read(p)
}

// Write appends p to the write buffer.
func (s *Stream) Write(p []byte) (int, error) {
	return s.bw.Write(p)
}

// WriteString appends str to the write buffer.
func (s *Stream) WriteString(str string) error {
	_, err := s.bw.WriteString(str)
	return err
}

// Flush pushes all buffered writes to the underlying channel.
func (s *Stream) Flush() error {
	return errors.Wrap(s.bw.Flush(), "stream: flush")
}

// MaxLine reports the configured line bound.
func (s *Stream) MaxLine() int {
	return s.maxLine
}
