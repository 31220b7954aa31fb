package wire

import (
	"fmt"

	"github.com/pkg/errors"
)

// ProtocolError describes a violation of HTTP/1.x framing by the peer, or a
// condition a server layer should answer with a specific status instead of
// letting a transport error escape: a malformed request line maps to 400, an
// oversized URI to 414, a missing required length to 411, and so on.
//
// Transport failures (read/write errors on the underlying stream) are plain
// errors, not ProtocolErrors. Clean end of stream and end of headers are
// io.EOF, which is a sentinel rather than an error condition.
type ProtocolError struct {
	Status Status
	msg    string
}

// Statusf builds a ProtocolError carrying the given response status.
func Statusf(status Status, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Status: status,
		msg:    fmt.Sprintf(format, args...),
	}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%d %s: %s", int(e.Status), e.Status.Reason(), e.msg)
}

// StatusOf extracts the response status carried by err, unwrapping as needed.
// The second result reports whether err carries one at all; transport errors
// do not.
func StatusOf(err error) (Status, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Status, true
	}
	return 0, false
}
