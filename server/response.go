package server

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/go-httpwire/optionals"
	"github.com/mel2oo/go-httpwire/wire"
)

// ResponseWriter tracks the write state of one response: status line sent,
// header section ended, body started. The wire engine itself does not
// enforce this ordering; violating it here is a programmer error and is
// reported as such, not recovered from.
type ResponseWriter struct {
	conn *wire.Conn
	log  *zap.Logger

	status       wire.Status
	wroteHeader  bool
	endedHeaders bool
	wroteBody    bool
}

// Status reports the status already sent, or 0.
func (w *ResponseWriter) Status() wire.Status {
	return w.status
}

// WriteResponse sends the status line. Only one status may be sent per
// connection; an empty reason falls back to the standard phrase.
func (w *ResponseWriter) WriteResponse(status wire.Status, reason string) error {
	if w.status != 0 {
		w.log.Error("attempting to re-send status",
			zap.Int("sent", int(w.status)),
			zap.Int("status", int(status)),
		)
		return errors.New("server: status already sent")
	}
	w.status = status
	return w.conn.WriteResponse("", status, reason)
}

// WriteHeader sends one response header. Requires a sent status and an
// unfinished header section.
func (w *ResponseWriter) WriteHeader(name, valueFormat string, args ...interface{}) error {
	if w.status == 0 {
		w.log.Error("attempting to send header without status", zap.String("header", name))
		return errors.New("server: header before status")
	}
	if w.endedHeaders {
		w.log.Error("attempting to send header after end of headers", zap.String("header", name))
		return errors.New("server: headers already ended")
	}
	w.wroteHeader = true
	return w.conn.WriteHeader(name, valueFormat, args...)
}

// EndHeaders terminates the header section.
func (w *ResponseWriter) EndHeaders() error {
	if w.status == 0 {
		w.log.Error("attempting to end headers without status")
		return errors.New("server: end of headers before status")
	}
	w.endedHeaders = true
	return w.conn.EndHeaders()
}

// WriteFile sends a Content-Length header, ends the header section and
// streams exactly contentLength body bytes from src.
func (w *ResponseWriter) WriteFile(src io.Reader, contentLength int64) error {
	if err := w.WriteHeader("Content-Length", "%d", contentLength); err != nil {
		return err
	}
	if err := w.EndHeaders(); err != nil {
		return err
	}
	if w.wroteBody {
		w.log.Error("attempting to re-send body")
		return errors.New("server: body already sent")
	}
	w.wroteBody = true
	return w.conn.WriteFile(src, optionals.Some(contentLength))
}

// Printf sends formatted body bytes, ending the header section first if the
// handler has not done so. The body is framed by connection close.
func (w *ResponseWriter) Printf(format string, args ...interface{}) error {
	if !w.endedHeaders {
		if err := w.EndHeaders(); err != nil {
			return err
		}
	}
	w.wroteBody = true
	return w.conn.Printf(format, args...)
}

// Redirect responds with 301 and a Location built from the format.
func (w *ResponseWriter) Redirect(locationFormat string, args ...interface{}) error {
	if err := w.WriteResponse(wire.StatusMovedPermanently, ""); err != nil {
		return err
	}
	if err := w.WriteHeader("Location", locationFormat, args...); err != nil {
		return err
	}
	return w.EndHeaders()
}
