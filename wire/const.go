package wire

const (
	// Protocol token used for outbound messages when the caller does not
	// specify one.
	Version10 = "HTTP/1.0"

	// Chunked transfer encoding is HTTP/1.1 only.
	Version11 = "HTTP/1.1"
)

const (
	// MaxLine bounds a single request, status or header line, including the
	// CRLF terminator.
	MaxLine = 1024

	// MaxMethod bounds the request method token.
	MaxMethod = 64

	// MaxPath bounds the request path token.
	MaxPath = 1024

	// MaxHost bounds the value of a Host header.
	MaxHost = 256
)
