package wire

import "strconv"

// Status is an HTTP response status code.
type Status int

const (
	StatusOK                    Status = 200
	StatusCreated               Status = 201
	StatusMovedPermanently      Status = 301
	StatusBadRequest            Status = 400
	StatusForbidden             Status = 403
	StatusNotFound              Status = 404
	StatusMethodNotAllowed      Status = 405
	StatusLengthRequired        Status = 411
	StatusRequestEntityTooLarge Status = 413
	StatusRequestURITooLong     Status = 414
	StatusInternalServerError   Status = 500
)

var statusReasons = map[Status]string{
	StatusOK:                    "OK",
	StatusCreated:               "Created",
	StatusMovedPermanently:      "Moved Permanently",
	StatusBadRequest:            "Bad Request",
	StatusForbidden:             "Forbidden",
	StatusNotFound:              "Not Found",
	StatusMethodNotAllowed:      "Method Not Allowed",
	StatusLengthRequired:        "Length Required",
	StatusRequestEntityTooLarge: "Request Entity Too Large",
	StatusRequestURITooLong:     "Request-URI Too Long",
	StatusInternalServerError:   "Internal Server Error",
}

// Reason returns the standard reason phrase for s, or a synthesized generic
// phrase for codes outside the known set.
func (s Status) Reason() string {
	if reason, ok := statusReasons[s]; ok {
		return reason
	}
	return "Status " + strconv.Itoa(int(s))
}

func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}
