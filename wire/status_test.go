package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.Reason())
	assert.Equal(t, "Not Found", StatusNotFound.Reason())
	assert.Equal(t, "Length Required", StatusLengthRequired.Reason())
	assert.Equal(t, "Request-URI Too Long", StatusRequestURITooLong.Reason())

	// Codes outside the known set get a synthesized phrase.
	assert.Equal(t, "Status 599", Status(599).Reason())
}

func TestStatusOf(t *testing.T) {
	err := Statusf(StatusForbidden, "outside root")
	status, ok := StatusOf(err)
	assert.True(t, ok)
	assert.Equal(t, StatusForbidden, status)

	_, ok = StatusOf(assert.AnError)
	assert.False(t, ok)
}
