package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorfFormatsMessage(t *testing.T) {
	err := Errorf(ParseError, "bad line %d", 3)
	assert.Equal(t, ParseError, err.Code)
	assert.Equal(t, "bad line 3", err.Message)
	assert.Equal(t, "ParseError: bad line 3", err.Error())
}

func TestWrapErrorfKeepsCause(t *testing.T) {
	cause := errors.New("short read")
	err := WrapErrorf(cause, ProtocolFault, "reading status")
	assert.Equal(t, ProtocolFault, err.Code)
	assert.Same(t, cause, err.Cause)
	assert.Equal(t, "ProtocolFault: reading status: short read", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestHasErrCode(t *testing.T) {
	err := AssertionErrorf("command cannot be empty")
	assert.True(t, HasErrCode(err, AssertionError))
	assert.False(t, HasErrCode(err, ParseError))
	assert.False(t, HasErrCode(errors.New("plain"), AssertionError))
}

func TestWithDetailsCopies(t *testing.T) {
	base := Errorf(NetworkError, "dial failed")
	withDetails := base.WithDetails("host:5037")
	assert.Nil(t, base.Details)
	assert.Equal(t, "host:5037", withDetails.Details)
}
