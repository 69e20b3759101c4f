package otd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	e := newErr(StatusArg, "channel %d out of range", 3)
	assert.Contains(t, e.Error(), "invalid argument")
	assert.Contains(t, e.Error(), "channel 3 out of range")
}

func TestErrorNoContext(t *testing.T) {
	e := newErr(StatusOK, "")
	assert.Equal(t, Strerror(StatusOK), e.Error())
}

func TestStrerrorNameRoundTrip(t *testing.T) {
	for _, code := range []StatusCode{StatusOK, StatusError, StatusMalloc, StatusArg, StatusBug, StatusScriptError, StatusDecodersDir, StatusTerminateRequest} {
		assert.NotEqual(t, "unknown error code", StrerrorName(code))
		assert.NotEqual(t, "unknown error", Strerror(code))
	}
}
