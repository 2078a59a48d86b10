package serr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_MatchesAnyCause(t *testing.T) {
	assert := assert.New(t)

	causeA := errors.New("cause a")
	causeB := errors.New("cause b")
	other := errors.New("unrelated")

	err := New("something failed", causeA, causeB)

	assert.True(errors.Is(err, causeA))
	assert.True(errors.Is(err, causeB))
	assert.False(errors.Is(err, other))
}

func Test_Error_Message(t *testing.T) {
	assert := assert.New(t)

	cause := errors.New("underlying problem")

	assert.Equal("just a message", New("just a message").Error())
	assert.Equal("underlying problem", New("", cause).Error())
	assert.Equal("context: underlying problem", New("context", cause).Error())
}
