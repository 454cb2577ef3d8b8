package errdef

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := Validation("import", "invalid collection")
	wrapped := fmt.Errorf("cli: %w", err)

	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.False(t, errors.Is(wrapped, ErrFormat))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("save collection", cause)

	assert.Equal(t, "save collection: storage failure: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestInvalidInputFormatting(t *testing.T) {
	err := InvalidInput("dispatch", "invalid URL %q", "::")
	assert.Equal(t, `dispatch: invalid URL "::"`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
