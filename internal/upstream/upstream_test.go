package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailable_MatchesSentinel(t *testing.T) {
	err := Unavailable("create thread", errors.New("connection refused"))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "create thread: connection refused", err.Error())
}

func TestUnavailable_KeepsCause(t *testing.T) {
	err := fmt.Errorf("start conversation: %w", Unavailable("create thread", context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlainError_IsNotUnavailable(t *testing.T) {
	assert.NotErrorIs(t, errors.New("bad input"), ErrUnavailable)
}
