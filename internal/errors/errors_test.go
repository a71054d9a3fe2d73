package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saadjs/bitelog/internal/errors"
)

var errSentinel = errors.New("sentinel")

type codedError struct{ code int }

func (e *codedError) Error() string { return "coded" }

func TestWrapKeepsChain(t *testing.T) {
	t.Parallel()

	wrapped := errors.Wrapf(errSentinel, "load row %d", 3)
	assert.True(t, errors.Is(wrapped, errSentinel))
	assert.Equal(t, "load row 3: sentinel", wrapped.Error())

	var target *codedError
	assert.True(t, errors.As(errors.Wrap(&codedError{code: 7}, "outer"), &target))
	assert.Equal(t, 7, target.code)
}

func TestWrapNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.Wrap(nil, "nothing"))
}
