package closer

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestErrorHandler(t *testing.T) {
	errClose := errors.New("close failed")

	t.Run("Close error is kept", func(t *testing.T) {
		var err error
		closed := false
		ErrorHandler(closerFunc(func() error {
			closed = true
			return errClose
		}), &err)
		assert.Check(t, closed)
		assert.Check(t, cmp.ErrorIs(err, errClose))
	})

	t.Run("Earlier error wins", func(t *testing.T) {
		errRead := errors.New("read failed")
		err := errRead
		ErrorHandler(closerFunc(func() error {
			return errClose
		}), &err)
		assert.Check(t, cmp.ErrorIs(err, errRead))
	})

	t.Run("No errors anywhere", func(t *testing.T) {
		var err error
		closed := false
		ErrorHandler(closerFunc(func() error {
			closed = true
			return nil
		}), &err)
		assert.Check(t, closed)
		assert.Check(t, err)
	})
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
