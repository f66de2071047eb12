package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(NotFound("op", "order", "o-1")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load: %w", ErrNotFound)))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("insert: %w", ErrAlreadyExists)))
	assert.Equal(t, KindInvalidOperation, KindOf(fmt.Errorf("wrapped: %w", InvalidOperation("op", "nope"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalPreservesKind(t *testing.T) {
	business := InvalidOperation("cart.Add", "insufficient inventory")
	assert.Same(t, business, Internal(business, "tx", "failed"))

	cause := errors.New("connection reset")
	err := Internal(cause, "order.Create", "persist order")
	assert.True(t, IsKind(err, KindInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Nil(t, Internal(nil, "op", "msg"))
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("order.Get", "order", "o-1")
	assert.Equal(t, `order "o-1" not found`, MessageOf(err))
	assert.Contains(t, err.Error(), "order.Get")
	assert.ErrorIs(t, err, ErrNotFound)
}
