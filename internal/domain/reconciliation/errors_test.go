package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageCarriesContext(t *testing.T) {
	err := &Error{
		Kind:           ErrLookup,
		Op:             "order.find_draft",
		CorrelationKey: "visit-1",
		EventTag:       "c",
		Detail:         "2 draft orders",
	}
	msg := err.Error()
	assert.Contains(t, msg, "order.find_draft")
	assert.Contains(t, msg, "visit=visit-1")
	assert.Contains(t, msg, "event=c")
	assert.Contains(t, msg, "2 draft orders")
	assert.Equal(t, "LOOKUP", err.Code())
}

func TestError_IsMatchesKindAndCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("outer: %w", WrapRemote("erp.search", cause))

	assert.ErrorIs(t, err, ErrRemoteService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.True(t, IsRetryable(err))
}

func TestWithEvent(t *testing.T) {
	t.Run("annotates reconciliation errors without mutating them", func(t *testing.T) {
		orig := NewError(ErrNotFound, "unit.resolve", "no unit kg")
		err := WithEvent(orig, "visit-9", "u")

		var re *Error
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "visit-9", re.CorrelationKey)
		assert.Equal(t, "u", re.EventTag)
		assert.Empty(t, orig.CorrelationKey)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, IsRetryable(err))
	})

	t.Run("keeps existing context", func(t *testing.T) {
		orig := &Error{Kind: ErrLookup, CorrelationKey: "visit-1"}
		err := WithEvent(orig, "visit-2", "d")
		var re *Error
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "visit-1", re.CorrelationKey)
	})

	t.Run("wraps foreign errors as remote failures", func(t *testing.T) {
		err := WithEvent(errors.New("connection reset"), "visit-3", "c")
		assert.ErrorIs(t, err, ErrRemoteService)
		assert.Equal(t, ErrRemoteService, KindOf(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WithEvent(nil, "k", "c"))
	})
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Equal(t, ErrAmbiguousReference, KindOf(NewError(ErrAmbiguousReference, "op", "")))
}
