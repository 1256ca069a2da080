package shared_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysender/internal/shared"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		expected string
		isNil    bool
	}{
		{
			name:    "nil error",
			err:     nil,
			context: "some context",
			isNil:   true,
		},
		{
			name:     "simple error",
			err:      errors.New("original"),
			context:  "wrapper",
			expected: "wrapper: original",
		},
		{
			name:     "empty context",
			err:      errors.New("original"),
			context:  "",
			expected: "original",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shared.Wrap(tt.err, tt.context)
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.expected, result.Error())
			assert.True(t, errors.Is(result, tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("disk full")
	err := shared.Wrapf(base, "save group %d", 3)
	require.Error(t, err)
	assert.Equal(t, "save group 3: disk full", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Nil(t, shared.Wrapf(nil, "save group %d", 3))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shared.Kind
	}{
		{"nil", nil, shared.KindUnknown},
		{"plain", errors.New("boom"), shared.KindUnknown},
		{"out of range", shared.ErrOutOfRange, shared.KindOutOfRange},
		{"invalid time", shared.ErrInvalidTime, shared.KindInvalidTime},
		{"validation", shared.ErrValidation, shared.KindValidation},
		{"not found", shared.ErrNotFound, shared.KindNotFound},
		{"unauthorized", shared.ErrUnauthorized, shared.KindUnauthorized},
		{"delivery", shared.ErrDelivery, shared.KindDelivery},
		{"persistence", shared.ErrPersistence, shared.KindPersistence},
		{"internal", shared.ErrInternal, shared.KindInternal},
		{"canceled", context.Canceled, shared.KindCanceled},
		{"wrapped", fmt.Errorf("delete group: %w", shared.ErrOutOfRange), shared.KindOutOfRange},
		{"joined picks priority", errors.Join(shared.ErrPersistence, shared.ErrInvalidTime), shared.KindInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shared.KindOf(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OutOfRange", shared.KindOutOfRange.String())
	assert.Equal(t, "InvalidTime", shared.KindInvalidTime.String())
	assert.Equal(t, "Delivery", shared.KindDelivery.String())
	assert.Equal(t, "Unknown", shared.Kind(99).String())
}

func TestMarkKind(t *testing.T) {
	base := errors.New("write schedules.json: permission denied")

	marked := shared.MarkKind(base, shared.KindPersistence)
	assert.ErrorIs(t, marked, shared.ErrPersistence)
	assert.ErrorIs(t, marked, base)

	again := shared.MarkKind(marked, shared.KindPersistence)
	assert.Same(t, marked, again)

	assert.Equal(t, shared.ErrDelivery, shared.MarkKind(nil, shared.KindDelivery))
	assert.Nil(t, shared.MarkKind(nil, shared.KindCanceled))
	assert.Equal(t, base, shared.MarkKind(base, shared.KindUnknown))
}
