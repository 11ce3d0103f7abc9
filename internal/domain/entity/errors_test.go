package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{"field and message", &ValidationError{Field: "chatId", Message: "is required"}, "chatId is required"},
		{"message only", &ValidationError{Message: "invalid reel URL format"}, "invalid reel URL format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestValidationError_MatchesInvalidInput(t *testing.T) {
	err := fmt.Errorf("set target chat: %w", &ValidationError{Field: "chatId", Message: "is required"})

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrNotFound)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "chatId", ve.Field)
}

func TestSentinels_AreDistinct(t *testing.T) {
	wrapped := fmt.Errorf("UpdateStatus: %w", ErrConflict)

	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrInvalidInput)
}
