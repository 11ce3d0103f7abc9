package entity

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMediaRequestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from MediaRequestStatus
		to   MediaRequestStatus
		want bool
	}{
		{MediaRequestNew, MediaRequestFetching, true},
		{MediaRequestNew, MediaRequestReady, false},
		{MediaRequestNew, MediaRequestPosted, false},
		{MediaRequestNew, MediaRequestFailed, true},
		{MediaRequestFetching, MediaRequestReady, true},
		{MediaRequestFetching, MediaRequestFetching, true},
		{MediaRequestFetching, MediaRequestPosted, false},
		{MediaRequestReady, MediaRequestPosted, true},
		{MediaRequestReady, MediaRequestFetching, true},
		{MediaRequestReady, MediaRequestFailed, true},
		{MediaRequestPosted, MediaRequestFetching, false},
		{MediaRequestPosted, MediaRequestFailed, false},
		{MediaRequestFailed, MediaRequestFetching, false},
		{MediaRequestFailed, MediaRequestPosted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestMediaRequestStatus_Valid(t *testing.T) {
	assert.True(t, MediaRequestPosted.Valid())
	assert.False(t, MediaRequestStatus("DONE").Valid())
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", TruncateReason("short"))

	long := strings.Repeat("x", 600)
	assert.Len(t, TruncateReason(long), MaxErrorReasonLength)

	// 3-byte runes: the cut must not split one.
	multi := strings.Repeat("あ", 200)
	got := TruncateReason(multi)
	assert.LessOrEqual(t, len(got), MaxErrorReasonLength)
	assert.True(t, utf8.ValidString(got))
}
