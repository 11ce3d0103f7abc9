package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:  "ascii input",
			input: "abc",
			want:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, KeyLength)
		})
	}
}

func TestKey_IsCaseAndWhitespaceSensitive(t *testing.T) {
	base := Key("https://www.instagram.com/reel/Abc")

	assert.NotEqual(t, base, Key("https://www.instagram.com/reel/abc"))
	assert.NotEqual(t, base, Key(" https://www.instagram.com/reel/Abc"))
	assert.Equal(t, base, Key("https://www.instagram.com/reel/Abc"))
}

func TestForOutboundPost(t *testing.T) {
	assert.Equal(t, Key("1789:-100123"), ForOutboundPost("1789", "-100123"))
	assert.NotEqual(t, ForOutboundPost("1789", "-100123"), ForOutboundPost("1789", "-100124"))
}
