package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMedia(t *testing.T) {
	tests := []struct {
		name        string
		mediaType   string
		productType string
		want        bool
	}{
		{"reels type", "REELS", "", true},
		{"ig_reel type", "IG_REEL", "", true},
		{"video with IG_REEL product", "VIDEO", "IG_REEL", true},
		{"video with REELS product", "VIDEO", "REELS", true},
		{"video with IG_REELS product", "VIDEO", "IG_REELS", true},
		{"lower case", "video", "ig_reel", true},
		{"padded", "  reels ", "", true},
		{"image", "IMAGE", "", false},
		{"plain video", "VIDEO", "FEED", false},
		{"video without product", "VIDEO", "", false},
		{"carousel", "CAROUSEL_ALBUM", "REELS", false},
		{"unknown", "UNKNOWN", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMedia(tt.mediaType, tt.productType)
			assert.Equal(t, tt.want, got.Eligible())
		})
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "eligible", VerdictEligible.String())
	assert.Equal(t, "ineligible", VerdictIneligible.String())
}
