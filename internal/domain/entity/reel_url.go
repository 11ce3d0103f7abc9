package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

var reelURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?(?:instagram\.com|instagr\.am)/reel/[A-Za-z0-9_-]+/?(?:\?.*)?$`)

// IsReelURL reports whether raw looks like an Instagram reel link.
func IsReelURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw != "" && len(raw) <= maxURLLength && reelURLPattern.MatchString(raw)
}

// NormalizeReelURL canonicalizes a reel link so that visually equivalent
// links produce the same idempotency key.
//
// The result is always https://www.instagram.com/reel/<code>: the scheme and
// host are canonicalized, instagr.am is expanded, and the trailing slash,
// query string and fragment are dropped. The shortcode keeps its case.
func NormalizeReelURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsReelURL(raw) {
		return "", &ValidationError{Field: "url", Message: "is not an Instagram reel URL"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse reel URL: %w", err)
	}

	// パス: /reel/<code>[/]
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "reel") || parts[1] == "" {
		return "", &ValidationError{Field: "url", Message: "is not an Instagram reel URL"}
	}

	return "https://www.instagram.com/reel/" + parts[1], nil
}
