package entity

import "strings"

// Verdict is the outcome of classifying a media item.
type Verdict int

const (
	VerdictIneligible Verdict = iota
	VerdictEligible
)

func (v Verdict) String() string {
	if v == VerdictEligible {
		return "eligible"
	}
	return "ineligible"
}

// Classification is the typed result of ClassifyMedia.
type Classification struct {
	Verdict     Verdict
	MediaType   string
	ProductType string
}

// Eligible reports whether the media is a reel.
func (c Classification) Eligible() bool { return c.Verdict == VerdictEligible }

var reelProductTypes = map[string]struct{}{
	"REELS":    {},
	"IG_REEL":  {},
	"IG_REELS": {},
}

// ClassifyMedia decides whether a media item is a short-video reel.
// Tags are compared after trimming and upper-casing: REELS and IG_REEL
// qualify on their own, VIDEO qualifies only with a reel product type.
func ClassifyMedia(mediaType, productType string) Classification {
	t := strings.ToUpper(strings.TrimSpace(mediaType))
	p := strings.ToUpper(strings.TrimSpace(productType))

	c := Classification{Verdict: VerdictIneligible, MediaType: t, ProductType: p}
	switch {
	case t == "REELS" || t == "IG_REEL":
		c.Verdict = VerdictEligible
	case t == "VIDEO":
		if _, ok := reelProductTypes[p]; ok {
			c.Verdict = VerdictEligible
		}
	}
	return c
}
