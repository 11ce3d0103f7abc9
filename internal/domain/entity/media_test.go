package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessageText(t *testing.T) {
	caption := "  Nice reel  "
	blank := "   "

	assert.Equal(t, "Nice reel\n\nhttps://x/reel/1", BuildMessageText(&caption, "https://x/reel/1"))
	assert.Equal(t, "https://x/reel/1", BuildMessageText(&blank, "https://x/reel/1"))
	assert.Equal(t, "https://x/reel/1", BuildMessageText(nil, "https://x/reel/1"))
}

func TestMedia_MessageText(t *testing.T) {
	caption := "dance"
	m := &Media{MediaID: "1", Caption: &caption, Permalink: "https://www.instagram.com/reel/C1/"}

	assert.Equal(t, "dance\n\nhttps://www.instagram.com/reel/C1/", m.MessageText())
}
