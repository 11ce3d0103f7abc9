package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// Media is a resolved Instagram media item as returned by the Graph API.
type Media struct {
	// RowID is the local primary key; empty until persisted.
	RowID       string
	MediaID     string
	MediaType   string
	ProductType string
	Permalink   string
	MediaURL    *string
	Caption     *string
	Timestamp   *time.Time
	Raw         json.RawMessage
	CreatedAt   time.Time
}

// MessageText renders the text delivered to a chat: the trimmed caption,
// a blank line and the permalink, or just the permalink.
func (m *Media) MessageText() string {
	return BuildMessageText(m.Caption, m.Permalink)
}

// BuildMessageText is MessageText for callers that only hold the parts.
func BuildMessageText(caption *string, permalink string) string {
	if caption != nil {
		if c := strings.TrimSpace(*caption); c != "" {
			return c + "\n\n" + permalink
		}
	}
	return permalink
}
