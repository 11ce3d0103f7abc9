// Package webhook handles Instagram "media" change notifications from Meta.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned when the body is not a webhook notification.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// ObjectInstagram is the only notification object that is processed.
const ObjectInstagram = "instagram"

type notification struct {
	Object *string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string         `json:"field"`
			Value map[string]any `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MediaChange is one deduplicated "media" change.
type MediaChange struct {
	MediaID string
	Raw     map[string]any
}

// Parse decodes a notification body. Only changes with field "media" and a
// non-blank value.media_id (or value.id) are kept, one per media id, in the
// order they first appear.
func Parse(body []byte) (object string, changes []MediaChange, err error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if n.Object == nil {
		return "", nil, fmt.Errorf("%w: missing object", ErrInvalidPayload)
	}

	index := map[string]int{}
	for _, entry := range n.Entry {
		for _, ch := range entry.Changes {
			id := mediaID(ch.Value)
			if id == "" || ch.Field != "media" {
				continue
			}
			if i, seen := index[id]; seen {
				// 後勝ちで値だけ更新し、順序は最初の出現位置を保つ
				changes[i].Raw = ch.Value
				continue
			}
			index[id] = len(changes)
			changes = append(changes, MediaChange{MediaID: id, Raw: ch.Value})
		}
	}
	return *n.Object, changes, nil
}

func mediaID(value map[string]any) string {
	for _, key := range []string{"media_id", "id"} {
		if s, ok := value[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
