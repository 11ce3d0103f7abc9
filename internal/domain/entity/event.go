package entity

import "time"

// EventReelReceived is published when an eligible reel has been stored.
const EventReelReceived = "instagram.reel.received"

// DomainEvent is an in-memory notification. It is not persisted.
type DomainEvent struct {
	Name       string
	OccurredAt time.Time
	Payload    any
}

// ReelReceived is the payload of EventReelReceived.
type ReelReceived struct {
	MediaRowID  string     `json:"mediaRowId"`
	MediaID     string     `json:"mediaId"`
	MediaType   string     `json:"mediaType"`
	ProductType string     `json:"productType"`
	Permalink   string     `json:"permalink"`
	MediaURL    *string    `json:"mediaUrl,omitempty"`
	Caption     *string    `json:"caption,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// NewReelReceivedEvent wraps a stored media item in a DomainEvent.
func NewReelReceivedEvent(m *Media, now time.Time) DomainEvent {
	return DomainEvent{
		Name:       EventReelReceived,
		OccurredAt: now,
		Payload: ReelReceived{
			MediaRowID:  m.RowID,
			MediaID:     m.MediaID,
			MediaType:   m.MediaType,
			ProductType: m.ProductType,
			Permalink:   m.Permalink,
			MediaURL:    m.MediaURL,
			Caption:     m.Caption,
			Timestamp:   m.Timestamp,
		},
	}
}

// PartitionKey keeps every event about one media item on one broker partition.
func (r ReelReceived) PartitionKey() string { return r.MediaID }
