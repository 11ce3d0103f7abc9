package request

import (
	"time"

	"reel-relay/internal/domain/entity"
)

// DTO is the JSON view of a media request.
type DTO struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	SourceType      string    `json:"sourceType"`
	NormalizedURL   string    `json:"normalizedUrl"`
	OriginalURL     string    `json:"originalUrl"`
	ResolvedMediaID *string   `json:"resolvedMediaId,omitempty"`
	ErrorReason     *string   `json:"errorReason,omitempty"`
	ChatID          *string   `json:"chatId,omitempty"`
	MessageID       *int64    `json:"messageId,omitempty"`
	SubmitterID     *string   `json:"submitterId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toDTO(r *entity.MediaRequest) DTO {
	return DTO{
		ID:              r.ID,
		Status:          string(r.Status),
		SourceType:      string(r.SourceType),
		NormalizedURL:   r.NormalizedURL,
		OriginalURL:     r.OriginalURL,
		ResolvedMediaID: r.ResolvedMediaID,
		ErrorReason:     r.ErrorReason,
		ChatID:          r.ChatID,
		MessageID:       r.MessageID,
		SubmitterID:     r.SubmitterID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type submitRequest struct {
	URL         string  `json:"url"`
	ChatID      *string `json:"chatId,omitempty"`
	MessageID   *int64  `json:"messageId,omitempty"`
	SubmitterID *string `json:"submitterId,omitempty"`
}

type submitResponse struct {
	RequestID     string `json:"requestId"`
	AlreadyExists bool   `json:"alreadyExists"`
}
