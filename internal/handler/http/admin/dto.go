package admin

import (
	"encoding/json"
	"time"

	"reel-relay/internal/domain/entity"
	"reel-relay/internal/runtimeconfig"
)

type configDTO struct {
	TargetChatID string    `json:"targetChatId"`
	FromStore    bool      `json:"fromStore"`
	LoadedAt     time.Time `json:"loadedAt"`
}

func toConfigDTO(s *runtimeconfig.Snapshot) configDTO {
	return configDTO{TargetChatID: s.TargetChatID, FromStore: s.FromStore, LoadedAt: s.LoadedAt}
}

type failureDTO struct {
	ID          string          `json:"id"`
	JobName     string          `json:"jobName"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	ErrorReason string          `json:"errorReason"`
	RetryCount  int             `json:"retryCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toFailureDTO(f *entity.ProcessingFailure) failureDTO {
	return failureDTO{
		ID:          f.ID,
		JobName:     f.JobName,
		Payload:     f.Payload,
		ErrorReason: f.ErrorReason,
		RetryCount:  f.RetryCount,
		CreatedAt:   f.CreatedAt,
	}
}

type targetChatRequest struct {
	ChatID string `json:"chatId"`
}

type banRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type markDeadRequest struct {
	Reason string `json:"reason"`
}
