package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"reel-relay/internal/infra/scheduler"
	"reel-relay/internal/resilience/circuitbreaker"
)

// TelegramConfig contains configuration for the Bot API client.
type TelegramConfig struct {
	// BotToken authenticates the bot; it is part of every request path.
	BotToken string

	// BaseURL defaults to https://api.telegram.org.
	BaseURL string

	// Timeout is the HTTP request timeout for each Bot API call.
	Timeout time.Duration
}

const (
	// Telegram limits
	maxMessageLength = 4096
	truncationSuffix = "..."
)

// TelegramSender sends messages via the Bot API sendMessage method.
type TelegramSender struct {
	config     TelegramConfig
	httpClient *http.Client
	scheduler  *scheduler.Scheduler
	breaker    *circuitbreaker.CircuitBreaker
}

// NewTelegramSender creates a sender that paces its calls through sched.
func NewTelegramSender(config TelegramConfig, sched *scheduler.Scheduler) *TelegramSender {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.telegram.org"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &TelegramSender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		scheduler: sched,
		breaker:   circuitbreaker.New(circuitbreaker.TelegramConfig()),
	}
}

func (t *TelegramSender) Breaker() *circuitbreaker.CircuitBreaker { return t.breaker }

// sendMessageRequest is the JSON body of sendMessage.
type sendMessageRequest struct {
	ChatID             string              `json:"chat_id"`
	Text               string              `json:"text"`
	ReplyMarkup        *inlineKeyboard     `json:"reply_markup,omitempty"`
	LinkPreviewOptions *linkPreviewOptions `json:"link_preview_options,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// buildRequest converts a Message into the sendMessage payload. Each
// button gets its own keyboard row.
func buildRequest(msg Message) sendMessageRequest {
	req := sendMessageRequest{
		ChatID: msg.ChatID,
		Text:   truncateText(msg.Text, maxMessageLength, truncationSuffix),
	}
	if len(msg.Buttons) > 0 {
		rows := make([][]inlineButton, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			if strings.TrimSpace(b.URL) == "" {
				continue
			}
			rows = append(rows, []inlineButton{{Text: b.Text, URL: b.URL}})
		}
		if len(rows) > 0 {
			req.ReplyMarkup = &inlineKeyboard{InlineKeyboard: rows}
		}
	}
	if msg.DisableLinkPreview {
		req.LinkPreviewOptions = &linkPreviewOptions{IsDisabled: true}
	}
	return req
}

// SendMessage implements Sender. It makes a single attempt.
func (t *TelegramSender) SendMessage(ctx context.Context, msg Message) (int64, error) {
	requestID := uuid.New().String()

	id, err := scheduler.Do(ctx, t.scheduler, func(ctx context.Context) (int64, error) {
		return circuitbreaker.Call(t.breaker, func() (int64, error) {
			return t.send(ctx, msg)
		})
	})
	if err != nil {
		if apiErr, ok := IsRateLimited(err); ok {
			slog.Warn("Telegram rate limit hit",
				slog.String("request_id", requestID),
				slog.String("chat_id", msg.ChatID),
				slog.Duration("retry_after", apiErr.RetryAfter))
		} else {
			slog.Error("Telegram sendMessage failed",
				slog.String("request_id", requestID),
				slog.String("chat_id", msg.ChatID),
				slog.Any("error", err))
		}
		return 0, err
	}

	slog.Info("Telegram message sent",
		slog.String("request_id", requestID),
		slog.String("chat_id", msg.ChatID),
		slog.Int64("message_id", id))
	return id, nil
}

func (t *TelegramSender) send(ctx context.Context, msg Message) (int64, error) {
	jsonData, err := json.Marshal(buildRequest(msg))
	if err != nil {
		return 0, fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	endpoint := strings.TrimRight(t.config.BaseURL, "/") + "/bot" + t.config.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return 0, errors.New("create http request: invalid Telegram endpoint")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// url.Error には bot token 入りの URL が含まれる
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return 0, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, &APIError{StatusCode: resp.StatusCode, Description: "unparseable response"}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && parsed.OK {
		return parsed.Result.MessageID, nil
	}

	status := parsed.ErrorCode
	if status == 0 {
		status = resp.StatusCode
	}
	apiErr := &APIError{StatusCode: status, Description: parsed.Description}
	if status == http.StatusTooManyRequests {
		apiErr.RetryAfter = time.Duration(parsed.Parameters.RetryAfter) * time.Second
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter = 5 * time.Second
		}
	}
	return 0, apiErr
}
