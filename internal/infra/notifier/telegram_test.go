package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reel-relay/internal/infra/scheduler"
	"reel-relay/internal/resilience/retry"
)

func newSender(t *testing.T, srv *httptest.Server) *TelegramSender {
	t.Helper()
	sched := scheduler.New("telegram-test", 0)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	return NewTelegramSender(TelegramConfig{BotToken: "123:ABC", BaseURL: srv.URL, Timeout: time.Second}, sched)
}

func TestBuildRequest(t *testing.T) {
	t.Run("TC-1: should put each button on its own row", func(t *testing.T) {
		// Arrange
		msg := Message{
			ChatID: "-100",
			Text:   "caption\n\nhttps://www.instagram.com/reel/C1/",
			Buttons: []Button{
				{Text: "Join group", URL: "https://t.me/+invite"},
				{Text: "View reel", URL: "https://www.instagram.com/reel/C1/"},
			},
		}

		// Act
		req := buildRequest(msg)

		// Assert
		if req.ReplyMarkup == nil || len(req.ReplyMarkup.InlineKeyboard) != 2 {
			t.Fatalf("expected 2 keyboard rows, got %+v", req.ReplyMarkup)
		}
		if req.ReplyMarkup.InlineKeyboard[1][0].URL != "https://www.instagram.com/reel/C1/" {
			t.Errorf("unexpected second button: %+v", req.ReplyMarkup.InlineKeyboard[1][0])
		}
		if req.LinkPreviewOptions != nil {
			t.Error("link preview options should be omitted by default")
		}
	})

	t.Run("TC-2: should drop buttons without URL", func(t *testing.T) {
		req := buildRequest(Message{ChatID: "1", Text: "x", Buttons: []Button{{Text: "Join group", URL: ""}}})
		if req.ReplyMarkup != nil {
			t.Errorf("expected no keyboard, got %+v", req.ReplyMarkup)
		}
	})

	t.Run("TC-3: should truncate long text to 4096 runes", func(t *testing.T) {
		req := buildRequest(Message{ChatID: "1", Text: strings.Repeat("ä", 5000)})
		if n := len([]rune(req.Text)); n != maxMessageLength {
			t.Errorf("expected %d runes, got %d", maxMessageLength, n)
		}
		if !strings.HasSuffix(req.Text, truncationSuffix) {
			t.Error("expected truncation suffix")
		}
	})

	t.Run("TC-4: should disable link preview when asked", func(t *testing.T) {
		req := buildRequest(Message{ChatID: "1", Text: "x", DisableLinkPreview: true})
		if req.LinkPreviewOptions == nil || !req.LinkPreviewOptions.IsDisabled {
			t.Error("expected link_preview_options.is_disabled=true")
		}
	})
}

func TestReelMessage(t *testing.T) {
	caption := "  dance  "
	msg := ReelMessage("-100", &caption, "https://www.instagram.com/reel/C1", "https://t.me/+invite")

	if msg.ChatID != "-100" {
		t.Errorf("chat id = %q", msg.ChatID)
	}
	if msg.Text != "dance\n\nhttps://www.instagram.com/reel/C1" {
		t.Errorf("unexpected text %q", msg.Text)
	}
	if len(msg.Buttons) != 2 || msg.Buttons[0].Text != JoinGroupLabel || msg.Buttons[1].URL != "https://www.instagram.com/reel/C1" {
		t.Errorf("unexpected buttons %+v", msg.Buttons)
	}

	noCaption := ReelMessage("1", nil, "https://www.instagram.com/reel/C2", "")
	if noCaption.Text != "https://www.instagram.com/reel/C2" {
		t.Errorf("unexpected text %q", noCaption.Text)
	}
	if req := buildRequest(noCaption); len(req.ReplyMarkup.InlineKeyboard) != 1 {
		t.Errorf("empty invite link should leave one button, got %+v", req.ReplyMarkup)
	}
}

func TestTelegramSender_SendMessage(t *testing.T) {
	t.Run("TC-1: should return message id on success", func(t *testing.T) {
		// Arrange
		var gotPath string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &gotBody)
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":777}}`))
		}))
		defer srv.Close()

		// Act
		id, err := newSender(t, srv).SendMessage(context.Background(), Message{
			ChatID: "-100", Text: "hi", Buttons: []Button{{Text: "View reel", URL: "https://x"}},
		})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != 777 {
			t.Errorf("expected message id 777, got %d", id)
		}
		if gotPath != "/bot123:ABC/sendMessage" {
			t.Errorf("unexpected path %q", gotPath)
		}
		if gotBody["chat_id"] != "-100" {
			t.Errorf("unexpected chat_id %v", gotBody["chat_id"])
		}
		if _, ok := gotBody["reply_markup"]; !ok {
			t.Error("expected reply_markup in request")
		}
	})

	t.Run("TC-2: should surface 429 with retry_after", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":7}}`))
		}))
		defer srv.Close()

		_, err := newSender(t, srv).SendMessage(context.Background(), Message{ChatID: "1", Text: "x"})

		apiErr, ok := IsRateLimited(err)
		if !ok {
			t.Fatalf("expected rate limit error, got %v", err)
		}
		if apiErr.RetryAfter != 7*time.Second {
			t.Errorf("expected retry_after 7s, got %v", apiErr.RetryAfter)
		}
		if !retry.IsRetryable(err) {
			t.Error("429 should be retryable")
		}
	})

	t.Run("TC-3: should not treat a bad chat as retryable", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		}))
		defer srv.Close()

		_, err := newSender(t, srv).SendMessage(context.Background(), Message{ChatID: "nope", Text: "x"})

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
			t.Fatalf("expected 400 APIError, got %v", err)
		}
		if retry.IsRetryable(err) {
			t.Error("400 must not be retryable")
		}
		if calls != 1 {
			t.Errorf("expected a single attempt, got %d", calls)
		}
	})

	t.Run("TC-4: should not leak the bot token in transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		_, err := newSender(t, srv).SendMessage(context.Background(), Message{ChatID: "1", Text: "x"})

		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "123:ABC") {
			t.Errorf("token leaked in error: %v", err)
		}
	})
}
