// Package notifier delivers relay messages to Telegram chats through the
// Bot API.
//
// Calls go through the Telegram scheduler (TELEGRAM_SEND_MIN_INTERVAL) and a
// circuit breaker. The sender makes exactly one attempt per call; retrying is
// the caller's decision.
package notifier

import (
	"context"

	"reel-relay/internal/domain/entity"
)

// Button is an inline keyboard button that opens a URL.
type Button struct {
	Text string
	URL  string
}

// Message is one chat message with optional URL buttons, one per row.
type Message struct {
	ChatID             string
	Text               string
	Buttons            []Button
	DisableLinkPreview bool
}

// Sender sends chat messages and returns the platform message id.
type Sender interface {
	SendMessage(ctx context.Context, msg Message) (messageID int64, err error)
}

// Button labels of a relayed reel.
const (
	JoinGroupLabel = "Join group"
	ViewReelLabel  = "View reel"
)

// ReelMessage builds the relay message for one reel: caption and permalink,
// plus a "Join group" button (dropped when inviteLink is empty) and a
// "View reel" button.
func ReelMessage(chatID string, caption *string, permalink, inviteLink string) Message {
	return Message{
		ChatID: chatID,
		Text:   entity.BuildMessageText(caption, permalink),
		Buttons: []Button{
			{Text: JoinGroupLabel, URL: inviteLink},
			{Text: ViewReelLabel, URL: permalink},
		},
	}
}
