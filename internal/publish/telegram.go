package publish

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"backoffice/internal/model"
)

// Sender is the part of *tgbotapi.BotAPI the Telegram platform uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts content to a channel.
type Telegram struct {
	sender Sender
	chatID int64
}

func NewTelegram(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Publish(ctx context.Context, post model.ContentPost) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := strings.TrimSpace(post.Body)
	if title := strings.TrimSpace(post.Title); title != "" && text == "" {
		text = title
	}
	if text == "" {
		return "", errors.New("post has no text")
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	sent, err := t.sender.Send(msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}
