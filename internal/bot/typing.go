package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// Saves that finish quicker than this never show the indicator.
	typingDelay = 500 * time.Millisecond
	// Telegram drops the chat action after about five seconds.
	typingRefresh = 4 * time.Second
)

// withTyping runs fn and shows "typing…" in chatID for as long as it takes
// once it outlasts typingDelay. Page title lookups are the slow part.
func (b *Bot) withTyping(ctx context.Context, chatID int64, fn func() error) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		wait := time.NewTimer(typingDelay)
		defer wait.Stop()

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-wait.C:
		}

		refresh := time.NewTicker(typingRefresh)
		defer refresh.Stop()

		for {
			b.chatAction(ctx, chatID, tgbotapi.ChatTyping)

			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-refresh.C:
			}
		}
	}()

	return fn()
}

func (b *Bot) chatAction(ctx context.Context, chatID int64, action string) {
	if _, err := b.rateLimiter.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		b.log.WarnContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID,
			"action", action)
	}
}
