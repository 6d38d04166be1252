package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readlater/internal/markdown"
	"readlater/internal/pagetitle"
	"readlater/internal/platform"
	"readlater/internal/ratelimiter"
)

// Notifier delivers reminders as Telegram messages. Owners are Telegram
// users, so the owner ID doubles as the private chat ID.
type Notifier struct {
	rateLimiter *ratelimiter.RateLimiter
	log         *slog.Logger
}

func NewNotifier(rateLimiter *ratelimiter.RateLimiter, log *slog.Logger) *Notifier {
	return &Notifier{rateLimiter: rateLimiter, log: log}
}

func (n *Notifier) Notify(ctx context.Context, ownerID int64, notification platform.Notification) error {
	text, keyboard := formatNotification(notification)

	message := tgbotapi.NewMessage(ownerID, strings.ToValidUTF8(text, "?"))
	message.ParseMode = tgbotapi.ModeMarkdownV2
	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	if _, err := n.rateLimiter.Send(ctx, message); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	n.log.InfoContext(ctx, "Notification is sent",
		"ownerID", ownerID,
		"notificationID", notification.ID,
		"kind", notification.Kind)

	return nil
}

func formatNotification(n platform.Notification) (string, [][]tgbotapi.InlineKeyboardButton) {
	switch n.Kind {
	case platform.NotificationSummary:
		return fmt.Sprintf("🔔 %s\n\n%s\\.", markdown.Bold(n.Title), markdown.EscapeV2(n.Message)),
			getSummaryNotificationKeyboard()

	default:
		text := fmt.Sprintf("⏰ %s\n\n%s", markdown.Bold(n.Title), markdown.EscapeV2(n.Message))
		if n.URL != "" {
			text += "\n" + markdown.EscapeV2(pagetitle.Domain(n.URL))
		}

		return text, getArticleNotificationKeyboard(n.ArticleID, n.URL)
	}
}
