package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readlater/internal/markdown"
	"readlater/internal/schedule"
	"readlater/internal/service"
)

const customIDMarker = "🆔"

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	return b.withTyping(ctx, message.Chat.ID, func() error {
		if articleID, ok := customPromptArticleID(message.ReplyToMessage); ok {
			return b.handleCustomDateReply(ctx, articleID, message)
		}

		text := strings.TrimSpace(message.Text)
		chatID, userID := message.Chat.ID, message.From.ID

		switch {
		case strings.HasPrefix(text, "/start"):
			return b.handleStartCommand(ctx, text, chatID, userID)
		case strings.HasPrefix(text, "/menu"), strings.HasPrefix(text, "/help"):
			return b.handleMenuCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/today"):
			return b.handleListCommand(ctx, listToday, chatID, userID)
		case strings.HasPrefix(text, "/pending"):
			return b.handleListCommand(ctx, listPending, chatID, userID)
		case strings.HasPrefix(text, "/archived"):
			return b.handleListCommand(ctx, listArchived, chatID, userID)
		case strings.HasPrefix(text, "/clear"):
			return b.handleClearCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/usage"):
			return b.handleUsageCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/settings"):
			return b.handleSettingsCommand(ctx, chatID, userID)
		case strings.HasPrefix(text, "/notify"):
			return b.handleNotifyCommand(ctx, text, chatID, userID)
		default:
			return b.handleLinks(ctx, message)
		}
	})
}

// handleLinks saves every link of the message for tonight and offers the
// other presets right below the confirmation.
func (b *Bot) handleLinks(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID

	links, err := extractLinks(message)
	if err != nil {
		return fmt.Errorf("extract links: %w", err)
	}

	if len(links) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Links are not found\\. Send me a URL to read it later\\.",
			b.menuKeyboard)
	}

	var errs []error
	saved := 0

	for _, l := range links {
		article, saveErr := b.svc.SaveLink(ctx, userID, service.SaveRequest{
			URL:    l.URL,
			Title:  l.Title,
			Preset: schedule.Tonight,
		})
		if saveErr != nil {
			errs = append(errs, fmt.Errorf("save link: %w", saveErr))
			if article.ID == "" {
				continue
			}
		}

		saved++

		if sendErr := b.sendMessageWithKeyboard(ctx, chatID,
			formatSaved(article, b.clock()),
			getScheduleKeyboard(article.ID),
		); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}
	}

	if saved == 0 {
		if sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleCustomDateReply(ctx context.Context, articleID string, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID

	when, err := parseFutureDate(message.Text, b.loc, b.clock())
	if errors.Is(err, errDateInPast) {
		return b.sendCustomDatePrompt(ctx, chatID, articleID,
			"❌ That moment has already passed\\. Please pick a later one\\.")
	}
	if err != nil {
		b.log.DebugContext(ctx, "Custom date is not parsed",
			"error", err,
			"userID", userID,
			"articleID", articleID)

		return b.sendCustomDatePrompt(ctx, chatID, articleID,
			"❌ I could not read that date\\. Please use `YYYY-MM-DD HH:MM`\\.")
	}

	article, ok, err := b.svc.Reschedule(ctx, userID, articleID, schedule.Custom, &when)
	if err != nil {
		return errors.Join(
			fmt.Errorf("reschedule: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()),
		)
	}
	if !ok {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Article is not found\\.", getReturnKeyboard())
	}

	return b.sendMessageWithKeyboard(ctx, chatID, formatRescheduled(article, b.clock()), getScheduleKeyboard(article.ID))
}

var errDateInPast = errors.New("date is not in the future")

// parseFutureDate parses a custom reminder date that must be after now.
func parseFutureDate(text string, loc *time.Location, now time.Time) (time.Time, error) {
	when, err := schedule.ParseCustom(text, loc)
	if err != nil {
		return time.Time{}, err
	}

	if !when.After(now) {
		return time.Time{}, errDateInPast
	}

	return when, nil
}

func (b *Bot) sendCustomDatePrompt(ctx context.Context, chatID int64, articleID, lead string) error {
	text := fmt.Sprintf("%s\n\nReply with a date as `YYYY-MM-DD HH:MM`, e\\.g\\. `%s`\\.\n\n%s %s",
		lead,
		b.clock().AddDate(0, 0, 1).Format("2006-01-02")+" 20:00",
		customIDMarker,
		markdown.EscapeV2(articleID))

	message := b.newMessage(ctx, chatID, text)
	message.ReplyMarkup = tgbotapi.ForceReply{
		ForceReply:            true,
		InputFieldPlaceholder: "YYYY-MM-DD HH:MM",
	}

	_, err := b.rateLimiter.Send(ctx, message)
	return err
}

// customPromptArticleID recognizes a reply to the custom date prompt and
// returns the article it was asked for.
func customPromptArticleID(replyTo *tgbotapi.Message) (string, bool) {
	if replyTo == nil || replyTo.From == nil || !replyTo.From.IsBot {
		return "", false
	}

	_, rest, ok := strings.Cut(replyTo.Text, customIDMarker)
	if !ok {
		return "", false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}

	return fields[0], true
}
