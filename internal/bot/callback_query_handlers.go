package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readlater/internal/domain"
	"readlater/internal/schedule"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID, userID := callback.Message.Chat.ID, callback.From.ID

	return b.withTyping(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case callbackMenu:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleMenuCommand(ctx, chatID, userID)
			})
		case callbackMenuToday:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleListCommand(ctx, listToday, chatID, userID)
			})
		case callbackMenuPending:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleListCommand(ctx, listPending, chatID, userID)
			})
		case callbackMenuArchived:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleListCommand(ctx, listArchived, chatID, userID)
			})
		case callbackMenuUsage:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleUsageCommand(ctx, chatID, userID)
			})
		case callbackMenuSettings:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleSettingsCommand(ctx, chatID, userID)
			})
		case callbackSettingsAlarm:
			return b.handleSettingsToggleQuery(ctx, callback)
		}

		if rest, ok := strings.CutPrefix(data, callbackSchedule); ok {
			return b.handleScheduleQuery(ctx, rest, callback)
		}
		if hour, ok := strings.CutPrefix(data, callbackSettingsHour); ok {
			return b.handleSettingsHourQuery(ctx, hour, callback)
		}
		if articleID, ok := strings.CutPrefix(data, callbackArchive); ok {
			return b.handleArchiveQuery(ctx, articleID, callback)
		}
		if articleID, ok := strings.CutPrefix(data, callbackDelete); ok {
			return b.handleDeleteQuery(ctx, articleID, callback)
		}

		return nil
	})
}

// parseScheduleData splits "<preset>_<articleID>".
func parseScheduleData(rest string) (schedule.Preset, string, error) {
	presetStr, articleID, ok := strings.Cut(rest, "_")
	if !ok || articleID == "" {
		return "", "", fmt.Errorf("malformed schedule data %q", rest)
	}

	preset, ok := schedule.ParsePreset(presetStr)
	if !ok {
		return "", "", fmt.Errorf("unknown preset %q", presetStr)
	}

	return preset, articleID, nil
}

func (b *Bot) handleScheduleQuery(ctx context.Context, rest string, callback *tgbotapi.CallbackQuery) error {
	chatID, userID := callback.Message.Chat.ID, callback.From.ID

	preset, articleID, err := parseScheduleData(rest)
	if err != nil {
		return b.errorCallbackAnswer(callback, err)
	}

	if preset == schedule.Custom {
		article, ok, getErr := b.svc.Article(ctx, userID, articleID)
		if getErr != nil {
			return b.errorCallbackAnswer(callback, fmt.Errorf("get article: %w", getErr))
		}
		if !ok {
			return b.answerCallback(callback, "✖️ Article is not found.")
		}

		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.sendCustomDatePrompt(ctx, chatID, article.ID,
				fmt.Sprintf("📅 When should I remind you about %s?", boldTitle(article)))
		})
	}

	article, ok, err := b.svc.Reschedule(ctx, userID, articleID, preset, nil)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("reschedule: %w", err))
	}
	if !ok {
		return b.answerCallback(callback, "✖️ Article is not found.")
	}

	if err = b.answerCallback(callback, "⏰ "+formatWhen(article.ScheduledFor, b.clock())); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID,
		callback.Message.MessageID,
		formatSaved(article, b.clock()),
		tgbotapi.NewInlineKeyboardMarkup(getScheduleKeyboard(article.ID)...),
	)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true

	if _, err = b.rateLimiter.Send(ctx, edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	return nil
}

func (b *Bot) handleArchiveQuery(ctx context.Context, articleID string, callback *tgbotapi.CallbackQuery) error {
	ok, err := b.svc.Archive(ctx, callback.From.ID, articleID)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("archive: %w", err))
	}
	if !ok {
		return b.answerCallback(callback, "✖️ Article is not found.")
	}

	return errors.Join(
		b.answerCallback(callback, "✅ Archived."),
		b.dropKeyboard(ctx, callback),
	)
}

func (b *Bot) handleDeleteQuery(ctx context.Context, articleID string, callback *tgbotapi.CallbackQuery) error {
	ok, err := b.svc.Delete(ctx, callback.From.ID, articleID)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("delete: %w", err))
	}
	if !ok {
		return b.answerCallback(callback, "✖️ Article is not found.")
	}

	return errors.Join(
		b.answerCallback(callback, "🗑 Deleted."),
		b.dropKeyboard(ctx, callback),
	)
}

func (b *Bot) handleSettingsHourQuery(ctx context.Context, hour string, callback *tgbotapi.CallbackQuery) error {
	notifyTime := strings.TrimSpace(hour) + ":00"

	return b.updateSettings(ctx, callback, domain.SettingsPatch{NotifyTime: &notifyTime})
}

func (b *Bot) handleSettingsToggleQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	settings, err := b.svc.Settings(ctx, callback.From.ID)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("get settings: %w", err))
	}

	enabled := !settings.NotifyEnabled

	return b.updateSettings(ctx, callback, domain.SettingsPatch{NotifyEnabled: &enabled})
}

func (b *Bot) updateSettings(
	ctx context.Context,
	callback *tgbotapi.CallbackQuery,
	patch domain.SettingsPatch,
) error {
	if _, err := b.svc.UpdateSettings(ctx, callback.From.ID, patch); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("update settings: %w", err))
	}

	if err := b.answerCallback(callback, "✅ Settings are updated."); err != nil {
		return err
	}

	return b.handleSettingsCommand(ctx, callback.Message.Chat.ID, callback.From.ID)
}

// dropKeyboard removes the buttons of the message the callback came from.
func (b *Bot) dropKeyboard(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
	)

	if _, err := b.rateLimiter.Send(ctx, edit); err != nil {
		return fmt.Errorf("edit reply markup: %w", err)
	}

	return nil
}

func (b *Bot) answerCallback(callback *tgbotapi.CallbackQuery, text string) error {
	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, fmt.Errorf("send request: %w", err)))
	}

	err := fn()
	if err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
