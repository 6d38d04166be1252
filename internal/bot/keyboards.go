package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readlater/internal/schedule"
)

const (
	hoursPerDay                = 24
	settingsHourKeyboardRowSize = 6

	callbackMenu          = "menu"
	callbackMenuToday     = "menu_today"
	callbackMenuPending   = "menu_pending"
	callbackMenuArchived  = "menu_archived"
	callbackMenuUsage     = "menu_usage"
	callbackMenuSettings  = "menu_settings"
	callbackSettingsHour  = "settings_hour_"
	callbackSettingsAlarm = "settings_toggle"
	callbackSchedule      = "sched_"
	callbackArchive       = "arch_"
	callbackDelete        = "del_"
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	message := b.newMessage(ctx, chatID, text)
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	_, err := b.rateLimiter.Send(ctx, message)
	return err
}

func (b *Bot) newMessage(ctx context.Context, chatID int64, text string) tgbotapi.MessageConfig {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2
	message.DisableWebPagePreview = true

	return message
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📚 Today", callbackMenuToday),
			tgbotapi.NewInlineKeyboardButtonData("🕒 Pending", callbackMenuPending),
			tgbotapi.NewInlineKeyboardButtonData("🗄 Archived", callbackMenuArchived),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("💾 Usage", callbackMenuUsage),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", callbackMenuSettings),
		},
	}
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", callbackMenu)},
	}
}

// getScheduleKeyboard offers the presets for an article, like the save popup.
func getScheduleKeyboard(articleID string) [][]tgbotapi.InlineKeyboardButton {
	data := func(preset schedule.Preset) string {
		return callbackSchedule + string(preset) + "_" + articleID
	}

	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🌙 Tonight", data(schedule.Tonight)),
			tgbotapi.NewInlineKeyboardButtonData("☀️ Weekend", data(schedule.Weekend)),
			tgbotapi.NewInlineKeyboardButtonData("📅 Next week", data(schedule.NextWeek)),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Custom…", data(schedule.Custom)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", callbackDelete+articleID),
		},
	}
}

func getSettingsKeyboard(notifyEnabled bool) [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < hoursPerDay; i += settingsHourKeyboardRowSize {
		var row []tgbotapi.InlineKeyboardButton

		for j := i; j < i+settingsHourKeyboardRowSize && j < hoursPerDay; j++ {
			hour := fmt.Sprintf("%02d", j)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(hour, callbackSettingsHour+hour))
		}

		keyboard = append(keyboard, row)
	}

	toggle := "🔕 Turn reminder off"
	if !notifyEnabled {
		toggle = "🔔 Turn reminder on"
	}

	return append(keyboard,
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData(toggle, callbackSettingsAlarm)},
		getReturnKeyboard()[0],
	)
}

// getArticleNotificationKeyboard opens the article and lets it be archived
// right from the reminder.
func getArticleNotificationKeyboard(articleID, articleURL string) [][]tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton

	if isWebURL(articleURL) {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("📖 Open", articleURL))
	}

	if articleID != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Archive", callbackArchive+articleID))
	}

	if len(row) == 0 {
		return nil
	}

	return [][]tgbotapi.InlineKeyboardButton{row}
}

func getSummaryNotificationKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("📚 Read now", callbackMenuToday)},
	}
}
