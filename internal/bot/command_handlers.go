package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"readlater/internal/domain"
	"readlater/internal/markdown"
)

const welcomeText = `🤖 *Welcome to Read Later\!*

Send me links and I will remind you to read them\. I can help you:

– Save any URL you send me for tonight, then move it to the weekend, next week or a custom date
– Show what is due with /today, everything queued with /pending and what you have read with /archived
– Send a daily summary of what is due \(default \- 20:00\)
– Clean up read articles with /clear and check storage with /usage
– Configure the reminder with /settings or /notify HH:MM`

func (b *Bot) handleStartCommand(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
) error {
	payload := commandArgument(text)

	switch {
	case strings.HasPrefix(payload, deepLinkArchive):
		return b.handleArchiveDeepLink(ctx, strings.TrimPrefix(payload, deepLinkArchive), chatID, userID)
	case strings.HasPrefix(payload, deepLinkRestore):
		return b.handleRestoreDeepLink(ctx, strings.TrimPrefix(payload, deepLinkRestore), chatID, userID)
	case strings.HasPrefix(payload, deepLinkDelete):
		return b.handleDeleteDeepLink(ctx, strings.TrimPrefix(payload, deepLinkDelete), chatID, userID)
	}

	next, err := b.svc.Install(ctx, userID)
	if err != nil {
		return errors.Join(
			fmt.Errorf("install: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard),
		)
	}

	b.log.InfoContext(ctx, "User is started",
		"userID", userID,
		"reminderAt", next)

	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleArchiveDeepLink(ctx context.Context, articleID string, chatID, userID int64) error {
	ok, err := b.svc.Archive(ctx, userID, articleID)
	if err = b.reportAction(ctx, chatID, ok, err, "✅ Article is archived\\."); err != nil {
		return err
	}

	return b.handleListCommand(ctx, listToday, chatID, userID)
}

func (b *Bot) handleRestoreDeepLink(ctx context.Context, articleID string, chatID, userID int64) error {
	ok, err := b.svc.Unarchive(ctx, userID, articleID)
	if err = b.reportAction(ctx, chatID, ok, err, "✅ Article is back in the queue\\."); err != nil {
		return err
	}

	return b.handleListCommand(ctx, listArchived, chatID, userID)
}

func (b *Bot) handleDeleteDeepLink(ctx context.Context, articleID string, chatID, userID int64) error {
	ok, err := b.svc.Delete(ctx, userID, articleID)
	return b.reportAction(ctx, chatID, ok, err, "🗑 Article is deleted\\.")
}

// reportAction tells the user how an article action went. A nil result means
// the action succeeded and was reported.
func (b *Bot) reportAction(ctx context.Context, chatID int64, ok bool, err error, success string) error {
	switch {
	case err != nil:
		return errors.Join(err, b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()))
	case !ok:
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Article is not found\\.", getReturnKeyboard())
	default:
		return b.sendMessageWithKeyboard(ctx, chatID, success, nil)
	}
}

// handleMenuCommand shows the menu with the number of articles due today.
// A failed count only drops the badge.
func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64, userID int64) error {
	count, err := b.svc.TodayCount(ctx, userID)
	if err != nil {
		b.log.WarnContext(ctx, "Failed to count today articles",
			"error", err,
			"userID", userID)

		count = 0
	}

	return b.sendMessageWithKeyboard(ctx, chatID, formatMenu(count), b.menuKeyboard)
}

func (b *Bot) handleListCommand(ctx context.Context, kind listKind, chatID int64, userID int64) error {
	var (
		list []domain.Article
		err  error
	)

	switch kind {
	case listToday:
		list, err = b.svc.Today(ctx, userID)
	case listPending:
		list, err = b.svc.Pending(ctx, userID)
	default:
		list, err = b.svc.Archived(ctx, userID)
	}

	if err != nil {
		return errors.Join(
			fmt.Errorf("list articles: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()),
		)
	}

	var errs []error

	messages := formatArticleList(list, kind, b.api.Self.UserName, b.clock())
	for i, message := range messages {
		keyboard := getReturnKeyboard()
		if i < len(messages)-1 {
			keyboard = nil
		}

		if err = b.sendMessageWithKeyboard(ctx, chatID, message, keyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleClearCommand(ctx context.Context, chatID int64, userID int64) error {
	deleted, err := b.svc.DeleteArchived(ctx, userID)
	if err != nil {
		return errors.Join(
			fmt.Errorf("delete archived: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()),
		)
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		fmt.Sprintf("🧹 Deleted %d archived articles\\.", deleted),
		getReturnKeyboard())
}

func (b *Bot) handleUsageCommand(ctx context.Context, chatID int64, userID int64) error {
	usage, err := b.svc.Usage(ctx, userID)
	if err != nil {
		return errors.Join(
			fmt.Errorf("get usage: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()),
		)
	}

	return b.sendMessageWithKeyboard(ctx, chatID, formatUsage(usage), getReturnKeyboard())
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64, userID int64) error {
	settings, err := b.svc.Settings(ctx, userID)
	if err != nil {
		return errors.Join(
			fmt.Errorf("get settings: %w", err),
			b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()),
		)
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		formatSettings(settings, b.clock()),
		getSettingsKeyboard(settings.NotifyEnabled))
}

func (b *Bot) handleNotifyCommand(ctx context.Context, text string, chatID int64, userID int64) error {
	notifyTime := commandArgument(text)
	if notifyTime == "" {
		return b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Send the time as "+markdown.Code("/notify HH:MM")+"\\.",
			getReturnKeyboard())
	}
	if _, err := b.svc.UpdateSettings(ctx, userID, domain.SettingsPatch{NotifyTime: &notifyTime}); err != nil {
		b.log.DebugContext(ctx, "Notify time is rejected",
			"error", err,
			"userID", userID,
			"notifyTime", notifyTime)

		return b.sendMessageWithKeyboard(ctx, chatID,
			"❌ Invalid time\\. Use "+markdown.Code("HH:MM")+", e\\.g\\. "+markdown.Code("/notify 21:30")+"\\.",
			getReturnKeyboard())
	}

	return b.handleSettingsCommand(ctx, chatID, userID)
}

// commandArgument returns the first word after the command, e.g. the deep
// link payload of "/start archive_x".
func commandArgument(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}

	return fields[1]
}
