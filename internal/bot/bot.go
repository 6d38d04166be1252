package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"readlater/internal/domain"
	"readlater/internal/ratelimiter"
	"readlater/internal/schedule"
	"readlater/internal/service"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 60 * time.Second

	BotUpdateTimeout = 60
)

// Service is the read-later workflow the bot exposes.
type Service interface {
	Install(ctx context.Context, ownerID int64) (time.Time, error)
	SaveLink(ctx context.Context, ownerID int64, req service.SaveRequest) (domain.Article, error)
	Reschedule(
		ctx context.Context,
		ownerID int64,
		articleID string,
		preset schedule.Preset,
		custom *time.Time,
	) (domain.Article, bool, error)
	Article(ctx context.Context, ownerID int64, articleID string) (domain.Article, bool, error)
	Today(ctx context.Context, ownerID int64) ([]domain.Article, error)
	TodayCount(ctx context.Context, ownerID int64) (int, error)
	Pending(ctx context.Context, ownerID int64) ([]domain.Article, error)
	Archived(ctx context.Context, ownerID int64) ([]domain.Article, error)
	Archive(ctx context.Context, ownerID int64, articleID string) (bool, error)
	Unarchive(ctx context.Context, ownerID int64, articleID string) (bool, error)
	Delete(ctx context.Context, ownerID int64, articleID string) (bool, error)
	DeleteArchived(ctx context.Context, ownerID int64) (int, error)
	Usage(ctx context.Context, ownerID int64) (domain.Usage, error)
	Settings(ctx context.Context, ownerID int64) (domain.Settings, error)
	UpdateSettings(ctx context.Context, ownerID int64, patch domain.SettingsPatch) (domain.Settings, error)
}

type Bot struct {
	api          *tgbotapi.BotAPI
	rateLimiter  *ratelimiter.RateLimiter
	svc          Service
	allowedUsers []int64
	loc          *time.Location
	now          func() time.Time
	menuKeyboard [][]tgbotapi.InlineKeyboardButton
	log          *slog.Logger
}

// NewAPI connects to Telegram with token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return api, nil
}

func New(
	api *tgbotapi.BotAPI,
	rateLimiter *ratelimiter.RateLimiter,
	svc Service,
	allowedUsers []int64,
	loc *time.Location,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:          api,
		rateLimiter:  rateLimiter,
		svc:          svc,
		allowedUsers: allowedUsers,
		loc:          loc,
		now:          time.Now,
		menuKeyboard: getMenuKeyboard(),
		log:          log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		chatID, chatType := chatContext(update.Message.Chat)

		userID := update.Message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", update.Message.From.UserName,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil:
		chatID := callbackChatID(update.CallbackQuery)

		if !b.userAllowed(update.CallbackQuery.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", update.CallbackQuery.From.ID,
				"chatID", chatID,
				"username", update.CallbackQuery.From.UserName,
				"data", update.CallbackQuery.Data)

			return
		}

		if chatID == 0 {
			b.log.DebugContext(updateCtx, "Callback query without message is skipped",
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) clock() time.Time {
	return b.now().In(b.loc)
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
