package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// Telegram sends alert and status messages to one configured chat.
// A nil-safe disabled instance is returned when no token is set.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *utils.Logger
}

// NewTelegram creates the Telegram sink. A missing token yields a disabled
// sink rather than an error so the rest of the system runs without it.
func NewTelegram(cfg config.TelegramConfig, logger *utils.Logger) *Telegram {
	t := &Telegram{chatID: cfg.ChatID, logger: logger.Named("telegram")}
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		t.logger.Info("Telegram sink disabled, no bot token or chat id configured")
		return t
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		t.logger.Warn("Failed to initialize Telegram bot, sink disabled", zap.Error(err))
		return t
	}
	t.bot = bot
	t.logger.Info("Telegram sink ready", zap.String("bot", bot.Self.UserName))
	return t
}

// Enabled reports whether messages will actually be delivered
func (t *Telegram) Enabled() bool {
	return t.bot != nil
}

// Send delivers one markdown-formatted message to the configured chat
func (t *Telegram) Send(text string) error {
	return t.Reply(t.chatID, text)
}

// Reply delivers one markdown-formatted message to a specific chat, used by
// the interactive bot to answer whoever asked
func (t *Telegram) Reply(chatID int64, text string) error {
	if t.bot == nil {
		return fmt.Errorf("%w: telegram sink disabled", utils.ErrProvider)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("%w: telegram send: %v", utils.ErrProvider, err)
	}
	return nil
}

// UpdatesChan opens the bot's long-poll update stream, nil when disabled
func (t *Telegram) UpdatesChan() tgbotapi.UpdatesChannel {
	if t.bot == nil {
		return nil
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return t.bot.GetUpdatesChan(u)
}

// StopUpdates halts the long-poll stream and closes the updates channel
func (t *Telegram) StopUpdates() {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}
