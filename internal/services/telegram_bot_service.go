package services

import (
	"context"
	"strings"

	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

const botHelp = "*Smart Irrigation Bot*\n\n" +
	"/status - current farm status\n" +
	"/pump\\_on - switch the pump on\n" +
	"/pump\\_off - switch the pump off\n" +
	"/help - this message\n\n" +
	"Anything else is answered by the irrigation assistant."

// TelegramBotService answers inbound bot messages: /status renders the farm
// status, pump commands are pushed to connected devices over the realtime
// hub, and free-form questions go through the chat fallback chain.
type TelegramBotService struct {
	telegram  *notify.Telegram
	chat      *ChatService
	report    *ReportService
	broadcast *BroadcastService
	logger    *utils.Logger
	cancel    context.CancelFunc
}

// NewTelegramBotService creates the interactive bot
func NewTelegramBotService(
	telegram *notify.Telegram,
	chat *ChatService,
	report *ReportService,
	broadcast *BroadcastService,
	logger *utils.Logger,
) *TelegramBotService {
	return &TelegramBotService{
		telegram:  telegram,
		chat:      chat,
		report:    report,
		broadcast: broadcast,
		logger:    logger.Named("telegram_bot"),
	}
}

// Start launches the update loop; a disabled sink means no loop
func (s *TelegramBotService) Start(ctx context.Context) {
	if !s.telegram.Enabled() {
		s.logger.Info("Telegram bot disabled")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	updates := s.telegram.UpdatesChan()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.Text == "" {
					continue
				}
				reply := s.HandleMessage(ctx, update.Message.Text)
				if err := s.telegram.Reply(update.Message.Chat.ID, reply); err != nil {
					s.logger.Warn("Failed to answer bot message", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("Telegram bot listening for commands")
}

// Stop halts the update loop
func (s *TelegramBotService) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.telegram.StopUpdates()
	}
}

// HandleMessage routes one inbound message to its reply text
func (s *TelegramBotService) HandleMessage(ctx context.Context, text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/start", "/help":
		return botHelp
	case "/status":
		return s.report.StatusMessage()
	case "/pump_on":
		return s.pumpCommand("ON")
	case "/pump_off":
		return s.pumpCommand("OFF")
	default:
		return s.chat.Ask(ctx, text).Reply
	}
}

// pumpCommand pushes a manual pump command to every connected device. The
// confirmation alert fires later, when the device reports the new state.
func (s *TelegramBotService) pumpCommand(action string) string {
	s.broadcast.Broadcast(EventTypePumpCommand, map[string]string{"pump_cmd": action})
	s.logger.Info("Manual pump command sent", zap.String("action", action))
	return "Pump command sent: " + action
}
