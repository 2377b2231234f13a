package handler

import (
	"context"
	"time"

	"absence-analytics/internal/service"
	"absence-analytics/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Sender отправка сообщений; *tgbotapi.BotAPI его реализует
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Handler struct {
	sender               Sender
	analyticsService     *service.AnalyticsService
	nonWorkingDayService *service.NonWorkingDayService
	logger               *logrus.Logger
	// now опорная дата для команд без явного периода
	now func() time.Time
}

func NewHandler(
	client *telegram.Client,
	analyticsService *service.AnalyticsService,
	nonWorkingDayService *service.NonWorkingDayService,
	logger *logrus.Logger,
) *Handler {
	return newHandler(client.Bot, analyticsService, nonWorkingDayService, logger)
}

func newHandler(
	sender Sender,
	analyticsService *service.AnalyticsService,
	nonWorkingDayService *service.NonWorkingDayService,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		sender:               sender,
		analyticsService:     analyticsService,
		nonWorkingDayService: nonWorkingDayService,
		logger:               logger,
		now:                  time.Now,
	}
}

// HandleUpdates обрабатывает обновления до закрытия канала или отмены ctx
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			h.handleMessage(ctx, update.Message)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	user := ""
	if message.From != nil {
		user = message.From.UserName
	}
	h.logger.WithField("user", user).Infof("%s", message.Text)

	if message.IsCommand() {
		h.handleCommand(ctx, message)
		return
	}

	h.reply(message.Chat.ID, "Я понимаю только команды. Используйте /help для списка команд.")
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(msg tgbotapi.MessageConfig) {
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to send message")
	}
}
