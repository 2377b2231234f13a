package handler

import (
	"context"
	"strings"

	"absence-analytics/internal/models"
	"absence-analytics/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const addUsage = `✍️ *Добавление отсутствия*

Формат команды:
/add сотрудник подразделение причина дата_начала [дата_окончания]

Примеры:
/add E1 D1 sick 15.01.2024 19.01.2024
→ Больничный с 15 по 19 января 2024

/add E2 D2 vacation 01.07.2024
→ Отпуск на один день

💡 Запись проходит ту же очистку, что и выгрузки.`

// addAbsence вносит одно отсутствие вручную
func (h *Handler) addAbsence(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	parts := strings.Fields(args)
	if len(parts) == 0 {
		msg := tgbotapi.NewMessage(chatID, addUsage)
		msg.ParseMode = "Markdown"
		h.send(msg)
		return
	}
	if len(parts) != 4 && len(parts) != 5 {
		h.reply(chatID, "❌ Неверный формат. Используйте: /add сотрудник подразделение причина дата_начала [дата_окончания]")
		return
	}

	start, err := models.ParseDate(parts[3])
	if err != nil {
		h.reply(chatID, "❌ Ошибка в дате начала: "+err.Error())
		return
	}
	end := start
	if len(parts) == 5 {
		end, err = models.ParseDate(parts[4])
		if err != nil {
			h.reply(chatID, "❌ Ошибка в дате окончания: "+err.Error())
			return
		}
	}

	entry := service.ManualAbsence{
		EmployeeID:   parts[0],
		DepartmentID: parts[1],
		Reason:       parts[2],
		Start:        start,
		End:          end,
	}
	if message.From != nil {
		entry.Author = message.From.UserName
	}

	res, err := h.analyticsService.AddAbsence(ctx, entry)
	if err != nil {
		h.logger.WithError(err).WithField("employee_id", entry.EmployeeID).Error("Failed to add absence")
		h.reply(chatID, "❌ Ошибка добавления отсутствия. Попробуйте позже.")
		return
	}
	h.reply(chatID, formatAdded(res))
}
