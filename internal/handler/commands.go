package handler

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start":
		h.sendStartMessage(message)
	case "help":
		h.sendHelpMessage(message)

	// Отчеты по отсутствиям
	case "departments":
		h.showDepartments(message, args)
	case "months":
		h.showMonths(message, args)
	case "reasons":
		h.showReasons(message, args)
	case "weekdays":
		h.showWeekdays(message, args)
	case "sick":
		h.showSickness(message, args)
	case "employee":
		h.showEmployee(message, args)
	case "stats":
		h.showDailyStats(ctx, message, args)
	case "absent":
		h.showAbsentOn(message, args)

	// Ручной ввод
	case "add":
		h.addAbsence(ctx, message, args)

	// Качество данных и календарь
	case "quality":
		h.showQuality(message)
	case "checkday":
		h.checkWorkingDay(message, args)

	default:
		h.sendUnknownCommand(message)
	}
}

func (h *Handler) sendUnknownCommand(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, "❌ Неизвестная команда. Используйте /help для списка команд.")
}

func (h *Handler) sendStartMessage(message *tgbotapi.Message) {
	text := `👋 Бот аналитики отсутствий.

Отчеты строятся по принятым выгрузкам отсутствий: больничные, отпуска, отгулы.
Используйте /help для списка команд.`

	h.reply(message.Chat.ID, text)
}

const helpText = `📋 Доступные команды:

📊 Отчеты (период необязателен):
/departments [с по] - Дни отсутствия по подразделениям
/months [с по] - Дни отсутствия по периодам (месяцы, недели или дни)
/reasons [с по] - Дни отсутствия по причинам
/weekdays [с по] - Дни отсутствия по дням недели
/stats [с по] - Статистика отсутствий в день по месяцам
    Пример: /months 01.01.2024 31.03.2024
    Период можно задать месяцами: /departments 01.2024 03.2024
    Или текущий: /reasons текущий

🏥 Больничные:
/sick [с по] - Дни болезни и оценка по сотрудникам

👤 Сотрудники:
/employee ID - Сводка по сотруднику (без ID - список)
    Пример: /employee E1
/absent [дата] - Кто отсутствует в этот день (по умолчанию сегодня)
/add сотрудник подразделение причина с [по] - Добавить отсутствие вручную
    Пример: /add E1 D1 sick 15.01.2024 19.01.2024

🧹 Данные:
/quality - Последняя выгрузка и итоги очистки
/checkday [дата] - Рабочий ли день по производственному календарю

🛠 Утилиты:
/start - Начать работу с ботом
/help - Показать это сообщение`

func (h *Handler) sendHelpMessage(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, helpText)
}
