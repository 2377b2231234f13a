package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"absence-analytics/internal/models"
	"absence-analytics/internal/query"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var monthLayouts = []string{"01.2006", "2006-01"}

// parseMonth "03.2024" или "2024-03"
func parseMonth(s string) (time.Time, bool) {
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.TruncateDate(t), true
		}
	}
	return time.Time{}, false
}

// parsePeriod разбирает "с по" (даты или месяцы) и "текущий" (корзина,
// в которую попадает now); без аргументов период не ограничен
func parsePeriod(args string, now time.Time, bucket models.Bucket) (*models.DateRange, error) {
	parts := strings.Fields(args)
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		if word := strings.ToLower(parts[0]); word == "текущий" || word == "current" {
			period, err := query.CurrentPeriod(now, bucket)
			if err != nil {
				return nil, err
			}
			return &period, nil
		}
	case 2:
		from, fromMonth := parseMonth(parts[0])
		to, toMonth := parseMonth(parts[1])
		if fromMonth && toMonth {
			period := query.MonthRange(from, to)
			return &period, nil
		}

		start, err := models.ParseDate(parts[0])
		if err != nil {
			return nil, fmt.Errorf("дата начала: %w", err)
		}
		end, err := models.ParseDate(parts[1])
		if err != nil {
			return nil, fmt.Errorf("дата окончания: %w", err)
		}
		return &models.DateRange{Start: start, End: end}, nil
	}
	return nil, errors.New("укажите две даты, два месяца или \"текущий\"")
}

// prepare разбирает период и берет текущий снимок
func (h *Handler) prepare(chatID int64, args string) (*query.Snapshot, models.FilterCriteria, bool) {
	period, err := parsePeriod(args, h.now(), h.analyticsService.Bucket())
	if err != nil {
		h.reply(chatID, "❌ Неверный формат периода: "+err.Error())
		return nil, models.FilterCriteria{}, false
	}

	snap, err := h.analyticsService.Snapshot()
	if err != nil {
		h.replyError(chatID, err)
		return nil, models.FilterCriteria{}, false
	}
	if snap.Len() == 0 {
		h.reply(chatID, "📭 Данных пока нет. Загрузите выгрузку отсутствий.")
		return nil, models.FilterCriteria{}, false
	}
	return snap, models.FilterCriteria{DateRange: period}, true
}

func (h *Handler) replyError(chatID int64, err error) {
	if errors.Is(err, models.ErrConfiguration) {
		h.reply(chatID, "❌ Неверный запрос: "+err.Error())
		return
	}
	h.logger.WithError(err).Error("Failed to build report")
	h.reply(chatID, "❌ Ошибка построения отчета. Попробуйте позже.")
}

func (h *Handler) showAggregation(message *tgbotapi.Message, args string, title string, grouping models.Grouping, label func(string) string) {
	chatID := message.Chat.ID
	snap, criteria, ok := h.prepare(chatID, args)
	if !ok {
		return
	}

	res, err := h.analyticsService.Query(snap, grouping, criteria)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, formatAggregation(title, criteria.DateRange, res, label))
}

func (h *Handler) showDepartments(message *tgbotapi.Message, args string) {
	snap, err := h.analyticsService.Snapshot()
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}
	departments, err := h.analyticsService.Departments(snap)
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}
	h.showAggregation(message, args, "🏢 Отсутствия по подразделениям",
		models.Grouping{Dimension: models.DimensionDepartment, Universe: departments}, nil)
}

var bucketTitles = map[models.Bucket]string{
	models.BucketDay:   "📅 Отсутствия по дням",
	models.BucketWeek:  "📅 Отсутствия по неделям",
	models.BucketMonth: "📅 Отсутствия по месяцам",
}

// showMonths отчет по периодам в корзине из настроек
func (h *Handler) showMonths(message *tgbotapi.Message, args string) {
	bucket := h.analyticsService.Bucket()
	h.showAggregation(message, args, bucketTitles[bucket],
		models.Grouping{Dimension: models.DimensionPeriod, Bucket: bucket}, monthLabel)
}

func (h *Handler) showReasons(message *tgbotapi.Message, args string) {
	reasons := models.Reasons()
	universe := make([]string, len(reasons))
	for i, r := range reasons {
		universe[i] = string(r)
	}
	h.showAggregation(message, args, "🗂 Отсутствия по причинам",
		models.Grouping{Dimension: models.DimensionReason, Universe: universe}, func(k string) string { return reasonLabel(models.Reason(k)) })
}

func (h *Handler) showWeekdays(message *tgbotapi.Message, args string) {
	h.showAggregation(message, args, "📆 Отсутствия по дням недели",
		models.Grouping{Dimension: models.DimensionWeekday}, weekdayLabel)
}

func (h *Handler) showSickness(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	snap, criteria, ok := h.prepare(chatID, args)
	if !ok {
		return
	}

	records, err := snap.Query(criteria)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	engine := h.analyticsService.Engine()
	overview, err := engine.SicknessOverview(records)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, formatSickness(criteria.DateRange, overview))
}

func (h *Handler) showDailyStats(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	snap, criteria, ok := h.prepare(chatID, args)
	if !ok {
		return
	}

	dashboard, err := h.analyticsService.Dashboard(ctx, snap, criteria)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, formatDailyStats(dashboard.Daily))
}

func (h *Handler) showEmployee(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	employeeID := strings.TrimSpace(args)
	if employeeID == "" {
		employees, err := h.analyticsService.Employees()
		if err != nil {
			h.replyError(chatID, err)
			return
		}
		h.reply(chatID, formatEmployeeList(employees))
		return
	}

	snap, err := h.analyticsService.Snapshot()
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	summary, err := h.analyticsService.Employee(snap, employeeID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if summary == nil {
		h.reply(chatID, fmt.Sprintf("❌ Сотрудник %s не найден.", employeeID))
		return
	}
	h.reply(chatID, formatEmployee(summary))
}

func (h *Handler) showAbsentOn(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	date := models.TruncateDate(h.now())
	if strings.TrimSpace(args) != "" {
		parsed, err := models.ParseDate(args)
		if err != nil {
			h.reply(chatID, "❌ Неверный формат даты. Пример: /absent 15.01.2024")
			return
		}
		date = parsed
	}

	snap, err := h.analyticsService.Snapshot()
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	records, err := h.analyticsService.AbsentOn(snap, date)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, formatAbsentOn(date, records))
}

func (h *Handler) showQuality(message *tgbotapi.Message) {
	report, err := h.analyticsService.Quality()
	if err != nil {
		h.replyError(message.Chat.ID, err)
		return
	}
	h.reply(message.Chat.ID, formatQuality(report))
}

func (h *Handler) checkWorkingDay(message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	date := models.TruncateDate(h.now())
	if strings.TrimSpace(args) != "" {
		parsed, err := models.ParseDate(args)
		if err != nil {
			h.reply(chatID, "❌ Неверный формат даты. Пример: /checkday 01.05.2024")
			return
		}
		date = parsed
	}

	info, err := h.nonWorkingDayService.CheckDay(date)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, formatDayInfo(info))
}
