package handler

import (
	"fmt"
	"strings"
	"time"

	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"
	"absence-analytics/internal/service"
)

var reasonLabels = map[models.Reason]string{
	models.ReasonSickness: "Болезнь",
	models.ReasonVacation: "Отпуск",
	models.ReasonUnpaid:   "Без содержания",
	models.ReasonOther:    "Другое",
	models.ReasonUnknown:  "Не указано",
}

var weekdayLabels = map[string]string{
	"Monday":    "Понедельник",
	"Tuesday":   "Вторник",
	"Wednesday": "Среда",
	"Thursday":  "Четверг",
	"Friday":    "Пятница",
	"Saturday":  "Суббота",
	"Sunday":    "Воскресенье",
}

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var tierLabels = map[metrics.SicknessTier]string{
	metrics.TierGood:       "🟢",
	metrics.TierModerate:   "🟡",
	metrics.TierConcerning: "🟠",
	metrics.TierCritical:   "🔴",
}

var overlapPolicyLabels = map[metrics.OverlapPolicy]string{
	metrics.OverlapCountBoth: "дни считаются по каждой записи",
	metrics.OverlapMerge:     "дни объединяются",
}

var rejectionLabels = map[models.RejectionCode]string{
	models.RejectInvalidField:         "некорректные поля",
	models.RejectInvertedRange:        "начало позже окончания",
	models.RejectImplausibleDuration:  "неправдоподобная длительность",
	models.RejectSupersededDuplicate:  "дубликаты",
	models.RejectSupersededCorrection: "заменены исправлениями",
}

func reasonLabel(r models.Reason) string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return string(r)
}

func weekdayLabel(key string) string {
	if label, ok := weekdayLabels[key]; ok {
		return label
	}
	return key
}

// monthLabel "2024-03" -> "Март 2024"
func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

func periodTitle(period *models.DateRange) string {
	if period == nil {
		return "за все время"
	}
	return fmt.Sprintf("с %s по %s", period.Start.Format("02.01.2006"), period.End.Format("02.01.2006"))
}

// formatAggregation строки отчета в порядке результата; label может быть nil
func formatAggregation(title string, period *models.DateRange, res models.AggregationResult, label func(string) string) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s (%s):\n\n", title, periodTitle(period)))

	if len(res.Groups) == 0 {
		result.WriteString("📭 Отсутствий за период нет")
		return result.String()
	}

	for _, g := range res.Groups {
		name := g.Key
		if label != nil {
			name = label(g.Key)
		}
		result.WriteString(fmt.Sprintf("• %s: %d дн. (рабочих %d, записей %d)\n", name, g.AbsenceDays, g.WorkingDays, g.RecordCount))
	}

	total := res.Total()
	result.WriteString(fmt.Sprintf("\n📊 Итого: %d дн., рабочих %d", total.AbsenceDays, total.WorkingDays))
	return result.String()
}

func formatSickness(period *models.DateRange, ratings []metrics.SicknessRating) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🏥 Дни болезни по сотрудникам (%s):\n\n", periodTitle(period)))

	if len(ratings) == 0 {
		result.WriteString("📭 Больничных за период нет")
		return result.String()
	}

	for _, r := range ratings {
		name := r.EmployeeID
		if r.EmployeeName != "" {
			name = fmt.Sprintf("%s (%s)", r.EmployeeName, r.EmployeeID)
		}
		result.WriteString(fmt.Sprintf("%s %s, %s: %d дн.\n", tierLabels[r.Tier], name, r.DepartmentID, r.Days))
	}
	result.WriteString("\n🟢 до 10  🟡 до 20  🟠 до 30  🔴 больше 30")
	return result.String()
}

func formatDailyStats(stats []metrics.MonthDailyStats) string {
	if len(stats) == 0 {
		return "📭 Статистика пока отсутствует"
	}

	var result strings.Builder
	result.WriteString("📈 Отсутствующих в день по месяцам:\n\n")
	for _, s := range stats {
		result.WriteString(fmt.Sprintf("📅 %s\n", monthLabel(s.Month)))
		result.WriteString(fmt.Sprintf("   Среднее: %s ± %s\n", s.Mean.StringFixed(2), s.StdDev.StringFixed(2)))
		result.WriteString(fmt.Sprintf("   Мин/макс: %d / %d\n", s.Min, s.Max))
		result.WriteString(fmt.Sprintf("   Дней с отсутствием: %d из %d (%s%%)\n\n", s.DaysWithAbsence, s.TotalDays, s.Quota.StringFixed(1)))
	}
	return strings.TrimRight(result.String(), "\n")
}

func formatEmployee(summary *service.EmployeeSummary) string {
	var result strings.Builder

	name := summary.Employee.ID
	if summary.Employee.Name != "" {
		name = fmt.Sprintf("%s (%s)", summary.Employee.Name, summary.Employee.ID)
	}
	result.WriteString(fmt.Sprintf("👤 %s\n", name))
	if summary.Employee.DepartmentID != "" {
		result.WriteString(fmt.Sprintf("🏢 Подразделение: %s\n", summary.Employee.DepartmentID))
	}
	result.WriteString(fmt.Sprintf("\n📊 Всего: %d дн. (рабочих %d, записей %d)\n", summary.Total.AbsenceDays, summary.Total.WorkingDays, summary.Total.RecordCount))

	for _, r := range models.Reasons() {
		if days := summary.Total.ByReason[r]; days > 0 {
			result.WriteString(fmt.Sprintf("   %s: %d дн.\n", reasonLabel(r), days))
		}
	}

	if top := summary.ByMonth.SortByDays(); len(top) > 0 && top[0].AbsenceDays > 0 {
		result.WriteString(fmt.Sprintf("🔝 Больше всего: %s (%d дн.)\n", monthLabel(top[0].Key), top[0].AbsenceDays))
	}

	if len(summary.ByMonth.Groups) > 0 {
		result.WriteString("\n📅 По месяцам:\n")
		for _, g := range summary.ByMonth.Groups {
			result.WriteString(fmt.Sprintf("• %s: %d дн.\n", monthLabel(g.Key), g.AbsenceDays))
		}
	}

	if len(summary.Records) > 0 {
		result.WriteString("\n🗒 Записи:\n")
		for _, rec := range summary.Records {
			result.WriteString(fmt.Sprintf("• %s - %s, %s\n", rec.StartDate.Format("02.01.2006"), rec.EndDate.Format("02.01.2006"), reasonLabel(rec.Reason)))
		}
	}
	return strings.TrimRight(result.String(), "\n")
}

func formatEmployeeList(employees []models.EmployeeRef) string {
	if len(employees) == 0 {
		return "❌ Укажите ID сотрудника. Пример: /employee E1"
	}

	var result strings.Builder
	result.WriteString("👥 Укажите ID сотрудника. Известные сотрудники:\n\n")
	for _, e := range employees {
		if e.Name != "" {
			result.WriteString(fmt.Sprintf("• %s - %s, %s\n", e.ID, e.Name, e.DepartmentID))
		} else {
			result.WriteString(fmt.Sprintf("• %s, %s\n", e.ID, e.DepartmentID))
		}
	}
	result.WriteString("\nПример: /employee " + employees[0].ID)
	return result.String()
}

func formatAbsentOn(date time.Time, records []models.AbsenceRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("✅ %s все на месте", date.Format("02.01.2006"))
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("📋 Отсутствуют %s:\n\n", date.Format("02.01.2006")))
	for _, rec := range records {
		name := rec.EmployeeID
		if rec.EmployeeName != "" {
			name = fmt.Sprintf("%s (%s)", rec.EmployeeName, rec.EmployeeID)
		}
		result.WriteString(fmt.Sprintf("• %s, %s: %s до %s\n", rec.DepartmentID, name, reasonLabel(rec.Reason), rec.EndDate.Format("02.01.2006")))
	}
	return strings.TrimRight(result.String(), "\n")
}

func formatQuality(report *service.QualityReport) string {
	var result strings.Builder
	result.WriteString("🧹 Качество данных\n\n")

	if report.LastBatch == nil {
		result.WriteString("📭 Выгрузки еще не загружались")
		return result.String()
	}

	b := report.LastBatch
	result.WriteString(fmt.Sprintf("📥 Последняя выгрузка #%d: %s\n", b.Sequence, b.Source))
	result.WriteString(fmt.Sprintf("   Строк: %d, принято %d, отклонено %d\n", b.RowsSeen, b.RowsAccepted, b.RowsRejected))
	if b.Stopped {
		result.WriteString("   ⚠️ Прием прерван\n")
	}
	if b.Partial {
		result.WriteString("   ⚠️ Источник прочитан не полностью\n")
	}
	result.WriteString(fmt.Sprintf("   Очистка: чистых %d, отклонено %d, пересечений %d, исправлений %d\n",
		b.CleanCount, b.RejectedCount, b.OverlapCount, b.RepairCount))

	for _, code := range models.RejectionCodes() {
		if n := report.Rejections[code]; n > 0 {
			result.WriteString(fmt.Sprintf("   • %s: %d\n", rejectionLabels[code], n))
		}
	}

	if s := report.Snapshot; s != nil {
		result.WriteString(fmt.Sprintf("\n📦 Текущий снимок: записей %d, чистых %d, отклонено %d, пересечений %d",
			s.Total, s.Clean, s.Rejected, len(s.Overlaps)))
		if len(s.Overlaps) > 0 {
			if label, ok := overlapPolicyLabels[report.OverlapPolicy]; ok {
				result.WriteString(fmt.Sprintf("\n   Пересечения: %s", label))
			}
		}
	}
	return strings.TrimRight(result.String(), "\n")
}

func formatDayInfo(info *service.DayInfo) string {
	var result strings.Builder

	date := info.Date.Format("02.01.2006")
	if info.Working {
		result.WriteString(fmt.Sprintf("✅ %s - рабочий день", date))
	} else {
		result.WriteString(fmt.Sprintf("🏖️ %s - выходной день", date))
	}

	if info.FromCalendar {
		result.WriteString("\n📅 По производственному календарю")
	} else {
		result.WriteString(fmt.Sprintf("\n📅 Календарь за %d не загружен, выходные: суббота и воскресенье", info.Date.Year()))
	}

	month := monthLabel(info.Month.Start.Format("2006-01"))
	result.WriteString(fmt.Sprintf("\n🗓 %s: рабочих дней %d", month, info.MonthWorkingDays))
	if len(info.MonthNonWorking) > 0 {
		days := make([]string, len(info.MonthNonWorking))
		for i, d := range info.MonthNonWorking {
			days[i] = fmt.Sprintf("%d", d.Day)
		}
		result.WriteString(fmt.Sprintf("\n🏖️ Нерабочие: %s", strings.Join(days, ", ")))
	}
	return result.String()
}

// formatAdded итог ручного ввода: запись принята или отклонена очисткой
func formatAdded(res *service.IngestResult) string {
	if len(res.Records) == 0 {
		detail := "строка не разобрана"
		if len(res.Ingestion.RowsRejected) > 0 {
			detail = res.Ingestion.RowsRejected[0].Error()
		}
		return "❌ Запись не принята: " + detail
	}

	rec := res.Records[0]
	period := fmt.Sprintf("%s - %s", rec.StartDate.Format("02.01.2006"), rec.EndDate.Format("02.01.2006"))
	if rec.IsRejected() {
		label, ok := rejectionLabels[rec.Rejection]
		if !ok {
			label = string(rec.Rejection)
		}
		return fmt.Sprintf("⚠️ Запись #%d сохранена, но отклонена очисткой: %s\n\n👤 %s, %s\n📅 %s",
			res.Batch.Sequence, label, rec.EmployeeID, rec.DepartmentID, period)
	}

	return fmt.Sprintf("✅ Отсутствие добавлено (выгрузка #%d)\n\n👤 %s, %s\n🗂 %s\n📅 %s\n📊 Дней: %d",
		res.Batch.Sequence, rec.EmployeeID, rec.DepartmentID, reasonLabel(rec.Reason), period, rec.Days())
}
