package handler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"absence-analytics/internal/cache"
	"absence-analytics/internal/cleaning"
	"absence-analytics/internal/ingest"
	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"
	"absence-analytics/internal/repository"
	"absence-analytics/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) last(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

type fixture struct {
	handler   *Handler
	sender    *fakeSender
	analytics *service.AnalyticsService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithBucket(t, "")
}

func newFixtureWithBucket(t *testing.T, bucket models.Bucket) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	log, _ := test.NewNullLogger()

	recordRepo, err := repository.NewGormAbsenceRecordRepository(db)
	require.NoError(t, err)
	batchRepo, err := repository.NewGormBatchRepository(db)
	require.NoError(t, err)
	directoryRepo, err := repository.NewGormDirectoryRepository(db)
	require.NoError(t, err)
	dayRepo, err := repository.NewGormNonWorkingDayRepository(db)
	require.NoError(t, err)

	adapter, err := ingest.NewAdapter(ingest.DefaultColumnMapping(), ingest.WithLogger(log))
	require.NoError(t, err)
	cleaner, err := cleaning.NewCleaner(cleaning.DefaultRules(), log)
	require.NoError(t, err)
	engine, err := metrics.NewEngine(metrics.WithLogger(log))
	require.NoError(t, err)

	analytics := service.NewAnalyticsService(recordRepo, batchRepo, directoryRepo, service.Pipeline{
		Adapter: adapter,
		Cleaner: cleaner,
		Engine:  engine,
		Cache:   cache.NewResultCache(0, log),
		Bucket:  bucket,
	}, log)

	sender := &fakeSender{}
	h := newHandler(sender, analytics, service.NewNonWorkingDayService(dayRepo, log), log)
	h.now = func() time.Time { return time.Date(2024, time.January, 6, 12, 0, 0, 0, time.UTC) }

	return fixture{handler: h, sender: sender, analytics: analytics}
}

const exportCSV = "employee_id,employee_name,department_id,reason,start_date,end_date\n" +
	"E1,Anna,D1,sickness,2024-01-30,2024-02-02\n" +
	"E2,Ben,D2,vacation,2024-02-05,2024-02-09\n"

func (f fixture) ingest(t *testing.T) {
	t.Helper()
	_, err := f.analytics.IngestAndClean(context.Background(), ingest.NewCSVReader("export.csv", strings.NewReader(exportCSV), ','))
	require.NoError(t, err)
}

func command(text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		From:     &tgbotapi.User{UserName: "hr"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func (f fixture) run(t *testing.T, text string) string {
	t.Helper()
	f.handler.handleMessage(context.Background(), command(text))
	return f.sender.last(t)
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2024, time.January, 17, 9, 0, 0, 0, time.UTC)

	period, err := parsePeriod("", now, models.BucketMonth)
	require.NoError(t, err)
	assert.Nil(t, period)

	period, err = parsePeriod("01.01.2024 2024-01-31", now, models.BucketMonth)
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.Equal(t, models.Date(2024, time.January, 1), period.Start)
	assert.Equal(t, models.Date(2024, time.January, 31), period.End)

	_, err = parsePeriod("01.01.2024", now, models.BucketMonth)
	assert.Error(t, err)

	_, err = parsePeriod("01.01.2024 вчера", now, models.BucketMonth)
	assert.Error(t, err)
}

func TestParsePeriodMonths(t *testing.T) {
	now := time.Date(2024, time.January, 17, 9, 0, 0, 0, time.UTC)

	period, err := parsePeriod("11.2023 2024-02", now, models.BucketMonth)
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.Equal(t, models.Date(2023, time.November, 1), period.Start)
	assert.Equal(t, models.Date(2024, time.February, 29), period.End)

	// месяц и дата вперемешку не принимаются
	_, err = parsePeriod("11.2023 15.02.2024", now, models.BucketMonth)
	assert.Error(t, err)
}

func TestParsePeriodCurrent(t *testing.T) {
	now := time.Date(2024, time.January, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		bucket     models.Bucket
		start, end time.Time
	}{
		{models.BucketMonth, models.Date(2024, time.January, 1), models.Date(2024, time.January, 31)},
		{models.BucketWeek, models.Date(2024, time.January, 15), models.Date(2024, time.January, 21)},
		{models.BucketDay, models.Date(2024, time.January, 17), models.Date(2024, time.January, 17)},
	}
	for _, tt := range tests {
		period, err := parsePeriod("Текущий", now, tt.bucket)
		require.NoError(t, err, tt.bucket)
		require.NotNil(t, period, tt.bucket)
		assert.Equal(t, tt.start, period.Start, tt.bucket)
		assert.Equal(t, tt.end, period.End, tt.bucket)
	}

	_, err := parsePeriod("вчера", now, models.BucketMonth)
	assert.Error(t, err)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Март 2024", monthLabel("2024-03"))
	assert.Equal(t, "2024-W05", monthLabel("2024-W05"))
	assert.Equal(t, "Среда", weekdayLabel("Wednesday"))
	assert.Equal(t, "Болезнь", reasonLabel(models.ReasonSickness))
	assert.Equal(t, "за все время", periodTitle(nil))
}

func TestFormatAggregation(t *testing.T) {
	bundle := models.NewMetricBundle()
	bundle.AbsenceDays = 3
	bundle.WorkingDays = 2
	bundle.RecordCount = 1
	res := models.AggregationResult{Groups: []models.GroupMetrics{{Key: "2024-01", MetricBundle: bundle}}}

	text := formatAggregation("📅 Отсутствия", nil, res, monthLabel)
	assert.Contains(t, text, "• Январь 2024: 3 дн. (рабочих 2, записей 1)")
	assert.Contains(t, text, "Итого: 3 дн., рабочих 2")

	empty := formatAggregation("📅 Отсутствия", nil, models.AggregationResult{}, nil)
	assert.Contains(t, empty, "Отсутствий за период нет")
}

func TestFormatDailyStats(t *testing.T) {
	text := formatDailyStats([]metrics.MonthDailyStats{{
		Month:           "2024-02",
		Mean:            decimal.RequireFromString("1.5"),
		StdDev:          decimal.RequireFromString("0.71"),
		Max:             2,
		Min:             1,
		DaysWithAbsence: 2,
		TotalDays:       2,
		Quota:           decimal.RequireFromString("100"),
	}})
	assert.Contains(t, text, "Февраль 2024")
	assert.Contains(t, text, "Среднее: 1.50 ± 0.71")
	assert.Contains(t, text, "2 из 2 (100.0%)")

	assert.Equal(t, "📭 Статистика пока отсутствует", formatDailyStats(nil))
}

func TestFormatQualityShowsOverlapPolicy(t *testing.T) {
	report := &service.QualityReport{
		LastBatch:  &models.Batch{Sequence: 2, Source: "feb.csv", CleanCount: 3},
		Rejections: map[models.RejectionCode]int{models.RejectSupersededDuplicate: 1},
		Snapshot: &cleaning.Report{
			Total: 4, Clean: 3, Rejected: 1,
			Overlaps: []cleaning.OverlapWarning{{EmployeeID: "E1", FirstID: "a", SecondID: "b"}},
		},
		OverlapPolicy: metrics.OverlapMerge,
	}

	text := formatQuality(report)
	assert.Contains(t, text, "Последняя выгрузка #2: feb.csv")
	assert.Contains(t, text, "• дубликаты: 1")
	assert.Contains(t, text, "пересечений 1")
	assert.Contains(t, text, "Пересечения: дни объединяются")

	report.Snapshot.Overlaps = nil
	assert.NotContains(t, formatQuality(report), "Пересечения:")
}

func TestReportsWithoutData(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.run(t, "/months"), "Данных пока нет")
	assert.Contains(t, f.run(t, "/quality"), "Выгрузки еще не загружались")
}

func TestMonthsReport(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	text := f.run(t, "/months")
	assert.Contains(t, text, "• Январь 2024: 2 дн.")
	assert.Contains(t, text, "• Февраль 2024: 7 дн.")
	assert.Contains(t, text, "Итого: 9 дн.")

	text = f.run(t, "/months 01.02.2024 29.02.2024")
	assert.Contains(t, text, "с 01.02.2024 по 29.02.2024")
	assert.Contains(t, text, "Февраль 2024: 7 дн.")
}

func TestMonthsReportUsesConfiguredBucket(t *testing.T) {
	f := newFixtureWithBucket(t, models.BucketWeek)
	f.ingest(t)

	text := f.run(t, "/months")
	assert.Contains(t, text, "Отсутствия по неделям")
	assert.Contains(t, text, "• 2024-W05: 4 дн.")
	assert.Contains(t, text, "• 2024-W06: 5 дн.")
	assert.NotContains(t, text, "Январь 2024")
}

func TestReportsForCurrentAndMonthPeriods(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	// now в фикстуре 6 января 2024
	text := f.run(t, "/months текущий")
	assert.Contains(t, text, "с 01.01.2024 по 31.01.2024")
	assert.Contains(t, text, "• Январь 2024: 2 дн.")
	assert.NotContains(t, text, "Февраль 2024: 7 дн.")

	text = f.run(t, "/departments 01.2024 01.2024")
	assert.Contains(t, text, "с 01.01.2024 по 31.01.2024")
	assert.Contains(t, text, "• D1: 4 дн.")
	assert.Contains(t, text, "• D2: 0 дн.")
}

func TestDepartmentsAndReasons(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	text := f.run(t, "/departments")
	assert.Contains(t, text, "• D1: 4 дн.")
	assert.Contains(t, text, "• D2: 5 дн.")

	text = f.run(t, "/reasons")
	assert.Contains(t, text, "• Болезнь: 4 дн.")
	assert.Contains(t, text, "• Отпуск: 5 дн.")
	assert.Contains(t, text, "• Не указано: 0 дн.")
}

func TestInvalidPeriod(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	assert.Contains(t, f.run(t, "/weekdays 01.01.2024"), "Неверный формат периода")
	assert.Contains(t, f.run(t, "/weekdays 31.01.2024 01.01.2024"), "Неверный запрос")
}

func TestSicknessReport(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	text := f.run(t, "/sick")
	assert.Contains(t, text, "🟢 Anna (E1), D1: 4 дн.")
	assert.NotContains(t, text, "Ben")
}

func TestEmployeeReport(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	text := f.run(t, "/employee E1")
	assert.Contains(t, text, "Anna (E1)")
	assert.Contains(t, text, "Всего: 4 дн.")
	assert.Contains(t, text, "• Январь 2024: 2 дн.")
	assert.Contains(t, text, "🔝 Больше всего: Январь 2024 (2 дн.)")
	assert.Contains(t, text, "• 30.01.2024 - 02.02.2024, Болезнь")

	assert.Contains(t, f.run(t, "/employee E9"), "Сотрудник E9 не найден")

	text = f.run(t, "/employee")
	assert.Contains(t, text, "Укажите ID сотрудника")
	assert.Contains(t, text, "• E1 - Anna, D1")
	assert.Contains(t, text, "• E2 - Ben, D2")
}

func TestEmployeeListWithoutData(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "❌ Укажите ID сотрудника. Пример: /employee E1", f.run(t, "/employee"))
}

func TestAbsentOn(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	text := f.run(t, "/absent 01.02.2024")
	assert.Contains(t, text, "Отсутствуют 01.02.2024")
	assert.Contains(t, text, "• D1, Anna (E1): Болезнь до 02.02.2024")
	assert.NotContains(t, text, "Ben")

	assert.Contains(t, f.run(t, "/absent"), "06.01.2024 все на месте")
	assert.Contains(t, f.run(t, "/absent вчера"), "Неверный формат даты")
}

func TestDailyStatsAndQuality(t *testing.T) {
	f := newFixture(t)
	f.ingest(t)

	assert.Contains(t, f.run(t, "/stats"), "Январь 2024")

	text := f.run(t, "/quality")
	assert.Contains(t, text, "Последняя выгрузка #1: export.csv")
	assert.Contains(t, text, "чистых 2")
}

func TestCheckDay(t *testing.T) {
	f := newFixture(t)

	// 6 января 2024 суббота
	text := f.run(t, "/checkday")
	assert.Contains(t, text, "06.01.2024 - выходной день")
	assert.Contains(t, text, "Календарь за 2024 не загружен")
	assert.Contains(t, text, "Январь 2024: рабочих дней 23")

	assert.Contains(t, f.run(t, "/checkday 08.01.2024"), "08.01.2024 - рабочий день")
	assert.Contains(t, f.run(t, "/checkday завтра"), "Неверный формат даты")
}

func TestCheckDayWithCalendar(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(t.TempDir(), "2024.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"year": 2024, "months": [{"month": 1, "days": "1,2,3,4,5,6,7,8,13,14"}]}`), 0o600))
	_, err := f.handler.nonWorkingDayService.LoadFromJSON(path)
	require.NoError(t, err)

	text := f.run(t, "/checkday 08.01.2024")
	assert.Contains(t, text, "08.01.2024 - выходной день")
	assert.Contains(t, text, "По производственному календарю")
	assert.Contains(t, text, "рабочих дней 21")
	assert.Contains(t, text, "Нерабочие: 1, 2, 3, 4, 5, 6, 7, 8, 13, 14")

	assert.Contains(t, f.run(t, "/checkday 09.01.2024"), "09.01.2024 - рабочий день")
}

func TestAddAbsence(t *testing.T) {
	f := newFixture(t)

	text := f.run(t, "/add E5 D3 sick 15.01.2024 16.01.2024")
	assert.Contains(t, text, "Отсутствие добавлено (выгрузка #1)")
	assert.Contains(t, text, "👤 E5, D3")
	assert.Contains(t, text, "🗂 Болезнь")
	assert.Contains(t, text, "📊 Дней: 2")

	assert.Contains(t, f.run(t, "/absent 16.01.2024"), "• D3, E5: Болезнь до 16.01.2024")

	quality := f.run(t, "/quality")
	assert.Contains(t, quality, "Последняя выгрузка #1: manual:hr")

	// один день без даты окончания
	assert.Contains(t, f.run(t, "/add E6 D3 vacation 20.01.2024"), "📊 Дней: 1")
}

func TestAddAbsenceRejectedByCleaning(t *testing.T) {
	f := newFixture(t)

	text := f.run(t, "/add E5 D3 spa 15.01.2024")
	assert.Contains(t, text, "отклонена очисткой: некорректные поля")

	text = f.run(t, "/add E5 D3 sick 20.01.2024 15.01.2024")
	assert.Contains(t, text, "отклонена очисткой: начало позже окончания")

	assert.Contains(t, f.run(t, "/absent 15.01.2024"), "все на месте")
}

func TestAddAbsenceUsage(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, addUsage, f.run(t, "/add"))
	assert.Contains(t, f.run(t, "/add E5 D3 sick"), "Неверный формат")
	assert.Contains(t, f.run(t, "/add E5 D3 sick завтра"), "Ошибка в дате начала")
	assert.Contains(t, f.run(t, "/add E5 D3 sick 15.01.2024 потом"), "Ошибка в дате окончания")
}

func TestUnknownInput(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.run(t, "/dance"), "Неизвестная команда")

	f.handler.handleMessage(context.Background(), &tgbotapi.Message{Text: "привет", Chat: &tgbotapi.Chat{ID: 42}})
	assert.Contains(t, f.sender.last(t), "только команды")
}

func TestHandleUpdatesStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t)

	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{Message: command("/help")}
	updates <- tgbotapi.Update{}
	close(updates)

	done := make(chan struct{})
	go func() {
		f.handler.HandleUpdates(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleUpdates did not return")
	}
	assert.Equal(t, helpText, f.sender.last(t))
}
