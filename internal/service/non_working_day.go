package service

import (
	"time"

	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"
	"absence-analytics/internal/query"
	"absence-analytics/internal/repository"
	"absence-analytics/pkg/weekends"

	"github.com/sirupsen/logrus"
)

type NonWorkingDayService struct {
	repo   repository.NonWorkingDayRepository
	logger *logrus.Logger
}

func NewNonWorkingDayService(repo repository.NonWorkingDayRepository, logger *logrus.Logger) *NonWorkingDayService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NonWorkingDayService{repo: repo, logger: logger}
}

// LoadFromJSON загружает производственный календарь из JSON файла в базу данных
func (s *NonWorkingDayService) LoadFromJSON(filePath string) (int, error) {
	cal, err := weekends.ParseWeekendsJSON(filePath)
	if err != nil {
		return 0, err
	}

	days := make([]models.NonWorkingDay, 0, len(cal.NonWorkingDays))
	for _, wd := range cal.NonWorkingDays {
		days = append(days, models.NonWorkingDay{
			Date:        wd.Date,
			Year:        wd.Year,
			Month:       wd.Month,
			Day:         wd.Day,
			Transferred: wd.Transferred,
		})
	}

	if err := s.repo.ReplaceAll(days); err != nil {
		return 0, err
	}

	s.logger.WithField("file", filePath).Info(cal.Summary())
	return len(days), nil
}

// Calendar календарь для расчета рабочих дней.
// Пока календарь не загружен, нерабочими считаются суббота и воскресенье.
func (s *NonWorkingDayService) Calendar() (metrics.Calendar, error) {
	days, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return metrics.WeekendCalendar{}, nil
	}
	for i := range days {
		days[i].Date = models.Date(days[i].Year, time.Month(days[i].Month), days[i].Day)
	}
	return metrics.NewProductionCalendar(days), nil
}

// DayInfo ответ на вопрос, рабочий ли день
type DayInfo struct {
	Date    time.Time
	Working bool
	// FromCalendar ответ дал загруженный производственный календарь,
	// иначе нерабочими считаются суббота и воскресенье
	FromCalendar bool
	// Month месяц даты и число рабочих дней в нем
	Month            models.DateRange
	MonthWorkingDays int
	// MonthNonWorking нерабочие дни месяца из календаря (с FromCalendar)
	MonthNonWorking []models.NonWorkingDay
}

// CheckDay рабочий ли день и сколько рабочих дней в его месяце
func (s *NonWorkingDayService) CheckDay(date time.Time) (*DayInfo, error) {
	date = models.TruncateDate(date)

	cal, err := s.Calendar()
	if err != nil {
		return nil, err
	}
	month, err := query.CurrentPeriod(date, models.BucketMonth)
	if err != nil {
		return nil, err
	}

	info := &DayInfo{
		Date:             date,
		Working:          cal.IsWorkingDay(date),
		Month:            month,
		MonthWorkingDays: metrics.WorkingDays(cal, month.Start, month.End),
	}

	if pc, ok := cal.(*metrics.ProductionCalendar); ok && pc.Covers(date.Year()) {
		off, err := s.IsNonWorkingDay(date)
		if err != nil {
			return nil, err
		}
		info.Working = !off
		info.FromCalendar = true

		info.MonthNonWorking, err = s.GetNonWorkingDaysForMonth(date.Year(), int(date.Month()))
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

// IsNonWorkingDay есть ли дата в загруженном календаре
func (s *NonWorkingDayService) IsNonWorkingDay(date time.Time) (bool, error) {
	return s.repo.IsNonWorkingDay(date)
}

// GetNonWorkingDaysForMonth возвращает выходные дни для указанного месяца
func (s *NonWorkingDayService) GetNonWorkingDaysForMonth(year, month int) ([]models.NonWorkingDay, error) {
	return s.repo.GetByYearMonth(year, month)
}
