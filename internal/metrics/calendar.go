// internal/metrics/calendar.go
package metrics

import (
	"time"

	"absence-analytics/internal/models"
)

// Calendar отвечает, рабочий ли день
type Calendar interface {
	IsWorkingDay(date time.Time) bool
}

// WeekendCalendar суббота и воскресенье нерабочие
type WeekendCalendar struct{}

func (WeekendCalendar) IsWorkingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// ProductionCalendar производственный календарь: для покрытых лет
// нерабочими считаются только дни из списка, остальные года - по выходным.
type ProductionCalendar struct {
	nonWorking map[time.Time]struct{}
	years      map[int]struct{}
	fallback   WeekendCalendar
}

func NewProductionCalendar(days []models.NonWorkingDay) *ProductionCalendar {
	c := &ProductionCalendar{
		nonWorking: make(map[time.Time]struct{}, len(days)),
		years:      make(map[int]struct{}),
	}
	for _, d := range days {
		date := models.TruncateDate(d.Date)
		c.nonWorking[date] = struct{}{}
		c.years[date.Year()] = struct{}{}
	}
	return c
}

func (c *ProductionCalendar) IsWorkingDay(date time.Time) bool {
	date = models.TruncateDate(date)
	if _, covered := c.years[date.Year()]; !covered {
		return c.fallback.IsWorkingDay(date)
	}
	_, off := c.nonWorking[date]
	return !off
}

// Covers есть ли в календаре данные за год
func (c *ProductionCalendar) Covers(year int) bool {
	_, ok := c.years[year]
	return ok
}

// WorkingDays число рабочих дней в [start, end]
func WorkingDays(cal Calendar, start, end time.Time) int {
	n := 0
	for day := models.TruncateDate(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		if cal.IsWorkingDay(day) {
			n++
		}
	}
	return n
}
