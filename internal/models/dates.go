package models

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006/01/02",
}

// Date возвращает календарную дату (полночь UTC)
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDate отбрасывает время и зону, оставляя календарную дату
func TruncateDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate разбирает дату в одном из поддерживаемых форматов
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", s)
}

// SpanDays количество календарных дней в [start, end] включительно
func SpanDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(TruncateDate(end).Sub(TruncateDate(start))/(24*time.Hour)) + 1
}

// DateRange закрытый интервал календарных дат
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps пересекается ли интервал с [start, end]
func (d DateRange) Overlaps(start, end time.Time) bool {
	return !start.After(d.End) && !end.Before(d.Start)
}

func (d DateRange) String() string {
	return d.Start.Format(DateLayout) + ".." + d.End.Format(DateLayout)
}
