package weekends

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WeekendJSON - структура производственного календаря (формат xmlcalendar)
type WeekendJSON struct {
	Year        int             `json:"year"`
	Months      []MonthWeekends `json:"months"`
	Transitions []Transition    `json:"transitions"`
	Statistic   Statistic       `json:"statistic"`
}

type MonthWeekends struct {
	Month int    `json:"month"`
	Days  string `json:"days"`
}

type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Statistic struct {
	Workdays int     `json:"workdays"`
	Holidays int     `json:"holidays"`
	Hours40  float64 `json:"hours40"`
	Hours36  float64 `json:"hours36"`
	Hours24  float64 `json:"hours24"`
}

// NonWorkingDay - нерабочий день календаря
type NonWorkingDay struct {
	Date  time.Time `json:"date"`
	Year  int       `json:"year"`
	Month int       `json:"month"`
	Day   int       `json:"day"`
	// Transferred - выходной перенесен с другого дня (отметка "+")
	Transferred bool `json:"transferred"`
}

// Calendar - разобранный календарь одного года
type Calendar struct {
	Year           int
	NonWorkingDays []NonWorkingDay
	Statistic      Statistic
}

// ParseWeekendsJSON - читает файл календаря
func ParseWeekendsJSON(filePath string) (*Calendar, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	return Parse(data)
}

// Parse - разбирает календарь. Дни с "*" сокращенные, но рабочие, и пропускаются.
func Parse(data []byte) (*Calendar, error) {
	var weekendJSON WeekendJSON
	if err := json.Unmarshal(data, &weekendJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if weekendJSON.Year == 0 {
		return nil, fmt.Errorf("calendar year is missing")
	}

	cal := &Calendar{
		Year:           weekendJSON.Year,
		NonWorkingDays: []NonWorkingDay{},
		Statistic:      weekendJSON.Statistic,
	}

	for _, monthData := range weekendJSON.Months {
		if monthData.Month < 1 || monthData.Month > 12 {
			return nil, fmt.Errorf("invalid month %d", monthData.Month)
		}

		for _, dayStr := range strings.Split(monthData.Days, ",") {
			dayStr = strings.TrimSpace(dayStr)
			if dayStr == "" || strings.HasSuffix(dayStr, "*") {
				continue
			}

			transferred := strings.HasSuffix(dayStr, "+")
			dayStr = strings.TrimSuffix(dayStr, "+")

			day, err := strconv.Atoi(dayStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse day '%s' in month %d: %w",
					dayStr, monthData.Month, err)
			}

			date := time.Date(weekendJSON.Year, time.Month(monthData.Month), day, 0, 0, 0, 0, time.UTC)
			if date.Day() != day {
				return nil, fmt.Errorf("day %d does not exist in month %d", day, monthData.Month)
			}

			cal.NonWorkingDays = append(cal.NonWorkingDays, NonWorkingDay{
				Date:        date,
				Year:        weekendJSON.Year,
				Month:       monthData.Month,
				Day:         day,
				Transferred: transferred,
			})
		}
	}

	return cal, nil
}

// Summary - краткая сводка по году
func (c *Calendar) Summary() string {
	return fmt.Sprintf("Год: %d, выходных дней: %d, рабочих дней: %d",
		c.Year, len(c.NonWorkingDays), c.Statistic.Workdays)
}
