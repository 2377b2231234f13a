package metrics

import (
	"encoding/json"
	"testing"

	"absence-analytics/internal/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, employee, department string, reason models.Reason, start, end string) models.AbsenceRecord {
	s, _ := models.ParseDate(start)
	e, _ := models.ParseDate(end)
	return models.AbsenceRecord{
		ID:           id,
		EmployeeID:   employee,
		DepartmentID: department,
		Reason:       reason,
		StartDate:    s,
		EndDate:      e,
		Status:       models.StatusClean,
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e, err := NewEngine(append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return e
}

func byEmployee() models.Grouping {
	return models.Grouping{Dimension: models.DimensionEmployee}
}

func byMonth() models.Grouping {
	return models.Grouping{Dimension: models.DimensionPeriod, Bucket: models.BucketMonth}
}

func TestMonthApportionment(t *testing.T) {
	e := newTestEngine(t)

	t.Run("leap year", func(t *testing.T) {
		r := rec("1", "E1", "D1", models.ReasonSickness, "2024-02-28", "2024-03-02")
		res, err := e.Aggregate([]models.AbsenceRecord{r}, byMonth())
		require.NoError(t, err)

		assert.Equal(t, []string{"2024-02", "2024-03"}, res.Keys())
		feb, _ := res.Get("2024-02")
		mar, _ := res.Get("2024-03")
		assert.Equal(t, 2, feb.AbsenceDays)
		assert.Equal(t, 2, mar.AbsenceDays)
		assert.Equal(t, 4, res.Total().AbsenceDays)
		assert.Equal(t, 1, feb.RecordCount)
		assert.Equal(t, 1, mar.RecordCount)
		assert.Equal(t, 2, feb.ByReason[models.ReasonSickness])
	})

	t.Run("non leap year", func(t *testing.T) {
		r := rec("1", "E1", "D1", models.ReasonSickness, "2023-02-28", "2023-03-02")
		res, err := e.Aggregate([]models.AbsenceRecord{r}, byMonth())
		require.NoError(t, err)

		feb, _ := res.Get("2023-02")
		mar, _ := res.Get("2023-03")
		assert.Equal(t, 1, feb.AbsenceDays)
		assert.Equal(t, 2, mar.AbsenceDays)
		assert.Equal(t, r.Days(), res.Total().AbsenceDays)
	})
}

func TestApportionConservesDays(t *testing.T) {
	records := []models.AbsenceRecord{
		rec("1", "E1", "D1", models.ReasonVacation, "2023-12-25", "2024-01-14"),
		rec("2", "E1", "D1", models.ReasonSickness, "2024-02-29", "2024-02-29"),
		rec("3", "E2", "D2", models.ReasonUnpaid, "2024-01-01", "2024-12-31"),
		rec("4", "E3", "D2", models.ReasonOther, "2024-03-30", "2024-04-02"),
	}
	for _, r := range records {
		for _, bucket := range []models.Bucket{models.BucketDay, models.BucketWeek, models.BucketMonth} {
			parts, err := Apportion(r, bucket)
			require.NoError(t, err)
			sum := 0
			for _, d := range parts {
				sum += d
			}
			assert.Equal(t, r.Days(), sum, "record %s bucket %s", r.ID, bucket)
		}
	}

	_, err := Apportion(records[0], "quarter")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestBucketKeys(t *testing.T) {
	day := models.Date(2024, 12, 30)
	assert.Equal(t, "2024-12-30", BucketKey(day, models.BucketDay))
	// 30 декабря 2024 относится к первой ISO-неделе 2025
	assert.Equal(t, "2025-W01", BucketKey(day, models.BucketWeek))
	assert.Equal(t, "2024-12", BucketKey(day, models.BucketMonth))
}

func TestOverlappingRecordsCountBoth(t *testing.T) {
	e := newTestEngine(t)
	records := []models.AbsenceRecord{
		rec("a", "E1", "D1", models.ReasonSickness, "2024-01-01", "2024-01-03"),
		rec("b", "E1", "D1", models.ReasonSickness, "2024-01-03", "2024-01-05"),
	}

	res, err := e.Aggregate(records, byEmployee())
	require.NoError(t, err)

	e1, ok := res.Get("E1")
	require.True(t, ok)
	assert.Equal(t, 6, e1.AbsenceDays)
	assert.Equal(t, 2, e1.RecordCount)
}

func TestOverlappingRecordsMerged(t *testing.T) {
	e := newTestEngine(t, WithOverlapPolicy(OverlapMerge))
	records := []models.AbsenceRecord{
		rec("a", "E1", "D1", models.ReasonSickness, "2024-01-01", "2024-01-03"),
		rec("b", "E1", "D1", models.ReasonVacation, "2024-01-03", "2024-01-05"),
		rec("c", "E2", "D1", models.ReasonVacation, "2024-01-03", "2024-01-05"),
	}

	res, err := e.Aggregate(records, byEmployee())
	require.NoError(t, err)

	e1, _ := res.Get("E1")
	assert.Equal(t, 5, e1.AbsenceDays)
	assert.Equal(t, 3, e1.ByReason[models.ReasonSickness])
	assert.Equal(t, 2, e1.ByReason[models.ReasonVacation])
	assert.Equal(t, 2, e1.RecordCount)

	e2, _ := res.Get("E2")
	assert.Equal(t, 3, e2.AbsenceDays)
}

func TestUnknownOverlapPolicy(t *testing.T) {
	_, err := NewEngine(WithOverlapPolicy("sum"))
	assert.ErrorIs(t, err, models.ErrConfiguration)

	p, err := ParseOverlapPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OverlapCountBoth, p)
}

func TestEmptyGroupsOmittedUnlessUniverseRequested(t *testing.T) {
	e := newTestEngine(t)
	records := []models.AbsenceRecord{
		rec("1", "E1", "D2", models.ReasonSickness, "2024-01-01", "2024-01-02"),
	}

	res, err := e.Aggregate(records, models.Grouping{Dimension: models.DimensionDepartment})
	require.NoError(t, err)
	assert.Equal(t, []string{"D2"}, res.Keys())

	res, err = e.Aggregate(records, models.Grouping{
		Dimension: models.DimensionDepartment,
		Universe:  []string{"D3", "D1", "D2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D2", "D3"}, res.Keys())

	d1, ok := res.Get("D1")
	require.True(t, ok)
	assert.Equal(t, 0, d1.AbsenceDays)
	assert.Equal(t, 0, d1.RecordCount)
	assert.Len(t, d1.ByReason, len(models.Reasons()))
}

func TestRejectedRecordsAreIgnored(t *testing.T) {
	e := newTestEngine(t)
	bad := rec("x", "E1", "D1", models.ReasonVacation, "2024-06-10", "2024-06-01").
		Classified(models.StatusRejected, models.RejectInvertedRange)
	good := rec("y", "E2", "D1", models.ReasonVacation, "2024-06-01", "2024-06-01")

	res, err := e.Aggregate([]models.AbsenceRecord{bad, good}, byEmployee())
	require.NoError(t, err)

	_, found := res.Get("E1")
	assert.False(t, found)
	assert.Equal(t, 1, res.Total().AbsenceDays)
}

func TestWeekdayAndReasonOrdering(t *testing.T) {
	e := newTestEngine(t)
	records := []models.AbsenceRecord{
		// пятница..понедельник
		rec("1", "E1", "D1", models.ReasonVacation, "2024-01-05", "2024-01-08"),
		rec("2", "E2", "D1", models.ReasonSickness, "2024-01-10", "2024-01-10"),
	}

	weekdays, err := e.Aggregate(records, models.Grouping{Dimension: models.DimensionWeekday})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday", "Wednesday", "Friday", "Saturday", "Sunday"}, weekdays.Keys())
	sat, _ := weekdays.Get("Saturday")
	assert.Equal(t, 1, sat.AbsenceDays)
	assert.Equal(t, 0, sat.WorkingDays)

	reasons, err := e.Aggregate(records, models.Grouping{Dimension: models.DimensionReason})
	require.NoError(t, err)
	assert.Equal(t, []string{"sickness", "vacation"}, reasons.Keys())
	vac, _ := reasons.Get("vacation")
	assert.Equal(t, 4, vac.AbsenceDays)
	assert.Equal(t, 2, vac.WorkingDays)
}

func TestAggregateRejectsInvalidGrouping(t *testing.T) {
	e := newTestEngine(t)
	cases := []models.Grouping{
		{Dimension: "team"},
		{Dimension: models.DimensionPeriod, Bucket: "quarter"},
		{Dimension: models.DimensionPeriod},
	}
	for _, g := range cases {
		_, err := e.Aggregate(nil, g)
		assert.ErrorIs(t, err, models.ErrConfiguration)
	}
}

func TestAggregationIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	records := []models.AbsenceRecord{
		rec("1", "E3", "D2", models.ReasonOther, "2024-03-30", "2024-04-02"),
		rec("2", "E1", "D1", models.ReasonVacation, "2024-01-25", "2024-02-05"),
		rec("3", "E2", "D1", models.ReasonSickness, "2024-02-01", "2024-02-01"),
		rec("4", "E1", "D3", models.ReasonUnknown, "2024-04-01", "2024-04-03"),
	}
	groupings := []models.Grouping{
		byEmployee(),
		byMonth(),
		{Dimension: models.DimensionPeriod, Bucket: models.BucketWeek},
		{Dimension: models.DimensionDepartment, Universe: []string{"D1", "D2", "D3", "D4"}},
		{Dimension: models.DimensionWeekday},
	}

	for _, g := range groupings {
		first, err := e.Aggregate(records, g)
		require.NoError(t, err)
		second, err := e.Aggregate(records, g)
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
		assert.Equal(t, 20, first.Total().AbsenceDays)
	}
}
