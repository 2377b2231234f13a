package cleaning

import (
	"fmt"
	"testing"
	"time"

	"absence-analytics/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordSeq int

func raw(employee, start, end, reason string) models.AbsenceRecord {
	recordSeq++
	s, _ := models.ParseDate(start)
	e, _ := models.ParseDate(end)
	return models.AbsenceRecord{
		ID:           fmt.Sprintf("r-%d", recordSeq),
		EmployeeID:   employee,
		DepartmentID: "D1",
		RawReason:    reason,
		StartDate:    s,
		EndDate:      e,
		Provenance:   models.Provenance{BatchID: "b1", Source: "file.csv"},
		Status:       models.StatusRaw,
	}
}

func newTestCleaner(t *testing.T) (*Cleaner, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	c, err := NewCleaner(DefaultRules(), logger)
	require.NoError(t, err)
	return c, hook
}

func TestFieldValidation(t *testing.T) {
	c, _ := newTestCleaner(t)

	emptyEmployee := raw("", "2024-01-01", "2024-01-02", "sick")
	badReason := raw("E1", "2024-01-01", "2024-01-02", "Karneval")
	noDates := raw("E2", "", "", "sick")
	emptyReason := raw("E3", "2024-01-01", "2024-01-01", "")
	padded := raw("  E4 ", "2024-01-01", "2024-01-01", "Krank")

	result := c.Clean([]models.AbsenceRecord{emptyEmployee, badReason, noDates, emptyReason, padded})

	require.Len(t, result.Records, 5)
	assert.Equal(t, models.RejectInvalidField, result.Records[0].Rejection)
	assert.Equal(t, models.RejectInvalidField, result.Records[1].Rejection)
	assert.Equal(t, models.RejectInvalidField, result.Records[2].Rejection)

	assert.Equal(t, models.StatusClean, result.Records[3].Status)
	assert.Equal(t, models.ReasonUnknown, result.Records[3].Reason)

	assert.Equal(t, models.StatusClean, result.Records[4].Status)
	assert.Equal(t, "E4", result.Records[4].EmployeeID)
	assert.Equal(t, models.ReasonSickness, result.Records[4].Reason)

	assert.Equal(t, 3, result.Report.ByCode[models.RejectInvalidField])
	assert.Equal(t, 2, result.Report.Repairs)
	assert.Equal(t, 2, result.Report.Clean)
	assert.Equal(t, 3, result.Report.Rejected)
}

func TestRangeChecks(t *testing.T) {
	rules := DefaultRules()
	rules.MaxDurationDays = 30
	c, err := NewCleaner(rules, logrus.New())
	require.NoError(t, err)

	inverted := raw("E1", "2024-01-10", "2024-01-01", "sick")
	tooLong := raw("E2", "2024-01-01", "2025-01-01", "vacation")
	exactlyMax := raw("E3", "2024-01-01", "2024-01-30", "vacation")

	result := c.Clean([]models.AbsenceRecord{inverted, tooLong, exactlyMax})

	assert.Equal(t, models.RejectInvertedRange, result.Records[0].Rejection)
	assert.Equal(t, models.RejectImplausibleDuration, result.Records[1].Rejection)
	assert.True(t, result.Records[2].IsClean())
	assert.Equal(t, 1, result.Report.ByCode[models.RejectInvertedRange])
	assert.Equal(t, 1, result.Report.ByCode[models.RejectImplausibleDuration])
}

func TestInputIsNotMutated(t *testing.T) {
	c, _ := newTestCleaner(t)
	in := []models.AbsenceRecord{raw("E1", "2024-01-10", "2024-01-01", "sick")}

	result := c.Clean(in)

	assert.Equal(t, models.StatusRaw, in[0].Status)
	assert.Equal(t, models.StatusRejected, result.Records[0].Status)
}

func TestDuplicateResolution(t *testing.T) {
	c, _ := newTestCleaner(t)

	t.Run("latest provenance wins", func(t *testing.T) {
		older := raw("E1", "2024-03-01", "2024-03-05", "sick")
		older.Provenance = models.Provenance{BatchID: "b1", Source: "jan.csv", Sequence: 1}
		newer := raw("E1", "2024-03-01", "2024-03-05", "Krankheit")
		newer.Provenance = models.Provenance{BatchID: "b2", Source: "feb.csv", Sequence: 2}

		result := c.Clean([]models.AbsenceRecord{newer, older})

		assert.True(t, result.Records[0].IsClean())
		assert.Equal(t, models.RejectSupersededDuplicate, result.Records[1].Rejection)
	})

	t.Run("unknown order keeps first", func(t *testing.T) {
		a := raw("E2", "2024-03-01", "2024-03-05", "vacation")
		b := raw("E2", "2024-03-01", "2024-03-05", "Urlaub")
		b.Provenance.Source = "other.csv"

		result := c.Clean([]models.AbsenceRecord{a, b})

		assert.True(t, result.Records[0].IsClean())
		assert.Equal(t, models.RejectSupersededDuplicate, result.Records[1].Rejection)
		assert.Equal(t, 1, result.Report.ByCode[models.RejectSupersededDuplicate])
	})

	t.Run("different reason is not a duplicate", func(t *testing.T) {
		a := raw("E3", "2024-03-01", "2024-03-05", "vacation")
		b := raw("E3", "2024-03-01", "2024-03-05", "sick")

		result := c.Clean([]models.AbsenceRecord{a, b})

		assert.Equal(t, 2, result.Report.Clean)
		require.Len(t, result.Report.Overlaps, 1)
	})
}

func TestDuplicateResolutionIsDeterministic(t *testing.T) {
	c, _ := newTestCleaner(t)
	batch := []models.AbsenceRecord{
		raw("E1", "2024-03-01", "2024-03-05", "sick"),
		raw("E1", "2024-03-01", "2024-03-05", "sick"),
		raw("E1", "2024-03-01", "2024-03-05", "sick"),
		raw("E2", "2024-03-01", "2024-03-01", "other"),
	}

	first := c.Clean(batch)
	second := c.Clean(batch)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, 2, first.Report.ByCode[models.RejectSupersededDuplicate])
}

func TestOverlapsAreFlaggedNotMerged(t *testing.T) {
	c, hook := newTestCleaner(t)
	a := raw("E1", "2024-01-01", "2024-01-03", "sick")
	b := raw("E1", "2024-01-03", "2024-01-05", "sick")
	other := raw("E2", "2024-01-01", "2024-01-05", "sick")

	result := c.Clean([]models.AbsenceRecord{a, b, other})

	assert.Equal(t, 3, result.Report.Clean)
	require.Len(t, result.Report.Overlaps, 1)
	w := result.Report.Overlaps[0]
	assert.Equal(t, "E1", w.EmployeeID)
	assert.Equal(t, a.ID, w.FirstID)
	assert.Equal(t, b.ID, w.SecondID)
	assert.Equal(t, models.Date(2024, 1, 3), w.From)
	assert.Equal(t, 1, w.Days())
	assert.True(t, result.Report.IsOverlapping(a.ID))
	assert.False(t, result.Report.IsOverlapping(other.ID))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCorrectionSupersedesOriginal(t *testing.T) {
	c, _ := newTestCleaner(t)
	original := raw("E1", "2024-05-01", "2024-05-10", "vacation")
	correction := raw("E1", "2024-05-01", "2024-05-07", "vacation")
	correction.Supersedes = original.ID

	result := c.Clean([]models.AbsenceRecord{original, correction})

	assert.Equal(t, models.RejectSupersededCorrection, result.Records[0].Rejection)
	assert.True(t, result.Records[1].IsClean())
	assert.Empty(t, result.Report.Overlaps)
}

func TestCorrectionSupersedesReexportedDuplicates(t *testing.T) {
	c, _ := newTestCleaner(t)
	original := raw("E1", "2024-01-01", "2024-01-05", "sick")
	original.Provenance = models.Provenance{BatchID: "b1", Source: "jan.csv", Sequence: 1}
	reexport := raw("E1", "2024-01-01", "2024-01-05", "sick")
	reexport.Provenance = models.Provenance{BatchID: "b2", Source: "feb.csv", Sequence: 2}
	correction := raw("E1", "2024-01-01", "2024-01-02", "sick")
	correction.Provenance = models.Provenance{BatchID: "b3", Source: "fix.csv", Sequence: 3}
	correction.Supersedes = original.ID

	result := c.Clean([]models.AbsenceRecord{original, reexport, correction})

	assert.Equal(t, models.RejectSupersededCorrection, result.Records[0].Rejection)
	assert.Equal(t, models.RejectSupersededCorrection, result.Records[1].Rejection)
	assert.True(t, result.Records[2].IsClean())

	clean := result.Clean()
	require.Len(t, clean, 1)
	assert.Equal(t, 2, clean[0].Days())
	assert.Empty(t, result.Report.Overlaps)

	again := c.Clean(result.Records)
	for i := range result.Records {
		assert.Equal(t, result.Records[i].Rejection, again.Records[i].Rejection)
	}
}

func TestCorrectionWithSameFieldsSurvives(t *testing.T) {
	c, _ := newTestCleaner(t)
	original := raw("E2", "2024-02-01", "2024-02-03", "vacation")
	correction := raw("E2", "2024-02-01", "2024-02-03", "vacation")
	correction.Supersedes = original.ID

	result := c.Clean([]models.AbsenceRecord{original, correction})

	assert.Equal(t, models.RejectSupersededCorrection, result.Records[0].Rejection)
	assert.True(t, result.Records[1].IsClean())
}

func TestRecleaningIsIdempotent(t *testing.T) {
	c, _ := newTestCleaner(t)
	batch := []models.AbsenceRecord{
		raw("E1", "2024-01-01", "2024-01-03", "sick"),
		raw("E1", "2024-01-03", "2024-01-05", "Urlaub"),
		raw("E1", "2024-01-01", "2024-01-03", "Krank"),
		raw("E2", "2024-02-10", "2024-02-01", "sick"),
		raw(" E3", "2024-02-10", "2024-02-11", ""),
	}

	first := c.Clean(batch)
	second := c.Clean(first.Records)
	onlyClean := c.Clean(first.Clean())

	for i := range first.Records {
		assert.Equal(t, first.Records[i].Status, second.Records[i].Status)
		assert.Equal(t, first.Records[i].Rejection, second.Records[i].Rejection)
	}
	for _, rec := range onlyClean.Records {
		assert.True(t, rec.IsClean())
	}
	assert.Equal(t, len(first.Clean()), onlyClean.Report.Clean)
}

func TestScenarioInvertedRangeInReport(t *testing.T) {
	c, _ := newTestCleaner(t)
	bad := raw("E9", "2024-06-10", "2024-06-01", "vacation")

	result := c.Clean([]models.AbsenceRecord{bad})

	assert.Empty(t, result.Clean())
	require.Len(t, result.Rejected(), 1)
	assert.Equal(t, models.RejectInvertedRange, result.Rejected()[0].Rejection)
	assert.Equal(t, 1, result.Report.ByCode[models.RejectInvertedRange])
}

func TestRulesValidate(t *testing.T) {
	cases := []struct {
		name  string
		rules Rules
	}{
		{"zero duration", Rules{MaxDurationDays: 0, Reasons: models.NewReasonTable(nil)}},
		{"no reasons", Rules{MaxDurationDays: 10}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewCleaner(c.rules, nil)
			assert.ErrorIs(t, err, models.ErrConfiguration)
		})
	}
}

func TestOverlapWarningDays(t *testing.T) {
	w := OverlapWarning{From: models.Date(2024, 1, 3), To: models.Date(2024, 1, 5)}
	assert.Equal(t, 3, w.Days())
	assert.Equal(t, time.UTC, w.From.Location())
}
