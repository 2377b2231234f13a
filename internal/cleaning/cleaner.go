// internal/cleaning/cleaner.go
package cleaning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"absence-analytics/internal/models"

	"github.com/sirupsen/logrus"
)

const DefaultMaxDurationDays = 366

// Rules правила очистки
type Rules struct {
	// MaxDurationDays максимальная правдоподобная длительность отсутствия
	MaxDurationDays int
	Reasons         *models.ReasonTable
}

func DefaultRules() Rules {
	return Rules{
		MaxDurationDays: DefaultMaxDurationDays,
		Reasons:         models.NewReasonTable(nil),
	}
}

func (r Rules) Validate() error {
	if r.MaxDurationDays <= 0 {
		return &models.ConfigurationError{Field: "max_duration_days", Reason: fmt.Sprintf("must be positive, got %d", r.MaxDurationDays)}
	}
	if r.Reasons == nil {
		return &models.ConfigurationError{Field: "reasons", Reason: "reason table is required"}
	}
	return nil
}

// Fingerprint стабильное представление правил
func (r Rules) Fingerprint() string {
	return fmt.Sprintf("max=%d;%s", r.MaxDurationDays, r.Reasons.Fingerprint())
}

// OverlapWarning пересечение двух чистых записей одного сотрудника
type OverlapWarning struct {
	EmployeeID string    `json:"employee_id"`
	FirstID    string    `json:"first_id"`
	SecondID   string    `json:"second_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

// Days длина пересечения
func (w OverlapWarning) Days() int {
	return models.SpanDays(w.From, w.To)
}

// Report отчет очистки
type Report struct {
	Total    int                          `json:"total"`
	Clean    int                          `json:"clean"`
	Rejected int                          `json:"rejected"`
	ByCode   map[models.RejectionCode]int `json:"by_code"`
	Repairs  int                          `json:"repairs"`
	Overlaps []OverlapWarning             `json:"overlaps"`
}

// IsOverlapping помечена ли запись как пересекающаяся
func (r Report) IsOverlapping(recordID string) bool {
	for _, w := range r.Overlaps {
		if w.FirstID == recordID || w.SecondID == recordID {
			return true
		}
	}
	return false
}

// Result все записи партии (чистые и отклоненные) и отчет
type Result struct {
	Records []models.AbsenceRecord
	Report  Report
}

// Clean только чистые записи в исходном порядке
func (r Result) Clean() []models.AbsenceRecord {
	return r.withStatus(models.StatusClean)
}

// Rejected только отклоненные записи в исходном порядке
func (r Result) Rejected() []models.AbsenceRecord {
	return r.withStatus(models.StatusRejected)
}

func (r Result) withStatus(status models.Status) []models.AbsenceRecord {
	out := make([]models.AbsenceRecord, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

type Cleaner struct {
	rules  Rules
	logger *logrus.Logger
}

func NewCleaner(rules Rules, logger *logrus.Logger) (*Cleaner, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return &Cleaner{rules: rules, logger: logger}, nil
}

func (c *Cleaner) Rules() Rules {
	return c.rules
}

// Clean классифицирует записи. Входной срез не меняется: каждая запись
// классифицируется заново по своим полям, поэтому повторный прогон
// с теми же правилами дает ту же классификацию.
func (c *Cleaner) Clean(records []models.AbsenceRecord) Result {
	out := make([]models.AbsenceRecord, len(records))
	report := Report{
		Total:    len(records),
		ByCode:   make(map[models.RejectionCode]int),
		Overlaps: []OverlapWarning{},
	}

	// 1-2. Проверка полей и диапазонов
	for i, rec := range records {
		checked, repaired := c.validate(rec)
		if repaired {
			report.Repairs++
		}
		out[i] = checked
	}

	// Исправления вытесняют исправляемую запись
	c.applyCorrections(out)

	// 3. Дубликаты
	c.resolveDuplicates(out)

	// 4. Пересечения: обе записи остаются чистыми
	report.Overlaps = findOverlaps(out)

	for _, rec := range out {
		switch rec.Status {
		case models.StatusClean:
			report.Clean++
		case models.StatusRejected:
			report.Rejected++
			report.ByCode[rec.Rejection]++
		}
	}

	c.logger.WithFields(logrus.Fields{
		"total":    report.Total,
		"clean":    report.Clean,
		"rejected": report.Rejected,
		"repairs":  report.Repairs,
		"overlaps": len(report.Overlaps),
	}).Info("Cleaning finished")
	for _, w := range report.Overlaps {
		c.logger.WithFields(logrus.Fields{
			"employee_id": w.EmployeeID,
			"first":       w.FirstID,
			"second":      w.SecondID,
			"days":        w.Days(),
		}).Warn("Overlapping absences")
	}

	return Result{Records: out, Report: report}
}

// validate проверяет поля и диапазон; возвращает копию и признак ремонта
func (c *Cleaner) validate(rec models.AbsenceRecord) (models.AbsenceRecord, bool) {
	repaired := false

	employeeID := strings.TrimSpace(rec.EmployeeID)
	departmentID := strings.TrimSpace(rec.DepartmentID)
	if employeeID != rec.EmployeeID || departmentID != rec.DepartmentID {
		rec.EmployeeID = employeeID
		rec.DepartmentID = departmentID
		repaired = true
	}

	if rec.EmployeeID == "" || rec.DepartmentID == "" {
		return rec.Classified(models.StatusRejected, models.RejectInvalidField), repaired
	}
	if rec.StartDate.IsZero() || rec.EndDate.IsZero() {
		return rec.Classified(models.StatusRejected, models.RejectInvalidField), repaired
	}

	switch {
	case strings.TrimSpace(rec.RawReason) != "":
		reason, ok := c.rules.Reasons.Resolve(rec.RawReason)
		if !ok {
			return rec.Classified(models.StatusRejected, models.RejectInvalidField), repaired
		}
		rec.Reason = reason
	case rec.Reason == "":
		rec.Reason = models.ReasonUnknown
		repaired = true
	case !rec.Reason.Valid():
		return rec.Classified(models.StatusRejected, models.RejectInvalidField), repaired
	}

	if rec.StartDate.After(rec.EndDate) {
		return rec.Classified(models.StatusRejected, models.RejectInvertedRange), repaired
	}
	if rec.Days() > c.rules.MaxDurationDays {
		return rec.Classified(models.StatusRejected, models.RejectImplausibleDuration), repaired
	}

	return rec.Classified(models.StatusClean, ""), repaired
}

// applyCorrections отклоняет записи, на которые ссылается чистая исправляющая
// запись, вместе с их дубликатами из других выгрузок
func (c *Cleaner) applyCorrections(records []models.AbsenceRecord) {
	corrected := make(map[string]bool)
	for _, rec := range records {
		if rec.IsClean() && rec.Supersedes != "" && rec.Supersedes != rec.ID {
			corrected[rec.Supersedes] = true
		}
	}
	if len(corrected) == 0 {
		return
	}

	keys := make(map[models.DuplicateKey]bool)
	for _, rec := range records {
		if rec.IsClean() && corrected[rec.ID] {
			keys[rec.DuplicateKey()] = true
		}
	}

	for i, rec := range records {
		if !rec.IsClean() {
			continue
		}
		// исправление с теми же полями, что и исправляемая запись, остается
		byKey := rec.Supersedes == "" && keys[rec.DuplicateKey()]
		if corrected[rec.ID] || byKey {
			records[i] = rec.Classified(models.StatusRejected, models.RejectSupersededCorrection)
		}
	}
}

// resolveDuplicates оставляет запись с самым поздним источником,
// при равенстве или неизвестном порядке - первую встреченную
func (c *Cleaner) resolveDuplicates(records []models.AbsenceRecord) {
	groups := make(map[models.DuplicateKey][]int)
	var order []models.DuplicateKey
	for i, rec := range records {
		if !rec.IsClean() {
			continue
		}
		key := rec.DuplicateKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		idx := groups[key]
		if len(idx) < 2 {
			continue
		}
		winner := idx[0]
		for _, i := range idx[1:] {
			if records[i].Provenance.Sequence > records[winner].Provenance.Sequence {
				winner = i
			}
		}
		for _, i := range idx {
			if i != winner {
				records[i] = records[i].Classified(models.StatusRejected, models.RejectSupersededDuplicate)
			}
		}
	}
}

// findOverlaps ищет пересекающиеся чистые записи каждого сотрудника
func findOverlaps(records []models.AbsenceRecord) []OverlapWarning {
	byEmployee := make(map[string][]int)
	var employees []string
	for i, rec := range records {
		if !rec.IsClean() {
			continue
		}
		if _, ok := byEmployee[rec.EmployeeID]; !ok {
			employees = append(employees, rec.EmployeeID)
		}
		byEmployee[rec.EmployeeID] = append(byEmployee[rec.EmployeeID], i)
	}
	sort.Strings(employees)

	warnings := []OverlapWarning{}
	for _, emp := range employees {
		idx := byEmployee[emp]
		sort.SliceStable(idx, func(a, b int) bool {
			return records[idx[a]].StartDate.Before(records[idx[b]].StartDate)
		})
		for a := 0; a < len(idx); a++ {
			first := records[idx[a]]
			for b := a + 1; b < len(idx); b++ {
				second := records[idx[b]]
				if second.StartDate.After(first.EndDate) {
					break
				}
				// пара в исходном порядке записей
				i, j := idx[a], idx[b]
				if j < i {
					i, j = j, i
				}
				warnings = append(warnings, OverlapWarning{
					EmployeeID: emp,
					FirstID:    records[i].ID,
					SecondID:   records[j].ID,
					From:       laterOf(first.StartDate, second.StartDate),
					To:         earlierOf(first.EndDate, second.EndDate),
				})
			}
		}
	}
	return warnings
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
