package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"absence-analytics/internal/cache"
	"absence-analytics/internal/cleaning"
	"absence-analytics/internal/ingest"
	"absence-analytics/internal/metrics"
	"absence-analytics/internal/models"
	"absence-analytics/internal/query"
	"absence-analytics/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pipeline этапы обработки, которые сервис связывает вместе
type Pipeline struct {
	Adapter *ingest.Adapter
	Cleaner *cleaning.Cleaner
	Engine  *metrics.Engine
	Cache   *cache.ResultCache
	// Bucket корзина для отчетов по периодам
	Bucket models.Bucket
}

type AnalyticsService struct {
	recordRepo    repository.AbsenceRecordRepository
	batchRepo     repository.BatchRepository
	directoryRepo repository.DirectoryRepository
	pipeline      Pipeline
	logger        *logrus.Logger

	mu       sync.Mutex
	snapshot *query.Snapshot
	cleaning *cleaning.Report
}

func NewAnalyticsService(
	recordRepo repository.AbsenceRecordRepository,
	batchRepo repository.BatchRepository,
	directoryRepo repository.DirectoryRepository,
	pipeline Pipeline,
	logger *logrus.Logger,
) *AnalyticsService {
	if pipeline.Bucket == "" {
		pipeline.Bucket = models.BucketMonth
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalyticsService{
		recordRepo:    recordRepo,
		batchRepo:     batchRepo,
		directoryRepo: directoryRepo,
		pipeline:      pipeline,
		logger:        logger,
	}
}

// Engine движок метрик, которым сервис считает отчеты
func (s *AnalyticsService) Engine() *metrics.Engine {
	return s.pipeline.Engine
}

// Bucket корзина отчетов по периодам из настроек
func (s *AnalyticsService) Bucket() models.Bucket {
	return s.pipeline.Bucket
}

// IngestResult итог приема одной партии
type IngestResult struct {
	Batch     models.Batch
	Ingestion ingest.Report
	Cleaning  cleaning.Report
	// Records записи партии после очистки, чистые и отклоненные
	Records []models.AbsenceRecord `json:"-"`
}

// IngestAndClean принимает источник, очищает партию и сохраняет все записи
// вместе с отчетами. Следующий снимок будет построен заново.
func (s *AnalyticsService) IngestAndClean(ctx context.Context, src ingest.RowSource) (*IngestResult, error) {
	seq, err := s.batchRepo.NextSequence()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate batch sequence: %w", err)
	}
	prov := models.Provenance{BatchID: uuid.NewString(), Source: src.Name(), Sequence: seq}

	batch, err := s.pipeline.Adapter.Ingest(ctx, src, prov)
	if err != nil {
		return nil, err
	}

	cleaned := s.pipeline.Cleaner.Clean(batch.Records)

	if err := s.recordRepo.SaveBatch(cleaned.Records); err != nil {
		return nil, fmt.Errorf("failed to save records: %w", err)
	}

	stored := models.Batch{
		ID:            prov.BatchID,
		Source:        batch.Provenance.Source,
		Sequence:      seq,
		RowsSeen:      batch.Report.RowsSeen,
		RowsAccepted:  batch.Report.RowsAccepted,
		RowsRejected:  len(batch.Report.RowsRejected),
		Stopped:       batch.Report.Stopped,
		Partial:       batch.Report.Partial,
		CleanCount:    cleaned.Report.Clean,
		RejectedCount: cleaned.Report.Rejected,
		OverlapCount:  len(cleaned.Report.Overlaps),
		RepairCount:   cleaned.Report.Repairs,
	}
	if err := s.batchRepo.Create(&stored); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}

	if err := s.updateDirectory(cleaned.Clean()); err != nil {
		s.logger.WithError(err).Warn("Failed to update directory")
	}

	s.invalidate()

	s.logger.WithFields(logrus.Fields{
		"batch":    stored.ID,
		"sequence": stored.Sequence,
		"source":   stored.Source,
		"clean":    stored.CleanCount,
		"rejected": stored.RejectedCount,
	}).Info("Batch stored")

	return &IngestResult{Batch: stored, Ingestion: batch.Report, Cleaning: cleaned.Report, Records: cleaned.Records}, nil
}

// invalidate сбрасывает снимок и его кэш, следующий Snapshot строится заново
func (s *AnalyticsService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.pipeline.Cache != nil {
		s.pipeline.Cache.Invalidate(s.snapshot.ID())
	}
	s.snapshot = nil
	s.cleaning = nil
}

// ManualAbsence отсутствие, введенное вручную (из бота)
type ManualAbsence struct {
	EmployeeID   string
	DepartmentID string
	// Reason сырая подпись, разрешается таблицей причин при очистке
	Reason string
	Start  time.Time
	End    time.Time
	// Author кто ввел запись, попадает в имя источника
	Author string
}

// AddAbsence принимает одну запись как отдельную партию из одной строки,
// поэтому она проходит ту же очистку, что и выгрузки.
func (s *AnalyticsService) AddAbsence(ctx context.Context, entry ManualAbsence) (*IngestResult, error) {
	m := s.pipeline.Adapter.Mapping()
	row := ingest.Row{
		m.EmployeeID:   entry.EmployeeID,
		m.DepartmentID: entry.DepartmentID,
		m.Reason:       entry.Reason,
		m.StartDate:    entry.Start.Format(models.DateLayout),
		m.EndDate:      entry.End.Format(models.DateLayout),
	}

	name := "manual"
	if entry.Author != "" {
		name = "manual:" + entry.Author
	}
	return s.IngestAndClean(ctx, ingest.NewSliceSource(name, []ingest.Row{row}))
}

// updateDirectory дополняет справочник сотрудниками и подразделениями партии
func (s *AnalyticsService) updateDirectory(records []models.AbsenceRecord) error {
	employees := make(map[string]models.EmployeeRef)
	departments := make(map[string]models.DepartmentRef)
	for _, rec := range records {
		e := employees[rec.EmployeeID]
		e.ID = rec.EmployeeID
		e.DepartmentID = rec.DepartmentID
		if rec.EmployeeName != "" {
			e.Name = rec.EmployeeName
		}
		employees[rec.EmployeeID] = e
		departments[rec.DepartmentID] = models.DepartmentRef{ID: rec.DepartmentID, Name: rec.DepartmentID}
	}

	empList := make([]models.EmployeeRef, 0, len(employees))
	for _, e := range employees {
		empList = append(empList, e)
	}
	sort.Slice(empList, func(i, j int) bool { return empList[i].ID < empList[j].ID })
	depList := make([]models.DepartmentRef, 0, len(departments))
	for _, d := range departments {
		depList = append(depList, d)
	}
	sort.Slice(depList, func(i, j int) bool { return depList[i].ID < depList[j].ID })

	if err := s.directoryRepo.UpsertDepartments(depList); err != nil {
		return err
	}
	return s.directoryRepo.UpsertEmployees(empList)
}

// Snapshot неизменяемый снимок всех принятых партий. Объединение партий
// очищается заново, чтобы дубликаты между партиями решались по порядку партий.
// Идентичность снимка - набор партий и правила очистки.
func (s *AnalyticsService) Snapshot() (*query.Snapshot, error) {
	batches, err := s.batchRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	id := snapshotID(batches, s.pipeline.Cleaner.Rules())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.snapshot.ID() == id {
		return s.snapshot, nil
	}

	records, err := s.recordRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	cleaned := s.pipeline.Cleaner.Clean(records)

	s.snapshot = query.NewSnapshot(id, cleaned.Records)
	s.cleaning = &cleaned.Report

	s.logger.WithFields(logrus.Fields{
		"snapshot": id,
		"batches":  len(batches),
		"records":  s.snapshot.Len(),
	}).Info("Snapshot built")

	return s.snapshot, nil
}

func snapshotID(batches []models.Batch, rules cleaning.Rules) string {
	h := sha256.New()
	for _, b := range batches {
		fmt.Fprintf(h, "%s:%d;", b.ID, b.Sequence)
	}
	h.Write([]byte(rules.Fingerprint()))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Query агрегирует снимок с кэшированием результата
func (s *AnalyticsService) Query(snap *query.Snapshot, grouping models.Grouping, criteria ...models.FilterCriteria) (models.AggregationResult, error) {
	if err := grouping.Validate(); err != nil {
		return models.AggregationResult{}, err
	}
	for _, c := range criteria {
		if err := c.Validate(); err != nil {
			return models.AggregationResult{}, err
		}
	}

	compute := func() (models.AggregationResult, error) {
		records, err := snap.Query(criteria...)
		if err != nil {
			return models.AggregationResult{}, err
		}
		return s.pipeline.Engine.Aggregate(records, grouping)
	}

	if s.pipeline.Cache == nil {
		return compute()
	}
	key, err := cache.Key(snap.ID(), criteria, grouping)
	if err != nil {
		return models.AggregationResult{}, err
	}
	return s.pipeline.Cache.GetOrCompute(snap.ID(), key, compute)
}

// QualityReport качество данных: последняя партия и очистка текущего снимка
type QualityReport struct {
	LastBatch  *models.Batch
	Rejections map[models.RejectionCode]int
	Snapshot   *cleaning.Report
	// OverlapPolicy как метрики считают пересечения из Snapshot.Overlaps
	OverlapPolicy metrics.OverlapPolicy
}

func (s *AnalyticsService) Quality() (*QualityReport, error) {
	latest, err := s.batchRepo.GetLatest()
	if err != nil {
		return nil, err
	}
	report := &QualityReport{
		LastBatch:     latest,
		Rejections:    map[models.RejectionCode]int{},
		OverlapPolicy: s.pipeline.Engine.Policy(),
	}
	if latest != nil {
		report.Rejections, err = s.recordRepo.CountByRejection(latest.ID)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.Snapshot(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.cleaning != nil {
		snapshotReport := *s.cleaning
		report.Snapshot = &snapshotReport
	}
	s.mu.Unlock()

	return report, nil
}

// BatchDetails партия и ее записи с классификацией
type BatchDetails struct {
	Batch   models.Batch
	Records []models.AbsenceRecord
}

// Rejected отклоненные записи партии
func (d BatchDetails) Rejected() []models.AbsenceRecord {
	var out []models.AbsenceRecord
	for _, rec := range d.Records {
		if rec.IsRejected() {
			out = append(out, rec)
		}
	}
	return out
}

// Batches все принятые партии по порядку
func (s *AnalyticsService) Batches() ([]models.Batch, error) {
	return s.batchRepo.List()
}

// Batch партия по ID; nil, если такой нет
func (s *AnalyticsService) Batch(id string) (*BatchDetails, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil || batch == nil {
		return nil, err
	}
	records, err := s.recordRepo.GetByBatchID(id)
	if err != nil {
		return nil, err
	}
	return &BatchDetails{Batch: *batch, Records: records}, nil
}

// Reclean заново очищает каждую сохраненную партию текущими правилами
// и записывает новую классификацию и счетчики. Нужен после смены правил
// (MAX_ABSENCE_DAYS, REASON_ALIASES): сохраненные отчеты партий иначе
// показывают старую очистку.
func (s *AnalyticsService) Reclean(ctx context.Context) ([]models.Batch, error) {
	batches, err := s.batchRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	out := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		records, err := s.recordRepo.GetByBatchID(b.ID)
		if err != nil {
			return out, fmt.Errorf("failed to load batch %s: %w", b.ID, err)
		}
		cleaned := s.pipeline.Cleaner.Clean(records)
		if err := s.recordRepo.UpdateClassification(cleaned.Records); err != nil {
			return out, fmt.Errorf("failed to update batch %s: %w", b.ID, err)
		}

		b.CleanCount = cleaned.Report.Clean
		b.RejectedCount = cleaned.Report.Rejected
		b.OverlapCount = len(cleaned.Report.Overlaps)
		b.RepairCount = cleaned.Report.Repairs
		if err := s.batchRepo.Update(&b); err != nil {
			return out, fmt.Errorf("failed to update batch %s: %w", b.ID, err)
		}
		out = append(out, b)

		s.logger.WithFields(logrus.Fields{
			"batch":    b.ID,
			"clean":    b.CleanCount,
			"rejected": b.RejectedCount,
		}).Info("Batch recleaned")
	}

	s.invalidate()

	return out, nil
}

// Employees справочник сотрудников
func (s *AnalyticsService) Employees() ([]models.EmployeeRef, error) {
	return s.directoryRepo.GetEmployees()
}

// Departments полный список подразделений для нулевых строк отчета
func (s *AnalyticsService) Departments(snap *query.Snapshot) ([]string, error) {
	refs, err := s.directoryRepo.GetDepartments()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, d := range refs {
		set[d.ID] = struct{}{}
	}
	for _, d := range snap.Departments() {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// EmployeeSummary сводка по одному сотруднику
type EmployeeSummary struct {
	Employee models.EmployeeRef
	Total    models.MetricBundle
	ByMonth  models.AggregationResult
	Records  []models.AbsenceRecord
}

// Employee сводка сотрудника; nil, если у сотрудника нет записей и его нет в справочнике
func (s *AnalyticsService) Employee(snap *query.Snapshot, employeeID string) (*EmployeeSummary, error) {
	criteria := models.FilterCriteria{EmployeeIDs: []string{employeeID}}
	records, err := snap.Query(criteria)
	if err != nil {
		return nil, err
	}

	ref, err := s.directoryRepo.GetEmployee(employeeID)
	if err != nil {
		return nil, err
	}
	if ref == nil && len(records) == 0 {
		return nil, nil
	}

	byMonth, err := s.Query(snap, models.Grouping{Dimension: models.DimensionPeriod, Bucket: models.BucketMonth}, criteria)
	if err != nil {
		return nil, err
	}

	// итог по измерению сотрудника, чтобы запись на стыке месяцев считалась один раз
	byEmployee, err := s.Query(snap, models.Grouping{Dimension: models.DimensionEmployee}, criteria)
	if err != nil {
		return nil, err
	}
	total, ok := byEmployee.Get(employeeID)
	if !ok {
		total = models.NewMetricBundle()
	}

	summary := &EmployeeSummary{ByMonth: byMonth, Total: total, Records: records}
	if ref != nil {
		summary.Employee = *ref
	} else {
		summary.Employee = models.EmployeeRef{ID: employeeID}
	}
	return summary, nil
}

// AbsentOn чистые записи, покрывающие дату, по подразделению и сотруднику
func (s *AnalyticsService) AbsentOn(snap *query.Snapshot, date time.Time) ([]models.AbsenceRecord, error) {
	day := models.TruncateDate(date)
	records, err := snap.Query(models.FilterCriteria{DateRange: &models.DateRange{Start: day, End: day}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DepartmentID != records[j].DepartmentID {
			return records[i].DepartmentID < records[j].DepartmentID
		}
		return records[i].EmployeeID < records[j].EmployeeID
	})
	return records, nil
}
