package repository

import (
	"absence-analytics/internal/models"

	"gorm.io/gorm"
)

const insertBatchSize = 200

type AbsenceRecordRepository interface {
	SaveBatch(records []models.AbsenceRecord) error
	UpdateClassification(records []models.AbsenceRecord) error
	GetByBatchID(batchID string) ([]models.AbsenceRecord, error)
	GetAll() ([]models.AbsenceRecord, error)
	CountByRejection(batchID string) (map[models.RejectionCode]int, error)
}

type GormAbsenceRecordRepository struct {
	db *gorm.DB
}

func NewGormAbsenceRecordRepository(db *gorm.DB) (AbsenceRecordRepository, error) {
	// Автомиграция для таблицы absence_records
	if err := db.AutoMigrate(&models.AbsenceRecord{}); err != nil {
		return nil, err
	}

	return &GormAbsenceRecordRepository{db: db}, nil
}

// SaveBatch сохраняет записи партии всех статусов, отклоненные тоже
func (r *GormAbsenceRecordRepository) SaveBatch(records []models.AbsenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&records, insertBatchSize).Error
}

// UpdateClassification переписывает только статус и код отклонения
func (r *GormAbsenceRecordRepository) UpdateClassification(records []models.AbsenceRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			err := tx.Model(&models.AbsenceRecord{}).
				Where("id = ?", rec.ID).
				Updates(map[string]any{
					"status":    rec.Status,
					"rejection": rec.Rejection,
					"reason":    rec.Reason,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormAbsenceRecordRepository) GetByBatchID(batchID string) ([]models.AbsenceRecord, error) {
	var records []models.AbsenceRecord
	err := r.db.Where("batch_id = ?", batchID).Order("row_index").Find(&records).Error
	return normalizeDates(records), err
}

// GetAll все записи в порядке наблюдения: по номеру партии, затем по строке
func (r *GormAbsenceRecordRepository) GetAll() ([]models.AbsenceRecord, error) {
	var records []models.AbsenceRecord
	err := r.db.Order("sequence").Order("row_index").Find(&records).Error
	return normalizeDates(records), err
}

func (r *GormAbsenceRecordRepository) CountByRejection(batchID string) (map[models.RejectionCode]int, error) {
	var rows []struct {
		Rejection models.RejectionCode
		Total     int
	}
	err := r.db.Model(&models.AbsenceRecord{}).
		Select("rejection, COUNT(*) AS total").
		Where("batch_id = ? AND status = ?", batchID, models.StatusRejected).
		Group("rejection").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[models.RejectionCode]int, len(rows))
	for _, row := range rows {
		out[row.Rejection] = row.Total
	}
	return out, nil
}

// normalizeDates приводит прочитанные из sqlite даты к полуночи UTC
func normalizeDates(records []models.AbsenceRecord) []models.AbsenceRecord {
	for i := range records {
		records[i].StartDate = models.TruncateDate(records[i].StartDate.UTC())
		records[i].EndDate = models.TruncateDate(records[i].EndDate.UTC())
	}
	return records
}
