package repository

import (
	"errors"

	"absence-analytics/internal/models"

	"gorm.io/gorm"
)

type BatchRepository interface {
	Create(batch *models.Batch) error
	Update(batch *models.Batch) error
	GetByID(id string) (*models.Batch, error)
	GetLatest() (*models.Batch, error)
	NextSequence() (int64, error)
	List() ([]models.Batch, error)
}

type GormBatchRepository struct {
	db *gorm.DB
}

func NewGormBatchRepository(db *gorm.DB) (BatchRepository, error) {
	if err := db.AutoMigrate(&models.Batch{}); err != nil {
		return nil, err
	}

	return &GormBatchRepository{db: db}, nil
}

func (r *GormBatchRepository) Create(batch *models.Batch) error {
	return r.db.Create(batch).Error
}

func (r *GormBatchRepository) Update(batch *models.Batch) error {
	return r.db.Save(batch).Error
}

func (r *GormBatchRepository) GetByID(id string) (*models.Batch, error) {
	var batch models.Batch
	result := r.db.Where("id = ?", id).First(&batch)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &batch, nil
}

// GetLatest последняя принятая партия, nil если партий нет
func (r *GormBatchRepository) GetLatest() (*models.Batch, error) {
	var batch models.Batch
	result := r.db.Order("sequence DESC").First(&batch)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &batch, nil
}

// NextSequence номер следующей партии, начиная с 1
func (r *GormBatchRepository) NextSequence() (int64, error) {
	var last int64
	err := r.db.Model(&models.Batch{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (r *GormBatchRepository) List() ([]models.Batch, error) {
	var batches []models.Batch
	err := r.db.Order("sequence").Find(&batches).Error
	return batches, err
}
