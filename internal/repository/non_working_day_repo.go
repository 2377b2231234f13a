package repository

import (
	"time"

	"absence-analytics/internal/models"

	"gorm.io/gorm"
)

type NonWorkingDayRepository interface {
	ReplaceAll(days []models.NonWorkingDay) error
	GetByYearMonth(year, month int) ([]models.NonWorkingDay, error)
	GetAll() ([]models.NonWorkingDay, error)
	IsNonWorkingDay(date time.Time) (bool, error)
}

type GormNonWorkingDayRepository struct {
	db *gorm.DB
}

func NewGormNonWorkingDayRepository(db *gorm.DB) (NonWorkingDayRepository, error) {
	// Автомиграция для таблицы non_working_days
	if err := db.AutoMigrate(&models.NonWorkingDay{}); err != nil {
		return nil, err
	}

	return &GormNonWorkingDayRepository{db: db}, nil
}

// ReplaceAll заменяет календарь целиком в одной транзакции
func (r *GormNonWorkingDayRepository) ReplaceAll(days []models.NonWorkingDay) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM non_working_days").Error; err != nil {
			return err
		}
		if len(days) == 0 {
			return nil
		}
		return tx.CreateInBatches(&days, insertBatchSize).Error
	})
}

func (r *GormNonWorkingDayRepository) GetByYearMonth(year, month int) ([]models.NonWorkingDay, error) {
	var days []models.NonWorkingDay
	err := r.db.Where("year = ? AND month = ?", year, month).Order("day").Find(&days).Error
	return days, err
}

func (r *GormNonWorkingDayRepository) GetAll() ([]models.NonWorkingDay, error) {
	var days []models.NonWorkingDay
	err := r.db.Order("year, month, day").Find(&days).Error
	return days, err
}

func (r *GormNonWorkingDayRepository) IsNonWorkingDay(date time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.NonWorkingDay{}).
		Where("year = ? AND month = ? AND day = ?", date.Year(), int(date.Month()), date.Day()).
		Count(&count).Error
	return count > 0, err
}
