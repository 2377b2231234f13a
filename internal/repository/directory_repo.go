package repository

import (
	"errors"

	"absence-analytics/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryRepository справочник сотрудников и подразделений
type DirectoryRepository interface {
	UpsertEmployees(employees []models.EmployeeRef) error
	UpsertDepartments(departments []models.DepartmentRef) error
	GetEmployee(id string) (*models.EmployeeRef, error)
	GetEmployees() ([]models.EmployeeRef, error)
	GetDepartments() ([]models.DepartmentRef, error)
}

type GormDirectoryRepository struct {
	db *gorm.DB
}

func NewGormDirectoryRepository(db *gorm.DB) (DirectoryRepository, error) {
	if err := db.AutoMigrate(&models.EmployeeRef{}, &models.DepartmentRef{}); err != nil {
		return nil, err
	}

	return &GormDirectoryRepository{db: db}, nil
}

func (r *GormDirectoryRepository) UpsertEmployees(employees []models.EmployeeRef) error {
	if len(employees) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "department_id", "updated_at"}),
	}).Create(&employees).Error
}

func (r *GormDirectoryRepository) UpsertDepartments(departments []models.DepartmentRef) error {
	if len(departments) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&departments).Error
}

func (r *GormDirectoryRepository) GetEmployee(id string) (*models.EmployeeRef, error) {
	var employee models.EmployeeRef
	result := r.db.Where("id = ?", id).First(&employee)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &employee, nil
}

func (r *GormDirectoryRepository) GetEmployees() ([]models.EmployeeRef, error) {
	var employees []models.EmployeeRef
	err := r.db.Order("id").Find(&employees).Error
	return employees, err
}

func (r *GormDirectoryRepository) GetDepartments() ([]models.DepartmentRef, error) {
	var departments []models.DepartmentRef
	err := r.db.Order("id").Find(&departments).Error
	return departments, err
}
