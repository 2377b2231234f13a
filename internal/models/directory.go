// internal/models/directory.go
package models

import "time"

// EmployeeRef справочная запись сотрудника из внешнего каталога
type EmployeeRef struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	DepartmentID string    `gorm:"type:varchar(64);index" json:"department_id"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EmployeeRef) TableName() string {
	return "employees"
}

// DepartmentRef справочная запись подразделения
type DepartmentRef struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DepartmentRef) TableName() string {
	return "departments"
}
