// internal/models/absence_record.go
package models

import (
	"time"
)

// Status жизненный цикл записи
type Status string

const (
	StatusRaw      Status = "raw"
	StatusClean    Status = "clean"
	StatusRejected Status = "rejected"
)

// RejectionCode причина отклонения записи при очистке
type RejectionCode string

const (
	RejectInvalidField         RejectionCode = "invalid-field"
	RejectInvertedRange        RejectionCode = "inverted-range"
	RejectImplausibleDuration  RejectionCode = "implausible-duration"
	RejectSupersededDuplicate  RejectionCode = "superseded-duplicate"
	RejectSupersededCorrection RejectionCode = "superseded-correction"
)

// RejectionCodes все коды отклонения в порядке применения правил
func RejectionCodes() []RejectionCode {
	return []RejectionCode{
		RejectInvalidField,
		RejectInvertedRange,
		RejectImplausibleDuration,
		RejectSupersededCorrection,
		RejectSupersededDuplicate,
	}
}

// Provenance откуда пришла запись
type Provenance struct {
	BatchID string `gorm:"type:varchar(36);index" json:"batch_id"`
	Source  string `gorm:"type:varchar(255)" json:"source"`
	// Sequence порядок наблюдения партии, 0 означает неизвестный порядок
	Sequence int64 `json:"sequence"`
}

type AbsenceRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EmployeeID   string    `gorm:"type:varchar(64);not null;index" json:"employee_id"`
	EmployeeName string    `gorm:"type:varchar(255)" json:"employee_name,omitempty"`
	DepartmentID string    `gorm:"type:varchar(64);not null;index" json:"department_id"`
	Reason       Reason    `gorm:"type:varchar(20)" json:"reason"`
	RawReason    string    `gorm:"type:varchar(255)" json:"raw_reason,omitempty"`
	StartDate    time.Time `gorm:"type:date" json:"start_date"`
	EndDate      time.Time `gorm:"type:date" json:"end_date"`

	Provenance Provenance `gorm:"embedded" json:"provenance"`
	RowIndex   int        `json:"row_index"`

	// Supersedes ID исправляемой записи, история не перезаписывается
	Supersedes string `gorm:"type:varchar(36)" json:"supersedes,omitempty"`

	Status    Status        `gorm:"type:varchar(20);not null;default:'raw';index" json:"status"`
	Rejection RejectionCode `gorm:"type:varchar(32)" json:"rejection,omitempty"`
}

func (AbsenceRecord) TableName() string {
	return "absence_records"
}

// Identity ключ равенства записей: сотрудник, даты и источник
type Identity struct {
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	Source     string
}

// DuplicateKey ключ поиска дубликатов без учета источника
type DuplicateKey struct {
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	Reason     Reason
}

func (r AbsenceRecord) Identity() Identity {
	return Identity{
		EmployeeID: r.EmployeeID,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Source:     r.Provenance.Source,
	}
}

// Equal сравнивает записи по идентифицирующим полям
func (r AbsenceRecord) Equal(other AbsenceRecord) bool {
	return r.Identity() == other.Identity()
}

func (r AbsenceRecord) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		EmployeeID: r.EmployeeID,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		Reason:     r.Reason,
	}
}

// Days длительность отсутствия в днях включительно
func (r AbsenceRecord) Days() int {
	return SpanDays(r.StartDate, r.EndDate)
}

// Overlaps пересекаются ли даты двух записей
func (r AbsenceRecord) Overlaps(other AbsenceRecord) bool {
	return !r.StartDate.After(other.EndDate) && !r.EndDate.Before(other.StartDate)
}

func (r AbsenceRecord) IsClean() bool {
	return r.Status == StatusClean
}

func (r AbsenceRecord) IsRejected() bool {
	return r.Status == StatusRejected
}

// Classified возвращает копию записи с новым статусом, исходная не меняется
func (r AbsenceRecord) Classified(status Status, code RejectionCode) AbsenceRecord {
	r.Status = status
	r.Rejection = code
	return r
}
