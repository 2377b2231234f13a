// internal/models/batch.go
package models

import "time"

// Batch партия приема: одна загрузка одного источника
type Batch struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source   string `gorm:"type:varchar(255);not null" json:"source"`
	Sequence int64  `gorm:"not null;uniqueIndex" json:"sequence"`

	// Отчет приема
	RowsSeen     int  `gorm:"not null;default:0" json:"rows_seen"`
	RowsAccepted int  `gorm:"not null;default:0" json:"rows_accepted"`
	RowsRejected int  `gorm:"not null;default:0" json:"rows_rejected"`
	Stopped      bool `gorm:"not null;default:false" json:"stopped"`
	Partial      bool `gorm:"not null;default:false" json:"partial"`

	// Отчет очистки
	CleanCount    int `gorm:"not null;default:0" json:"clean_count"`
	RejectedCount int `gorm:"not null;default:0" json:"rejected_count"`
	OverlapCount  int `gorm:"not null;default:0" json:"overlap_count"`
	RepairCount   int `gorm:"not null;default:0" json:"repair_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Batch) TableName() string {
	return "ingestion_batches"
}

func (b Batch) Provenance() Provenance {
	return Provenance{BatchID: b.ID, Source: b.Source, Sequence: b.Sequence}
}
