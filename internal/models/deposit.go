package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WasteDeposit is written once per deposit and never updated.
type WasteDeposit struct {
	ID           string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string        `gorm:"type:varchar(36);not null;index" json:"userId"`
	User         *User         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	WasteType    WasteCategory `gorm:"type:varchar(10);not null;index" json:"wasteType"`
	Amount       float64       `gorm:"not null" json:"amount"`
	PointsEarned int           `gorm:"not null" json:"pointsEarned"`
	EcoXPEarned  int           `gorm:"column:eco_xp_earned;not null" json:"ecoXpEarned"`
	ScanMethod   ScanMethod    `gorm:"type:varchar(10);default:'MANUAL';not null" json:"scanMethod"`
	DepositDate  time.Time     `gorm:"not null;index" json:"depositDate"`
}

func (d *WasteDeposit) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DepositDate.IsZero() {
		d.DepositDate = time.Now()
	}
	return nil
}
