package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoucherTemplate is an admin-managed catalog entry. Stock -1 means unlimited.
// Stock and IsActive have no column default so 0 and false survive Create.
type VoucherTemplate struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Icon        string    `gorm:"size:16;default:'🎁'" json:"icon"`
	Category    string    `gorm:"size:30;default:'PULSA'" json:"category"`
	Nominal     int       `gorm:"not null" json:"nominal"`
	PointsCost  int       `gorm:"not null" json:"pointsCost"`
	Stock       int       `gorm:"not null" json:"stock"`
	IsActive    bool      `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const UnlimitedStock = -1

func (t *VoucherTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *VoucherTemplate) Unlimited() bool {
	return t.Stock < 0
}

// Voucher is an issued, user-owned redemption.
type Voucher struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string           `gorm:"type:varchar(36);not null;index" json:"userId"`
	User        *User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	TemplateID  *string          `gorm:"type:varchar(36);index" json:"templateId"`
	Template    *VoucherTemplate `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"template,omitempty"`
	VoucherType string           `gorm:"size:30" json:"voucherType,omitempty"`
	VoucherCode string           `gorm:"size:20;uniqueIndex;not null" json:"voucherCode"`
	Nominal     int              `gorm:"not null" json:"nominal"`
	PointsUsed  int              `gorm:"not null" json:"pointsUsed"`
	IsRedeemed  bool             `gorm:"default:false;not null;index" json:"isRedeemed"`
	RedeemedAt  *time.Time       `json:"redeemedAt"`
	ExpiresAt   time.Time        `gorm:"not null" json:"expiresAt"`
	CreatedAt   time.Time        `json:"createdAt"`
}

func (v *Voucher) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

func (v *Voucher) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
