package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointSource names what moved a user's point balance.
type PointSource string

const (
	PointSourceDeposit     PointSource = "DEPOSIT"
	PointSourceTreeBonus   PointSource = "TREE_BONUS"
	PointSourceVoucher     PointSource = "VOUCHER"
	PointSourceRefund      PointSource = "VOUCHER_REFUND"
	PointSourceQuiz        PointSource = "QUIZ"
	PointSourceAdminAdjust PointSource = "ADMIN_ADJUST"
)

// PointLog is one ledger line; positive amounts credit, negative debit.
type PointLog struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string      `gorm:"type:varchar(36);not null;index" json:"userId"`
	User      *User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int         `gorm:"not null" json:"amount"`
	Source    PointSource `gorm:"type:varchar(20);not null" json:"source"`
	Reference string      `gorm:"size:64" json:"reference,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (l *PointLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
