package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationPointsEarned      NotificationType = "POINTS_EARNED"
	NotificationLevelUp           NotificationType = "LEVEL_UP"
	NotificationVoucherRedeemed   NotificationType = "VOUCHER_REDEEMED"
	NotificationTreeGrown         NotificationType = "TREE_GROWN"
	NotificationQuizCompleted     NotificationType = "QUIZ_COMPLETED"
	NotificationSystem            NotificationType = "SYSTEM"
	NotificationAdminAnnouncement NotificationType = "ADMIN_ANNOUNCEMENT"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationPointsEarned, NotificationLevelUp, NotificationVoucherRedeemed,
		NotificationTreeGrown, NotificationQuizCompleted, NotificationSystem, NotificationAdminAnnouncement:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string           `gorm:"type:varchar(36);not null;index" json:"userId"`
	User      *User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	Type      NotificationType `gorm:"type:varchar(30);not null;index" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	ActionURL string           `json:"actionUrl,omitempty"`
	IsRead    bool             `gorm:"default:false;index" json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
