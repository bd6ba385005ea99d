package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string     `gorm:"size:100;not null" json:"name"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	Password        string     `json:"-"` // bcrypt hash, empty for Google-only accounts
	GoogleID        string     `gorm:"index" json:"-"`
	Image           string     `json:"image"`
	Location        string     `gorm:"size:200" json:"location"`
	Role            Role       `gorm:"type:varchar(10);default:'USER';not null" json:"role"`
	Points          int        `gorm:"default:0;not null" json:"points"`
	Level           Level      `gorm:"type:varchar(10);default:'BRONZE';not null" json:"level"`
	TotalWaste      float64    `gorm:"default:0;not null" json:"totalWaste"`
	TreesGrown      int        `gorm:"default:0;not null" json:"treesGrown"`
	EcoXP           int        `gorm:"column:eco_xp;default:0;not null" json:"ecoXp"`
	TreeStage       TreeStage  `gorm:"type:varchar(10);default:'SEED';not null" json:"treeStage"`
	Streak          int        `gorm:"default:0;not null" json:"streak"`
	LastDepositDate *time.Time `json:"lastDepositDate"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Level == "" {
		u.Level = LevelBronze
	}
	if u.TreeStage == "" {
		u.TreeStage = StageSeed
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.Password != ""
}
