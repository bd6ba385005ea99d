package models

import (
	"time"

	"gorm.io/datatypes"
)

// SettingsRowID is the primary key of the single settings row.
const SettingsRowID = "settings"

type AppSettings struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Config    datatypes.JSON `json:"config"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
