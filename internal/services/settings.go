package services

import (
	"context"
	"encoding/json"
	"errors"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/validation"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointsPerKg holds the points awarded per kilogram for each category.
type PointsPerKg struct {
	Organic float64 `json:"ORGANIC" validate:"gt=0"`
	Plastic float64 `json:"PLASTIC" validate:"gt=0"`
	Metal   float64 `json:"METAL" validate:"gt=0"`
	Paper   float64 `json:"PAPER" validate:"gt=0"`
}

// For returns the rate for c, or zero for an unknown category.
func (p PointsPerKg) For(c models.WasteCategory) float64 {
	switch c {
	case models.WasteOrganic:
		return p.Organic
	case models.WastePlastic:
		return p.Plastic
	case models.WasteMetal:
		return p.Metal
	case models.WastePaper:
		return p.Paper
	}
	return 0
}

type LevelThresholds struct {
	Silver int `json:"SILVER" validate:"gt=0"`
	Gold   int `json:"GOLD" validate:"gt=0"`
}

type EcoTreeConfig struct {
	ClaimXPThreshold int `json:"claimXpThreshold" validate:"gt=0"`
	BonusPoints      int `json:"bonusPoints" validate:"gt=0"`
}

type VoucherConfig struct {
	ExpiryDays int `json:"expiryDays" validate:"gt=0"`
}

// Settings is the fully resolved set of runtime tunables.
type Settings struct {
	PointsPerKg     PointsPerKg     `json:"pointsPerKg"`
	LevelThresholds LevelThresholds `json:"levelThresholds"`
	EcoTreeConfig   EcoTreeConfig   `json:"ecoTreeConfig"`
	VoucherConfig   VoucherConfig   `json:"voucherConfig"`
}

func DefaultSettings() Settings {
	return Settings{
		PointsPerKg:     PointsPerKg{Organic: 5, Plastic: 10, Metal: 15, Paper: 8},
		LevelThresholds: LevelThresholds{Silver: 500, Gold: 1000},
		EcoTreeConfig:   EcoTreeConfig{ClaimXPThreshold: 1000, BonusPoints: 200},
		VoucherConfig:   VoucherConfig{ExpiryDays: 30},
	}
}

// withDefaults replaces every non-positive field by its default.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	fillFloat(&s.PointsPerKg.Organic, d.PointsPerKg.Organic)
	fillFloat(&s.PointsPerKg.Plastic, d.PointsPerKg.Plastic)
	fillFloat(&s.PointsPerKg.Metal, d.PointsPerKg.Metal)
	fillFloat(&s.PointsPerKg.Paper, d.PointsPerKg.Paper)
	fillInt(&s.LevelThresholds.Silver, d.LevelThresholds.Silver)
	fillInt(&s.LevelThresholds.Gold, d.LevelThresholds.Gold)
	fillInt(&s.EcoTreeConfig.ClaimXPThreshold, d.EcoTreeConfig.ClaimXPThreshold)
	fillInt(&s.EcoTreeConfig.BonusPoints, d.EcoTreeConfig.BonusPoints)
	fillInt(&s.VoucherConfig.ExpiryDays, d.VoucherConfig.ExpiryDays)
	return s
}

func fillFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

func fillInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

type SettingsService struct {
	db *gorm.DB
}

func NewSettingsService(gdb *gorm.DB) *SettingsService {
	return &SettingsService{db: gdb}
}

// Resolve returns the stored settings merged over the defaults. It never
// fails: a missing row or unreadable JSON yields the defaults.
func (s *SettingsService) Resolve(ctx context.Context) Settings {
	return resolveSettings(s.db.WithContext(ctx))
}

func resolveSettings(tx *gorm.DB) Settings {
	var row models.AppSettings
	err := tx.Where("id = ?", models.SettingsRowID).Take(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logging.Warn().Err(err).Msg("Failed to load settings, using defaults")
		}
		return DefaultSettings()
	}
	return decodeSettings(row.Config)
}

func decodeSettings(raw []byte) Settings {
	s := DefaultSettings()
	if len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		logging.Warn().Err(err).Msg("Stored settings are not valid JSON, using defaults")
		return DefaultSettings()
	}
	return s.withDefaults()
}

// Ensure returns the resolved settings and creates the row with the
// defaults when it does not exist yet.
func (s *SettingsService) Ensure(ctx context.Context) (Settings, error) {
	tx := s.db.WithContext(ctx)
	var count int64
	if err := tx.Model(&models.AppSettings{}).Where("id = ?", models.SettingsRowID).Count(&count).Error; err != nil {
		return Settings{}, apperror.Internal("failed to load settings", err)
	}
	if count == 0 {
		return s.save(tx, DefaultSettings())
	}
	return resolveSettings(tx), nil
}

// Update validates and stores a complete settings object.
func (s *SettingsService) Update(ctx context.Context, in Settings) (Settings, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return Settings{}, validation.Translate(err)
	}
	if in.LevelThresholds.Gold <= in.LevelThresholds.Silver {
		return Settings{}, apperror.ValidationFailed("levelThresholds", "GOLD threshold must be greater than SILVER threshold")
	}
	out, err := s.save(s.db.WithContext(ctx), in)
	if err != nil {
		return Settings{}, err
	}
	logging.Info().Interface("settings", out).Msg("Settings updated")
	return out, nil
}

func (s *SettingsService) save(tx *gorm.DB, in Settings) (Settings, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return Settings{}, apperror.Internal("failed to encode settings", err)
	}
	row := models.AppSettings{ID: models.SettingsRowID, Config: datatypes.JSON(raw)}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Settings{}, apperror.Internal("failed to save settings", err)
	}
	return in, nil
}
