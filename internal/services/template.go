package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/validation"

	"gorm.io/gorm"
)

type TemplateInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=16"`
	Category    string `json:"category" validate:"max=30"`
	Nominal     int    `json:"nominal" validate:"gt=0"`
	PointsCost  int    `json:"pointsCost" validate:"gt=0"`
	Stock       *int   `json:"stock" validate:"omitempty,gte=-1"`
	IsActive    *bool  `json:"isActive"`
}

type TemplateUpdate struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Icon        *string `json:"icon" validate:"omitempty,max=16"`
	Category    *string `json:"category" validate:"omitempty,max=30"`
	Nominal     *int    `json:"nominal" validate:"omitempty,gt=0"`
	PointsCost  *int    `json:"pointsCost" validate:"omitempty,gt=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=-1"`
	IsActive    *bool   `json:"isActive"`
}

type TemplateService struct {
	db *gorm.DB
}

func NewTemplateService(gdb *gorm.DB) *TemplateService {
	return &TemplateService{db: gdb}
}

// List returns templates ordered by cost. Inactive ones are included only
// when includeInactive is set.
func (s *TemplateService) List(ctx context.Context, includeInactive bool) ([]models.VoucherTemplate, error) {
	q := s.db.WithContext(ctx).Model(&models.VoucherTemplate{})
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var list []models.VoucherTemplate
	if err := q.Order("points_cost ASC").Order("name ASC").Find(&list).Error; err != nil {
		return nil, apperror.Internal("failed to load voucher templates", err)
	}
	return list, nil
}

func (s *TemplateService) nameTaken(tx *gorm.DB, name, exceptID string) (bool, error) {
	q := tx.Model(&models.VoucherTemplate{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *TemplateService) Create(ctx context.Context, in TemplateInput) (*models.VoucherTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)

	taken, err := s.nameTaken(tx, in.Name, "")
	if err != nil {
		return nil, apperror.Internal("failed to check template name", err)
	}
	if taken {
		return nil, apperror.Conflict(fmt.Sprintf("voucher template %q already exists", in.Name))
	}

	tpl := models.VoucherTemplate{
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Category:    in.Category,
		Nominal:     in.Nominal,
		PointsCost:  in.PointsCost,
		Stock:       models.UnlimitedStock,
		IsActive:    true,
	}
	if tpl.Icon == "" {
		tpl.Icon = "🎁"
	}
	if tpl.Category == "" {
		tpl.Category = "PULSA"
	}
	if in.Stock != nil {
		tpl.Stock = *in.Stock
	}
	if in.IsActive != nil {
		tpl.IsActive = *in.IsActive
	}

	if err := tx.Create(&tpl).Error; err != nil {
		return nil, apperror.Internal("failed to create voucher template", err)
	}
	logging.Ctx(ctx).Info().Str("template", tpl.Name).Msg("Voucher template created")
	return &tpl, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, in TemplateUpdate) (*models.VoucherTemplate, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)

	var tpl models.VoucherTemplate
	if err := tx.Where("id = ?", id).Take(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("voucher template", id)
		}
		return nil, apperror.Internal("failed to load voucher template", err)
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		taken, err := s.nameTaken(tx, name, id)
		if err != nil {
			return nil, apperror.Internal("failed to check template name", err)
		}
		if taken {
			return nil, apperror.Conflict(fmt.Sprintf("voucher template %q already exists", name))
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Icon != nil {
		updates["icon"] = *in.Icon
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Nominal != nil {
		updates["nominal"] = *in.Nominal
	}
	if in.PointsCost != nil {
		updates["points_cost"] = *in.PointsCost
	}
	if in.Stock != nil {
		updates["stock"] = *in.Stock
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := tx.Model(&tpl).Updates(updates).Error; err != nil {
			return nil, apperror.Internal("failed to update voucher template", err)
		}
	}
	if err := tx.Where("id = ?", id).Take(&tpl).Error; err != nil {
		return nil, apperror.Internal("failed to reload voucher template", err)
	}
	return &tpl, nil
}

// Delete hard-deletes an unused template and deactivates one that already
// issued vouchers. It reports whether the row was kept.
func (s *TemplateService) Delete(ctx context.Context, id string) (deactivated bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.VoucherTemplate
		if err := tx.Where("id = ?", id).Take(&tpl).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("voucher template", id)
			}
			return fmt.Errorf("load template: %w", err)
		}

		var issued int64
		if err := tx.Model(&models.Voucher{}).Where("template_id = ?", id).Count(&issued).Error; err != nil {
			return fmt.Errorf("count vouchers: %w", err)
		}
		if issued > 0 {
			deactivated = true
			return tx.Model(&tpl).Update("is_active", false).Error
		}
		return tx.Delete(&tpl).Error
	})
	if err != nil {
		return false, wrapTxError("failed to delete voucher template", err)
	}
	return deactivated, nil
}
