package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/metrics"
	"greentera/internal/models"
	"greentera/internal/validation"

	"gorm.io/gorm"
)

const (
	VoucherCodePrefix   = "GT-"
	voucherCodeLength   = 8
	voucherCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts     = 10
)

// LegacyVoucher is an entry of the fixed catalog that predates templates.
type LegacyVoucher struct {
	Name    string `json:"name"`
	Points  int    `json:"points"`
	Nominal int    `json:"nominal"`
}

var LegacyVouchers = map[string]LegacyVoucher{
	"PULSA_10K":   {Name: "Pulsa 10K", Points: 100, Nominal: 10000},
	"PULSA_20K":   {Name: "Pulsa 20K", Points: 200, Nominal: 20000},
	"PULSA_50K":   {Name: "Pulsa 50K", Points: 500, Nominal: 50000},
	"DISCOUNT_10": {Name: "Diskon 10%", Points: 50, Nominal: 10},
	"DISCOUNT_25": {Name: "Diskon 25%", Points: 100, Nominal: 25},
	"DISCOUNT_50": {Name: "Diskon 50%", Points: 200, Nominal: 50},
}

// generateVoucherCode returns "GT-" followed by eight random characters.
func generateVoucherCode() (string, error) {
	buf := make([]byte, voucherCodeLength)
	max := big.NewInt(int64(len(voucherCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = voucherCodeAlphabet[n.Int64()]
	}
	return VoucherCodePrefix + string(buf), nil
}

type RedeemInput struct {
	TemplateID  string `json:"templateId"`
	VoucherType string `json:"voucherType"`
}

type RedeemResult struct {
	Voucher         models.Voucher
	Name            string
	Template        *models.VoucherTemplate
	RemainingPoints int
}

type VoucherService struct {
	db            *gorm.DB
	notifications *NotificationService
	leaderboard   *LeaderboardService
	mail          *MailService
	newCode       func() (string, error)
	now           func() time.Time
}

func NewVoucherService(gdb *gorm.DB, n *NotificationService, lb *LeaderboardService, mail *MailService) *VoucherService {
	return &VoucherService{
		db:            gdb,
		notifications: n,
		leaderboard:   lb,
		mail:          mail,
		newCode:       generateVoucherCode,
		now:           time.Now,
	}
}

// uniqueCode draws codes until one is unused. Exhausting the attempts is an
// internal failure.
func (s *VoucherService) uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("generate voucher code: %w", err)
		}
		var n int64
		if err := tx.Model(&models.Voucher{}).Where("voucher_code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check voucher code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", apperror.Internal("failed to generate a unique voucher code", nil)
}

// Redeem exchanges points for a voucher from a template or, when no
// template is given, from the legacy catalog.
func (s *VoucherService) Redeem(ctx context.Context, userID string, in RedeemInput) (*RedeemResult, error) {
	if in.TemplateID == "" && in.VoucherType == "" {
		return nil, apperror.ValidationFailed("templateId", "templateId or voucherType is required")
	}
	var legacy LegacyVoucher
	if in.TemplateID == "" {
		var ok bool
		if legacy, ok = LegacyVouchers[in.VoucherType]; !ok {
			return nil, apperror.ValidationFailed("voucherType", "unknown voucher type "+in.VoucherType)
		}
	}

	var (
		result    RedeemResult
		email     string
		prevLevel models.Level
		newLevel  models.Level
	)
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := resolveSettings(tx)

		cost, nominal, name := legacy.Points, legacy.Nominal, legacy.Name
		var tpl *models.VoucherTemplate
		if in.TemplateID != "" {
			tpl = &models.VoucherTemplate{}
			if err := tx.Where("id = ?", in.TemplateID).Take(tpl).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperror.NotFound("voucher template", in.TemplateID)
				}
				return fmt.Errorf("load template: %w", err)
			}
			if !tpl.IsActive {
				return apperror.Rejected("voucher %s is no longer available", tpl.Name)
			}
			if tpl.Stock == 0 {
				return apperror.Rejected("voucher %s is out of stock", tpl.Name)
			}
			cost, nominal, name = tpl.PointsCost, tpl.Nominal, tpl.Name
		}

		var user models.User
		if err := tx.Select("id", "email", "points", "level").Where("id = ?", userID).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user", userID)
			}
			return fmt.Errorf("load user: %w", err)
		}
		if user.Points < cost {
			return shortfall(cost, user.Points)
		}
		email = user.Email

		if tpl != nil && !tpl.Unlimited() {
			res := tx.Model(&models.VoucherTemplate{}).
				Where("id = ? AND stock > 0", tpl.ID).
				UpdateColumn("stock", gorm.Expr("stock - ?", 1))
			if res.Error != nil {
				return fmt.Errorf("decrement stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperror.Rejected("voucher %s is out of stock", tpl.Name)
			}
			tpl.Stock--
		}

		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}

		voucher := models.Voucher{
			UserID:      userID,
			VoucherCode: code,
			Nominal:     nominal,
			PointsUsed:  cost,
			ExpiresAt:   now.AddDate(0, 0, settings.VoucherConfig.ExpiryDays),
		}
		if tpl != nil {
			voucher.TemplateID = &tpl.ID
		} else {
			voucher.VoucherType = in.VoucherType
		}
		if err := tx.Create(&voucher).Error; err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}

		ok, err := deductPoints(tx, userID, cost, models.PointSourceVoucher, voucher.ID)
		if err != nil {
			return err
		}
		if !ok {
			current, err := currentPoints(tx, userID)
			if err != nil {
				return err
			}
			return shortfall(cost, current)
		}

		prevLevel, newLevel, err = refreshLevel(tx, userID, settings.LevelThresholds)
		if err != nil {
			return err
		}
		remaining, err := currentPoints(tx, userID)
		if err != nil {
			return err
		}

		result = RedeemResult{
			Voucher:         voucher,
			Name:            name,
			Template:        tpl,
			RemainingPoints: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to redeem voucher", err)
	}

	kind := "legacy"
	if result.Template != nil {
		kind = "template"
	}
	metrics.VouchersRedeemed.WithLabelValues(kind).Inc()
	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("voucher", result.Name).
		Str("code", result.Voucher.VoucherCode).
		Int("points", result.Voucher.PointsUsed).
		Msg("Voucher redeemed")

	s.leaderboard.Invalidate()
	s.notifications.VoucherRedeemed(ctx, userID, result.Name, result.Voucher.Nominal)
	if newLevel != prevLevel {
		s.notifications.LevelUp(ctx, userID, newLevel)
	}
	s.mail.SendVoucherEmail(email, result.Name, result.Voucher.VoucherCode, result.Voucher.Nominal, result.Voucher.ExpiresAt)
	return &result, nil
}

// History lists the user's vouchers, newest first.
func (s *VoucherService) History(ctx context.Context, userID string) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	if err := s.db.WithContext(ctx).
		Preload("Template").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&vouchers).Error; err != nil {
		return nil, apperror.Internal("failed to load vouchers", err)
	}
	return vouchers, nil
}

// MarkUsed lets the owner mark an unexpired voucher as used.
func (s *VoucherService) MarkUsed(ctx context.Context, userID, voucherID string) (*models.Voucher, error) {
	now := s.now()
	tx := s.db.WithContext(ctx)
	res := tx.Model(&models.Voucher{}).
		Where("id = ? AND user_id = ? AND is_redeemed = ? AND expires_at > ?", voucherID, userID, false, now).
		UpdateColumns(map[string]any{"is_redeemed": true, "redeemed_at": now})
	if res.Error != nil {
		return nil, apperror.Internal("failed to update voucher", res.Error)
	}

	var v models.Voucher
	if err := tx.Where("id = ? AND user_id = ?", voucherID, userID).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("voucher", voucherID)
		}
		return nil, apperror.Internal("failed to load voucher", err)
	}
	if res.RowsAffected == 0 {
		if v.IsRedeemed {
			return nil, apperror.Rejected("voucher %s has already been used", v.VoucherCode)
		}
		return nil, apperror.Rejected("voucher %s expired on %s", v.VoucherCode, v.ExpiresAt.Format("2006-01-02"))
	}
	return &v, nil
}

type DeleteVoucherResult struct {
	Refunded int `json:"refundedPoints"`
}

// Delete removes a voucher. Unredeemed vouchers refund their points to the
// owner in the same transaction.
func (s *VoucherService) Delete(ctx context.Context, voucherID string) (*DeleteVoucherResult, error) {
	var (
		result DeleteVoucherResult
		v      models.Voucher
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", voucherID).Take(&v).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("voucher", voucherID)
			}
			return fmt.Errorf("load voucher: %w", err)
		}

		if !v.IsRedeemed && v.PointsUsed > 0 {
			ok, err := addPoints(tx, v.UserID, v.PointsUsed, models.PointSourceRefund, v.ID)
			if err != nil {
				return err
			}
			if ok {
				if _, _, err := refreshLevel(tx, v.UserID, resolveSettings(tx).LevelThresholds); err != nil {
					return err
				}
				result.Refunded = v.PointsUsed
			}
		}

		if err := tx.Delete(&models.Voucher{}, "id = ?", v.ID).Error; err != nil {
			return fmt.Errorf("delete voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to delete voucher", err)
	}

	if result.Refunded > 0 {
		metrics.VoucherRefunds.Inc()
		s.leaderboard.Invalidate()
	}
	logging.Ctx(ctx).Info().
		Str("voucher_id", voucherID).
		Str("user_id", v.UserID).
		Int("refunded", result.Refunded).
		Msg("Voucher deleted")
	return &result, nil
}

type VoucherStatus string

const (
	VoucherStatusRedeemed VoucherStatus = "redeemed"
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusExpired  VoucherStatus = "expired"
)

type VoucherStats struct {
	TotalVouchers   int64 `json:"totalVouchers"`
	TotalValue      int64 `json:"totalValue"`
	TotalPointsUsed int64 `json:"totalPointsUsed"`
	RedeemedCount   int64 `json:"redeemedCount"`
}

// AdminList lists vouchers with their owners, optionally filtered by status.
func (s *VoucherService) AdminList(ctx context.Context, status VoucherStatus) ([]models.Voucher, VoucherStats, error) {
	tx := s.db.WithContext(ctx)
	now := s.now()

	q := tx.Model(&models.Voucher{})
	switch status {
	case "":
	case VoucherStatusRedeemed:
		q = q.Where("is_redeemed = ?", true)
	case VoucherStatusActive:
		q = q.Where("is_redeemed = ? AND expires_at > ?", false, now)
	case VoucherStatusExpired:
		q = q.Where("expires_at < ?", now)
	default:
		return nil, VoucherStats{}, apperror.ValidationFailed("status", "status must be one of: redeemed, active, expired")
	}

	var vouchers []models.Voucher
	if err := q.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email")
	}).Preload("Template").Order("created_at DESC").Find(&vouchers).Error; err != nil {
		return nil, VoucherStats{}, apperror.Internal("failed to load vouchers", err)
	}

	var stats VoucherStats
	if err := tx.Model(&models.Voucher{}).
		Select("COUNT(*) AS total_vouchers, COALESCE(SUM(nominal), 0) AS total_value, COALESCE(SUM(points_used), 0) AS total_points_used").
		Scan(&stats).Error; err != nil {
		return nil, VoucherStats{}, apperror.Internal("failed to aggregate vouchers", err)
	}
	if err := tx.Model(&models.Voucher{}).Where("is_redeemed = ?", true).Count(&stats.RedeemedCount).Error; err != nil {
		return nil, VoucherStats{}, apperror.Internal("failed to count vouchers", err)
	}
	return vouchers, stats, nil
}

type AdminVoucherInput struct {
	UserID       string     `json:"userId" validate:"required"`
	VoucherType  string     `json:"voucherType" validate:"required"`
	Nominal      int        `json:"nominal" validate:"gt=0"`
	PointsUsed   int        `json:"pointsUsed" validate:"gte=0"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	DeductPoints bool       `json:"deductPoints"`
}

// AdminCreate issues a voucher to a user, optionally charging their points.
func (s *VoucherService) AdminCreate(ctx context.Context, in AdminVoucherInput) (*models.Voucher, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	var voucher models.Voucher
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := resolveSettings(tx)

		var user models.User
		if err := tx.Select("id", "points").Where("id = ?", in.UserID).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user", in.UserID)
			}
			return fmt.Errorf("load user: %w", err)
		}

		code, err := s.uniqueCode(tx)
		if err != nil {
			return err
		}
		expires := s.now().AddDate(0, 0, settings.VoucherConfig.ExpiryDays)
		if in.ExpiresAt != nil {
			expires = *in.ExpiresAt
		}
		voucher = models.Voucher{
			UserID:      in.UserID,
			VoucherType: in.VoucherType,
			VoucherCode: code,
			Nominal:     in.Nominal,
			PointsUsed:  in.PointsUsed,
			ExpiresAt:   expires,
		}
		if err := tx.Create(&voucher).Error; err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}

		if in.DeductPoints && in.PointsUsed > 0 {
			ok, err := deductPoints(tx, in.UserID, in.PointsUsed, models.PointSourceVoucher, voucher.ID)
			if err != nil {
				return err
			}
			if !ok {
				return shortfall(in.PointsUsed, user.Points)
			}
			if _, _, err := refreshLevel(tx, in.UserID, settings.LevelThresholds); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to create voucher", err)
	}

	metrics.VouchersRedeemed.WithLabelValues("admin").Inc()
	if in.DeductPoints {
		s.leaderboard.Invalidate()
	}
	logging.Ctx(ctx).Info().Str("user_id", in.UserID).Str("code", voucher.VoucherCode).Msg("Voucher issued by admin")
	return &voucher, nil
}

type AdminVoucherUpdate struct {
	Nominal    *int       `json:"nominal" validate:"omitempty,gt=0"`
	PointsUsed *int       `json:"pointsUsed" validate:"omitempty,gte=0"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	IsRedeemed *bool      `json:"isRedeemed"`
}

// AdminUpdate edits a voucher. Admins may mark expired vouchers redeemed.
func (s *VoucherService) AdminUpdate(ctx context.Context, id string, in AdminVoucherUpdate) (*models.Voucher, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)
	var v models.Voucher
	if err := tx.Where("id = ?", id).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("voucher", id)
		}
		return nil, apperror.Internal("failed to load voucher", err)
	}

	updates := map[string]any{}
	if in.Nominal != nil {
		updates["nominal"] = *in.Nominal
	}
	if in.PointsUsed != nil {
		updates["points_used"] = *in.PointsUsed
	}
	if in.ExpiresAt != nil {
		updates["expires_at"] = *in.ExpiresAt
	}
	if in.IsRedeemed != nil && *in.IsRedeemed != v.IsRedeemed {
		updates["is_redeemed"] = *in.IsRedeemed
		if *in.IsRedeemed {
			updates["redeemed_at"] = s.now()
		} else {
			updates["redeemed_at"] = nil
		}
	}
	if len(updates) > 0 {
		if err := tx.Model(&v).Updates(updates).Error; err != nil {
			return nil, apperror.Internal("failed to update voucher", err)
		}
	}
	if err := tx.Where("id = ?", id).Take(&v).Error; err != nil {
		return nil, apperror.Internal("failed to reload voucher", err)
	}
	return &v, nil
}
