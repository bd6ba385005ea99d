package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/metrics"
	"greentera/internal/models"
	"greentera/internal/validation"

	"gorm.io/gorm"
)

// MinDepositKg is the smallest accepted deposit weight.
const MinDepositKg = 0.1

type DepositInput struct {
	WasteType  models.WasteCategory `json:"wasteType" validate:"required,wastecategory"`
	Amount     float64              `json:"amount" validate:"required,gte=0.1"`
	ScanMethod models.ScanMethod    `json:"scanMethod" validate:"omitempty,scanmethod"`
}

// UserStats is the snapshot of a user's counters after a deposit.
type UserStats struct {
	Points     int              `json:"points"`
	TotalWaste float64          `json:"totalWaste"`
	EcoXP      int              `json:"ecoXp"`
	Level      models.Level     `json:"level"`
	TreeStage  models.TreeStage `json:"treeStage"`
	Streak     int              `json:"streak"`
}

type DepositResult struct {
	Deposit  models.WasteDeposit
	NewStats UserStats
}

type DepositService struct {
	db            *gorm.DB
	notifications *NotificationService
	leaderboard   *LeaderboardService
	now           func() time.Time
}

func NewDepositService(gdb *gorm.DB, n *NotificationService, lb *LeaderboardService) *DepositService {
	return &DepositService{db: gdb, notifications: n, leaderboard: lb, now: time.Now}
}

// Deposit records a waste deposit and applies its points, eco XP, level,
// tree stage and streak to the user in a single transaction.
func (s *DepositService) Deposit(ctx context.Context, userID string, in DepositInput) (*DepositResult, error) {
	if in.ScanMethod == "" {
		in.ScanMethod = models.ScanManual
	}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		result    DepositResult
		prevLevel models.Level
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := resolveSettings(tx)
		points, xp := Score(in.WasteType, in.Amount, settings.PointsPerKg)

		var before models.User
		if err := tx.Select("id", "level", "streak", "last_deposit_date").
			Where("id = ?", userID).Take(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user", userID)
			}
			return fmt.Errorf("load user: %w", err)
		}
		prevLevel = before.Level

		res := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(map[string]any{
			"points":      gorm.Expr("points + ?", points),
			"total_waste": gorm.Expr("total_waste + ?", in.Amount),
			"eco_xp":      gorm.Expr("eco_xp + ?", xp),
		})
		if res.Error != nil {
			return fmt.Errorf("increment counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user", userID)
		}

		var after models.User
		if err := tx.Where("id = ?", userID).Take(&after).Error; err != nil {
			return fmt.Errorf("reload user: %w", err)
		}

		level := LevelFor(after.Points, settings.LevelThresholds)
		stage := StageFor(after.EcoXP)
		streak := NextStreak(before.LastDepositDate, now, before.Streak)

		if err := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(map[string]any{
			"level":             level,
			"tree_stage":        stage,
			"streak":            streak,
			"last_deposit_date": now,
			"updated_at":        now,
		}).Error; err != nil {
			return fmt.Errorf("update progression: %w", err)
		}

		deposit := models.WasteDeposit{
			UserID:       userID,
			WasteType:    in.WasteType,
			Amount:       in.Amount,
			PointsEarned: points,
			EcoXPEarned:  xp,
			ScanMethod:   in.ScanMethod,
			DepositDate:  now,
		}
		if err := tx.Create(&deposit).Error; err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}
		if err := writePointLog(tx, userID, points, models.PointSourceDeposit, deposit.ID); err != nil {
			return err
		}

		result = DepositResult{
			Deposit: deposit,
			NewStats: UserStats{
				Points:     after.Points,
				TotalWaste: after.TotalWaste,
				EcoXP:      after.EcoXP,
				Level:      level,
				TreeStage:  stage,
				Streak:     streak,
			},
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to record deposit", err)
	}

	metrics.DepositsTotal.WithLabelValues(string(in.WasteType), string(in.ScanMethod)).Inc()
	metrics.DepositWeightKg.WithLabelValues(string(in.WasteType)).Add(in.Amount)
	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("waste_type", string(in.WasteType)).
		Float64("amount", in.Amount).
		Int("points", result.Deposit.PointsEarned).
		Msg("Deposit recorded")

	s.leaderboard.Invalidate()
	s.notifications.PointsEarned(ctx, userID, result.Deposit.PointsEarned, "setoran sampah")
	if result.NewStats.Level != prevLevel {
		s.notifications.LevelUp(ctx, userID, result.NewStats.Level)
	}
	return &result, nil
}

// wrapTxError passes AppErrors through and hides everything else behind
// an internal error.
func wrapTxError(msg string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(msg, err)
}

// HistoryTotals aggregates every deposit of a user.
type HistoryTotals struct {
	Count  int64   `json:"count"`
	Weight float64 `json:"weight"`
	Points int64   `json:"points"`
}

// History pages through the user's deposits, newest first.
func (s *DepositService) History(ctx context.Context, userID string, limit, offset int) ([]models.WasteDeposit, HistoryTotals, error) {
	tx := s.db.WithContext(ctx)
	var deposits []models.WasteDeposit
	if err := tx.Where("user_id = ?", userID).
		Order("deposit_date DESC").
		Limit(limit).Offset(offset).
		Find(&deposits).Error; err != nil {
		return nil, HistoryTotals{}, apperror.Internal("failed to load deposits", err)
	}

	var totals HistoryTotals
	if err := tx.Model(&models.WasteDeposit{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS weight, COALESCE(SUM(points_earned), 0) AS points").
		Where("user_id = ?", userID).
		Scan(&totals).Error; err != nil {
		return nil, HistoryTotals{}, apperror.Internal("failed to aggregate deposits", err)
	}
	return deposits, totals, nil
}

// DepositFilter narrows the admin deposit listing.
type DepositFilter struct {
	WasteType models.WasteCategory
	Limit     int
	Offset    int
}

type DepositTypeTotal struct {
	WasteType models.WasteCategory `json:"wasteType"`
	Count     int64                `json:"count"`
	Amount    float64              `json:"amount"`
	Points    int64                `json:"points"`
}

// AdminDeposits lists deposits with owner info and per-type totals.
func (s *DepositService) AdminDeposits(ctx context.Context, f DepositFilter) ([]models.WasteDeposit, int64, []DepositTypeTotal, error) {
	tx := s.db.WithContext(ctx)
	q := tx.Model(&models.WasteDeposit{})
	if f.WasteType != "" {
		if !f.WasteType.Valid() {
			return nil, 0, nil, apperror.ValidationFailed("wasteType", "wasteType must be one of ORGANIC, PLASTIC, METAL, PAPER")
		}
		q = q.Where("waste_type = ?", f.WasteType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to count deposits", err)
	}
	var deposits []models.WasteDeposit
	if err := q.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email")
	}).Order("deposit_date DESC").Limit(f.Limit).Offset(f.Offset).Find(&deposits).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to load deposits", err)
	}

	var totals []DepositTypeTotal
	if err := tx.Model(&models.WasteDeposit{}).
		Select("waste_type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount, COALESCE(SUM(points_earned), 0) AS points").
		Group("waste_type").
		Order("waste_type").
		Scan(&totals).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to group deposits", err)
	}
	return deposits, total, totals, nil
}
