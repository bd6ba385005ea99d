package services

import (
	"context"
	"fmt"

	"greentera/internal/apperror"
	"greentera/internal/metrics"
	"greentera/internal/models"

	"gorm.io/gorm"
)

// addPoints credits (or, for a negative amount, debits without a guard)
// the user's balance and writes the matching ledger line. Must run inside
// the caller's transaction. Returns false when the user does not exist.
func addPoints(tx *gorm.DB, userID string, amount int, source models.PointSource, ref string) (bool, error) {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("points", gorm.Expr("points + ?", amount))
	if res.Error != nil {
		return false, fmt.Errorf("update points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := writePointLog(tx, userID, amount, source, ref); err != nil {
		return false, err
	}
	return true, nil
}

// deductPoints debits cost only if the balance covers it. Returns false when
// the balance was insufficient (or the user is gone).
func deductPoints(tx *gorm.DB, userID string, cost int, source models.PointSource, ref string) (bool, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND points >= ?", userID, cost).
		UpdateColumn("points", gorm.Expr("points - ?", cost))
	if res.Error != nil {
		return false, fmt.Errorf("deduct points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := writePointLog(tx, userID, -cost, source, ref); err != nil {
		return false, err
	}
	return true, nil
}

func writePointLog(tx *gorm.DB, userID string, amount int, source models.PointSource, ref string) error {
	entry := models.PointLog{
		UserID:    userID,
		Amount:    amount,
		Source:    source,
		Reference: ref,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write point log: %w", err)
	}
	if amount > 0 {
		metrics.PointsAwarded.WithLabelValues(string(source)).Add(float64(amount))
	}
	return nil
}

// refreshLevel recomputes the level from the stored points and writes it
// back when it changed.
func refreshLevel(tx *gorm.DB, userID string, t LevelThresholds) (before, after models.Level, err error) {
	var u models.User
	if err = tx.Select("id", "points", "level").Where("id = ?", userID).Take(&u).Error; err != nil {
		return "", "", fmt.Errorf("reload user: %w", err)
	}
	after = LevelFor(u.Points, t)
	if after != u.Level {
		if err = tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("level", after).Error; err != nil {
			return "", "", fmt.Errorf("update level: %w", err)
		}
	}
	return u.Level, after, nil
}

// currentPoints reads the stored balance.
func currentPoints(tx *gorm.DB, userID string) (int, error) {
	var points int
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Select("points").Scan(&points).Error; err != nil {
		return 0, fmt.Errorf("read points: %w", err)
	}
	return points, nil
}

// shortfall builds the rejection for a balance that does not cover cost.
func shortfall(cost, have int) error {
	return apperror.Rejected("not enough points: need %d, have %d (short %d)", cost, have, cost-have)
}

type PointsService struct {
	db *gorm.DB
}

func NewPointsService(gdb *gorm.DB) *PointsService {
	return &PointsService{db: gdb}
}

// History returns a page of the user's ledger, newest first, and the total
// number of entries.
func (s *PointsService) History(ctx context.Context, userID string, limit, offset int) ([]models.PointLog, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.PointLog{}).Where("user_id = ?", userID)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, apperror.Internal("failed to count point history", err)
	}
	var logs []models.PointLog
	if err := tx.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, apperror.Internal("failed to load point history", err)
	}
	return logs, total, nil
}
