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

	"gorm.io/gorm"
)

// TreeStatus describes the user's tree and whether it can be claimed.
type TreeStatus struct {
	EcoXP            int              `json:"ecoXp"`
	TreeStage        models.TreeStage `json:"treeStage"`
	TreesGrown       int              `json:"treesGrown"`
	CanClaim         bool             `json:"canClaim"`
	ClaimXPThreshold int              `json:"claimXpThreshold"`
	BonusPoints      int              `json:"bonusPoints"`
	Progress         int              `json:"progress"` // percent towards the claim threshold
}

type ClaimStats struct {
	Points     int              `json:"points"`
	TreesGrown int              `json:"treesGrown"`
	EcoXP      int              `json:"ecoXp"`
	TreeStage  models.TreeStage `json:"treeStage"`
	Level      models.Level     `json:"level"`
}

type ClaimResult struct {
	BonusPoints int
	NewStats    ClaimStats
}

type TreeService struct {
	db            *gorm.DB
	notifications *NotificationService
	leaderboard   *LeaderboardService
}

func NewTreeService(gdb *gorm.DB, n *NotificationService, lb *LeaderboardService) *TreeService {
	return &TreeService{db: gdb, notifications: n, leaderboard: lb}
}

func canClaim(xp int, stage models.TreeStage, threshold int) bool {
	return xp >= threshold && stage != models.StageSeed
}

func (s *TreeService) Status(ctx context.Context, userID string) (*TreeStatus, error) {
	tx := s.db.WithContext(ctx)
	var u models.User
	if err := tx.Select("id", "eco_xp", "tree_stage", "trees_grown").Where("id = ?", userID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, apperror.Internal("failed to load user", err)
	}
	cfg := resolveSettings(tx).EcoTreeConfig

	progress := u.EcoXP * 100 / cfg.ClaimXPThreshold
	if progress > 100 {
		progress = 100
	}
	return &TreeStatus{
		EcoXP:            u.EcoXP,
		TreeStage:        u.TreeStage,
		TreesGrown:       u.TreesGrown,
		CanClaim:         canClaim(u.EcoXP, u.TreeStage, cfg.ClaimXPThreshold),
		ClaimXPThreshold: cfg.ClaimXPThreshold,
		BonusPoints:      cfg.BonusPoints,
		Progress:         progress,
	}, nil
}

// Claim harvests a grown tree: eco XP and stage reset, the tree counter
// and points go up, and the level is recomputed.
func (s *TreeService) Claim(ctx context.Context, userID string) (*ClaimResult, error) {
	var (
		result    ClaimResult
		prevLevel models.Level
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings := resolveSettings(tx)
		cfg := settings.EcoTreeConfig

		res := tx.Model(&models.User{}).
			Where("id = ? AND eco_xp >= ? AND tree_stage <> ?", userID, cfg.ClaimXPThreshold, models.StageSeed).
			UpdateColumns(map[string]any{
				"eco_xp":      0,
				"tree_stage":  models.StageSeed,
				"trees_grown": gorm.Expr("trees_grown + ?", 1),
				"points":      gorm.Expr("points + ?", cfg.BonusPoints),
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("claim tree: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return claimRejection(tx, userID, cfg.ClaimXPThreshold)
		}
		if err := writePointLog(tx, userID, cfg.BonusPoints, models.PointSourceTreeBonus, ""); err != nil {
			return err
		}

		before, after, err := refreshLevel(tx, userID, settings.LevelThresholds)
		if err != nil {
			return err
		}
		prevLevel = before

		var u models.User
		if err := tx.Where("id = ?", userID).Take(&u).Error; err != nil {
			return fmt.Errorf("reload user: %w", err)
		}
		result = ClaimResult{
			BonusPoints: cfg.BonusPoints,
			NewStats: ClaimStats{
				Points:     u.Points,
				TreesGrown: u.TreesGrown,
				EcoXP:      u.EcoXP,
				TreeStage:  u.TreeStage,
				Level:      after,
			},
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to claim tree", err)
	}

	metrics.TreeClaims.Inc()
	logging.Ctx(ctx).Info().Str("user_id", userID).Int("trees_grown", result.NewStats.TreesGrown).Msg("Tree claimed")

	s.leaderboard.Invalidate()
	s.notifications.TreeGrown(ctx, userID, result.NewStats.TreesGrown)
	if result.NewStats.Level != prevLevel {
		s.notifications.LevelUp(ctx, userID, result.NewStats.Level)
	}
	return &result, nil
}

// claimRejection explains why the conditional claim update matched nothing.
func claimRejection(tx *gorm.DB, userID string, threshold int) error {
	var u models.User
	if err := tx.Select("id", "eco_xp", "tree_stage").Where("id = ?", userID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("load user: %w", err)
	}
	if u.EcoXP < threshold {
		return apperror.Rejected("need %d eco XP, have %d", threshold, u.EcoXP)
	}
	return apperror.Rejected("tree is still a seed: need %d eco XP and a grown tree, have %d", threshold, u.EcoXP)
}
