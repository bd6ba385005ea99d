package services

import (
	"context"
	"fmt"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/models"
	"greentera/internal/utils"

	"gorm.io/gorm"
)

type LeaderboardPeriod string

const (
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodAllTime LeaderboardPeriod = "alltime"
)

// Since returns the earliest registration date included in the period,
// or the zero time for all-time.
func (p LeaderboardPeriod) Since(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case PeriodMonthly:
		return now.AddDate(0, 0, -30), true
	case PeriodAllTime:
		return time.Time{}, false
	}
	return time.Time{}, false
}

func (p LeaderboardPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
	leaderboardKeyPrefix    = "leaderboard:"
)

type LeaderboardEntry struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Image      string       `json:"image"`
	Level      models.Level `json:"level"`
	Points     int          `json:"points"`
	TreesGrown int          `json:"treesGrown"`
	TotalWaste float64      `json:"totalWaste"`
	Rank       int          `json:"rank"`
}

type LeaderboardService struct {
	db    *gorm.DB
	cache *utils.TTLCache[[]LeaderboardEntry]
	ttl   time.Duration
	now   func() time.Time
}

func NewLeaderboardService(gdb *gorm.DB, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{
		db:    gdb,
		cache: utils.NewTTLCache[[]LeaderboardEntry](32),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Top returns the ranked USER accounts for the period, served from the
// cache while fresh.
func (s *LeaderboardService) Top(ctx context.Context, period LeaderboardPeriod, limit int) ([]LeaderboardEntry, error) {
	if period == "" {
		period = PeriodAllTime
	}
	if !period.Valid() {
		return nil, apperror.ValidationFailed("period", "period must be one of: weekly, monthly, alltime")
	}
	if limit <= 0 || limit > MaxLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}

	key := fmt.Sprintf("%s%s:%d", leaderboardKeyPrefix, period, limit)
	if entries, ok := s.cache.Get(key); ok {
		return entries, nil
	}

	q := s.db.WithContext(ctx).Model(&models.User{}).
		Select("id", "name", "image", "level", "points", "trees_grown", "total_waste").
		Where("role = ?", models.RoleUser)
	if since, ok := period.Since(s.now()); ok {
		q = q.Where("created_at >= ?", since)
	}

	var users []models.User
	if err := q.Order("points DESC").Order("created_at ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, apperror.Internal("failed to load leaderboard", err)
	}

	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			ID:         u.ID,
			Name:       u.Name,
			Image:      u.Image,
			Level:      u.Level,
			Points:     u.Points,
			TreesGrown: u.TreesGrown,
			TotalWaste: u.TotalWaste,
			Rank:       i + 1,
		}
	}
	if s.ttl > 0 {
		s.cache.Set(key, entries, s.ttl)
	}
	return entries, nil
}

// Invalidate drops every cached ranking. Safe on a nil receiver.
func (s *LeaderboardService) Invalidate() {
	if s == nil {
		return
	}
	s.cache.DeletePrefix(leaderboardKeyPrefix)
}

// Rank returns 1 + the number of USER accounts with more points.
func (s *LeaderboardService) Rank(ctx context.Context, points int) (int64, error) {
	var higher int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND points > ?", models.RoleUser, points).
		Count(&higher).Error; err != nil {
		return 0, apperror.Internal("failed to compute rank", err)
	}
	return higher + 1, nil
}
