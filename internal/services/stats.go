package services

import (
	"context"
	"errors"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/models"

	"gorm.io/gorm"
)

type MonthlyStats struct {
	Deposits int64 `json:"deposits"`
	Points   int64 `json:"points"`
}

type Dashboard struct {
	User              models.User           `json:"user"`
	RecentDeposits    []models.WasteDeposit `json:"recentDeposits"`
	MonthlyStats      MonthlyStats          `json:"monthlyStats"`
	AvailableVouchers int64                 `json:"availableVouchers"`
}

type Overview struct {
	TotalUsers    int64   `json:"totalUsers"`
	TotalDeposits int64   `json:"totalDeposits"`
	TotalWaste    float64 `json:"totalWaste"`
	TotalPoints   int64   `json:"totalPoints"`
	TotalVouchers int64   `json:"totalVouchers"`
	TodayDeposits int64   `json:"todayDeposits"`
}

type WasteByType struct {
	WasteType models.WasteCategory `json:"wasteType"`
	Count     int64                `json:"count"`
	Amount    float64              `json:"amount"`
}

type UsersByLevel struct {
	Level models.Level `json:"level"`
	Count int64        `json:"count"`
}

type AdminStats struct {
	Overview       Overview              `json:"overview"`
	WasteByType    []WasteByType         `json:"wasteByType"`
	UsersByLevel   []UsersByLevel        `json:"usersByLevel"`
	RecentDeposits []models.WasteDeposit `json:"recentDeposits"`
}

type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStatsService(gdb *gorm.DB) *StatsService {
	return &StatsService{db: gdb, now: time.Now}
}

// Dashboard gathers the user's home screen data.
func (s *StatsService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	tx := s.db.WithContext(ctx)

	var d Dashboard
	if err := tx.Where("id = ?", userID).Take(&d.User).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, apperror.Internal("failed to load user", err)
	}

	if err := tx.Where("user_id = ?", userID).
		Order("deposit_date DESC").
		Limit(5).
		Find(&d.RecentDeposits).Error; err != nil {
		return nil, apperror.Internal("failed to load deposits", err)
	}

	if err := tx.Model(&models.WasteDeposit{}).
		Select("COUNT(*) AS deposits, COALESCE(SUM(points_earned), 0) AS points").
		Where("user_id = ? AND deposit_date >= ?", userID, startOfMonth(s.now())).
		Scan(&d.MonthlyStats).Error; err != nil {
		return nil, apperror.Internal("failed to aggregate deposits", err)
	}

	if err := tx.Model(&models.Voucher{}).
		Where("user_id = ? AND is_redeemed = ? AND expires_at > ?", userID, false, s.now()).
		Count(&d.AvailableVouchers).Error; err != nil {
		return nil, apperror.Internal("failed to count vouchers", err)
	}
	return &d, nil
}

// Admin builds the platform-wide statistics page.
func (s *StatsService) Admin(ctx context.Context) (*AdminStats, error) {
	tx := s.db.WithContext(ctx)
	var st AdminStats

	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleUser).Count(&st.Overview.TotalUsers).Error; err != nil {
		return nil, apperror.Internal("failed to count users", err)
	}

	var sums struct {
		Count  int64
		Weight float64
	}
	if err := tx.Model(&models.WasteDeposit{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS weight").
		Scan(&sums).Error; err != nil {
		return nil, apperror.Internal("failed to aggregate deposits", err)
	}
	st.Overview.TotalDeposits = sums.Count
	st.Overview.TotalWaste = sums.Weight

	if err := tx.Model(&models.User{}).
		Select("COALESCE(SUM(points), 0)").
		Where("role = ?", models.RoleUser).
		Scan(&st.Overview.TotalPoints).Error; err != nil {
		return nil, apperror.Internal("failed to sum points", err)
	}

	if err := tx.Model(&models.Voucher{}).Count(&st.Overview.TotalVouchers).Error; err != nil {
		return nil, apperror.Internal("failed to count vouchers", err)
	}

	start, end := getTodayRange(s.now())
	if err := tx.Model(&models.WasteDeposit{}).
		Where("deposit_date >= ? AND deposit_date < ?", start, end).
		Count(&st.Overview.TodayDeposits).Error; err != nil {
		return nil, apperror.Internal("failed to count deposits", err)
	}

	if err := tx.Model(&models.WasteDeposit{}).
		Select("waste_type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("waste_type").
		Order("waste_type").
		Scan(&st.WasteByType).Error; err != nil {
		return nil, apperror.Internal("failed to group deposits", err)
	}

	if err := tx.Model(&models.User{}).
		Select("level, COUNT(*) AS count").
		Where("role = ?", models.RoleUser).
		Group("level").
		Order("level").
		Scan(&st.UsersByLevel).Error; err != nil {
		return nil, apperror.Internal("failed to group users", err)
	}

	if err := tx.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email")
	}).Order("deposit_date DESC").Limit(10).Find(&st.RecentDeposits).Error; err != nil {
		return nil, apperror.Internal("failed to load deposits", err)
	}
	return &st, nil
}
