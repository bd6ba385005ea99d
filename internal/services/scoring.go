package services

import (
	"math"
	"time"

	"greentera/internal/models"
)

// XPMultiplier converts earned points into eco XP.
const XPMultiplier = 2

// Score returns the points and eco XP for depositing weightKg of category.
// Unknown categories and non-positive weights score zero.
func Score(category models.WasteCategory, weightKg float64, table PointsPerKg) (points, xp int) {
	if weightKg <= 0 {
		return 0, 0
	}
	points = int(math.Round(weightKg * table.For(category)))
	return points, points * XPMultiplier
}

// Stage thresholds in eco XP. Not configurable.
const (
	SproutXP = 200
	SmallXP  = 400
	MediumXP = 600
	LargeXP  = 800
)

// LevelFor maps a points balance onto a level using the thresholds.
func LevelFor(points int, t LevelThresholds) models.Level {
	switch {
	case points >= t.Gold:
		return models.LevelGold
	case points >= t.Silver:
		return models.LevelSilver
	default:
		return models.LevelBronze
	}
}

// StageFor returns the tree stage for an eco XP total.
func StageFor(xp int) models.TreeStage {
	switch {
	case xp >= LargeXP:
		return models.StageLarge
	case xp >= MediumXP:
		return models.StageMedium
	case xp >= SmallXP:
		return models.StageSmall
	case xp >= SproutXP:
		return models.StageSprout
	default:
		return models.StageSeed
	}
}

// NextStreak returns the deposit streak after a deposit made at now.
// Days are compared at midnight in now's location.
func NextStreak(last *time.Time, now time.Time, current int) int {
	if last == nil {
		return 1
	}
	switch diff := daysBetween(*last, now); {
	case diff <= 0:
		if current < 1 {
			return 1
		}
		return current
	case diff == 1:
		return current + 1
	default:
		return 1
	}
}

func daysBetween(from, to time.Time) int {
	loc := to.Location()
	a := startOfDay(from.In(loc))
	b := startOfDay(to)
	// rounding absorbs 23h/25h days around DST changes
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// getTodayRange returns [midnight today, midnight tomorrow) in local time.
func getTodayRange(now time.Time) (time.Time, time.Time) {
	start := startOfDay(now)
	return start, start.AddDate(0, 0, 1)
}

func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
