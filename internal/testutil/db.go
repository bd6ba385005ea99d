// Package testutil provides in-memory databases and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"greentera/internal/db"
	"greentera/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh shared-cache in-memory sqlite database named after
// the test and migrates the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and serialises writes
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// UserOption tweaks a fixture user before insert.
type UserOption func(*models.User)

func WithPoints(p int) UserOption       { return func(u *models.User) { u.Points = p } }
func WithEcoXP(xp int) UserOption       { return func(u *models.User) { u.EcoXP = xp } }
func WithRole(r models.Role) UserOption { return func(u *models.User) { u.Role = r } }

func WithStage(s models.TreeStage) UserOption {
	return func(u *models.User) { u.TreeStage = s }
}

func WithLevel(l models.Level) UserOption {
	return func(u *models.User) { u.Level = l }
}

// CreateUser inserts a USER with zero counters unless options say otherwise.
func CreateUser(t *testing.T, gdb *gorm.DB, email string, opts ...UserOption) *models.User {
	t.Helper()
	u := &models.User{
		Name:      strings.Split(email, "@")[0],
		Email:     email,
		Role:      models.RoleUser,
		Level:     models.LevelBronze,
		TreeStage: models.StageSeed,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// ReloadUser reads the user row again.
func ReloadUser(t *testing.T, gdb *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, gdb.First(&u, "id = ?", id).Error)
	return &u
}

// CreateTemplate inserts an active voucher template.
func CreateTemplate(t *testing.T, gdb *gorm.DB, name string, cost, nominal, stock int) *models.VoucherTemplate {
	t.Helper()
	tpl := &models.VoucherTemplate{
		Name:       name,
		Icon:       "🎁",
		Category:   "PULSA",
		Nominal:    nominal,
		PointsCost: cost,
		Stock:      stock,
		IsActive:   true,
	}
	require.NoError(t, gdb.Create(tpl).Error)
	return tpl
}
