package services

import (
	"context"
	"testing"

	"greentera/internal/apperror"
	"greentera/internal/models"
	"greentera/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateCreateDefaults(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewTemplateService(gdb)
	ctx := context.Background()

	tpl, err := svc.Create(ctx, TemplateInput{Name: "  Pulsa 5K ", Nominal: 5000, PointsCost: 50})
	require.NoError(t, err)
	assert.Equal(t, "Pulsa 5K", tpl.Name)
	assert.Equal(t, "🎁", tpl.Icon)
	assert.Equal(t, "PULSA", tpl.Category)
	assert.Equal(t, models.UnlimitedStock, tpl.Stock)
	assert.True(t, tpl.IsActive)

	_, err = svc.Create(ctx, TemplateInput{Name: "Pulsa 5K", Nominal: 1, PointsCost: 1})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	off := false
	zero := 0
	hidden, err := svc.Create(ctx, TemplateInput{Name: "Hidden", Nominal: 1, PointsCost: 1, IsActive: &off, Stock: &zero})
	require.NoError(t, err)

	var stored models.VoucherTemplate
	require.NoError(t, gdb.First(&stored, "id = ?", hidden.ID).Error)
	assert.False(t, stored.IsActive)
	assert.Zero(t, stored.Stock)

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTemplateZeroValuesPersist(t *testing.T) {
	gdb := testutil.NewDB(t)

	tpl := models.VoucherTemplate{Name: "Habis", Nominal: 1000, PointsCost: 10, Stock: 0, IsActive: false}
	require.NoError(t, gdb.Create(&tpl).Error)

	var stored models.VoucherTemplate
	require.NoError(t, gdb.First(&stored, "id = ?", tpl.ID).Error)
	assert.Zero(t, stored.Stock)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.Unlimited())

	user := testutil.CreateUser(t, gdb, "buyer@example.com", testutil.WithPoints(500))
	_, err := newVoucherService(gdb).Redeem(context.Background(), user.ID, RedeemInput{TemplateID: tpl.ID})
	assert.ErrorIs(t, err, apperror.ErrRejected)
	assert.Equal(t, 500, testutil.ReloadUser(t, gdb, user.ID).Points)
}

func TestTemplateCreateValidation(t *testing.T) {
	svc := NewTemplateService(testutil.NewDB(t))
	bad := -2

	tests := []struct {
		name  string
		in    TemplateInput
		field string
	}{
		{"short name", TemplateInput{Name: "x", Nominal: 1, PointsCost: 1}, "name"},
		{"zero cost", TemplateInput{Name: "Free", Nominal: 1}, "pointsCost"},
		{"zero nominal", TemplateInput{Name: "Empty", PointsCost: 1}, "nominal"},
		{"bad stock", TemplateInput{Name: "Stock", Nominal: 1, PointsCost: 1, Stock: &bad}, "stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, apperror.Field(err))
		})
	}
}

func TestTemplateUpdate(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewTemplateService(gdb)
	ctx := context.Background()

	a := testutil.CreateTemplate(t, gdb, "Alpha", 100, 10000, 5)
	testutil.CreateTemplate(t, gdb, "Beta", 200, 20000, 5)

	taken := "Beta"
	_, err := svc.Update(ctx, a.ID, TemplateUpdate{Name: &taken})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	cost := 150
	same := "Alpha"
	updated, err := svc.Update(ctx, a.ID, TemplateUpdate{Name: &same, PointsCost: &cost})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.PointsCost)
	assert.Equal(t, 5, updated.Stock)

	_, err = svc.Update(ctx, "missing", TemplateUpdate{PointsCost: &cost})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestTemplateDelete(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewTemplateService(gdb)
	vouchers := newVoucherService(gdb)
	ctx := context.Background()

	unused := testutil.CreateTemplate(t, gdb, "Unused", 10, 1000, 5)
	deactivated, err := svc.Delete(ctx, unused.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	var n int64
	gdb.Model(&models.VoucherTemplate{}).Where("id = ?", unused.ID).Count(&n)
	assert.Zero(t, n)

	used := testutil.CreateTemplate(t, gdb, "Used", 10, 1000, 5)
	user := testutil.CreateUser(t, gdb, "buyer@example.com", testutil.WithPoints(100))
	_, err = vouchers.Redeem(ctx, user.ID, RedeemInput{TemplateID: used.ID})
	require.NoError(t, err)

	deactivated, err = svc.Delete(ctx, used.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	var stored models.VoucherTemplate
	require.NoError(t, gdb.First(&stored, "id = ?", used.ID).Error)
	assert.False(t, stored.IsActive)

	_, err = svc.Delete(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
