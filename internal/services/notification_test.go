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

func TestFormatRupiah(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		50:      "50",
		1000:    "1.000",
		10000:   "10.000",
		1234567: "1.234.567",
		-5000:   "-5.000",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatRupiah(in))
	}
}

func TestNotificationInbox(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewNotificationService(gdb)
	ctx := context.Background()

	user := testutil.CreateUser(t, gdb, "inbox@example.com")
	other := testutil.CreateUser(t, gdb, "other@example.com")

	svc.PointsEarned(ctx, user.ID, 20, "setoran sampah")
	svc.LevelUp(ctx, user.ID, models.LevelSilver)
	svc.TreeGrown(ctx, other.ID, 1)

	list, unread, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.EqualValues(t, 2, unread)

	require.NoError(t, svc.MarkRead(ctx, user.ID, list[0].ID))
	_, unread, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	// another user's notification is invisible
	otherList, _, err := svc.List(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, otherList, 1)
	assert.ErrorIs(t, svc.MarkRead(ctx, user.ID, otherList[0].ID), apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, user.ID, otherList[0].ID), apperror.ErrNotFound)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))
	_, unread, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, svc.Delete(ctx, user.ID, list[1].ID))
	list, _, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNotifyNilService(t *testing.T) {
	var svc *NotificationService
	assert.NotPanics(t, func() {
		svc.PointsEarned(context.Background(), "u", 1, "x")
	})
}

func TestAnnounce(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewNotificationService(gdb)
	ctx := context.Background()

	a := testutil.CreateUser(t, gdb, "a@example.com")
	testutil.CreateUser(t, gdb, "b@example.com")
	testutil.CreateUser(t, gdb, "root@example.com", testutil.WithRole(models.RoleAdmin))

	sent, err := svc.Announce(ctx, "Libur <b>Nasional</b>", "Bank sampah tutup besok.", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	sent, err = svc.Announce(ctx, "Khusus", "Hanya untukmu", []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	_, err = svc.Announce(ctx, "  ", "body", nil)
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "title", apperror.Field(err))

	_, err = svc.Announce(ctx, "Title", "body", []string{"ghost"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	list, total, stats, err := svc.AdminList(ctx, string(models.NotificationAdminAnnouncement), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 3)
	require.NotNil(t, list[0].User)
	assert.Equal(t, []TypeCount{{Type: models.NotificationAdminAnnouncement, Count: 3}}, stats)

	var first models.Notification
	require.NoError(t, gdb.Where("title LIKE ?", "Libur%").First(&first).Error)
	assert.Equal(t, "Libur Nasional", first.Title)

	_, _, _, err = svc.AdminList(ctx, "BOGUS", 10, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
