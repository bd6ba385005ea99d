package services

import (
	"context"
	"fmt"
	"strings"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/utils"

	"gorm.io/gorm"
)

// NotificationListLimit caps the inbox listing.
const NotificationListLimit = 50

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(gdb *gorm.DB) *NotificationService {
	return &NotificationService{db: gdb}
}

// Notify stores a notification. Failures are logged and swallowed so that
// they never fail the operation that triggered them.
func (s *NotificationService) Notify(ctx context.Context, userID string, typ models.NotificationType, title, message, actionURL string) {
	if s == nil {
		return
	}
	n := models.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Str("type", string(typ)).Msg("Failed to create notification")
	}
}

func (s *NotificationService) PointsEarned(ctx context.Context, userID string, points int, source string) {
	s.Notify(ctx, userID, models.NotificationPointsEarned,
		fmt.Sprintf("+%d Poin Diperoleh! 🎉", points),
		fmt.Sprintf("Anda mendapatkan %d poin dari %s.", points, source),
		"/dashboard")
}

func (s *NotificationService) LevelUp(ctx context.Context, userID string, level models.Level) {
	s.Notify(ctx, userID, models.NotificationLevelUp,
		"Naik Level! "+level.Emoji(),
		fmt.Sprintf("Selamat! Anda sekarang berada di level %s.", level),
		"/profile")
}

func (s *NotificationService) VoucherRedeemed(ctx context.Context, userID, name string, nominal int) {
	s.Notify(ctx, userID, models.NotificationVoucherRedeemed,
		"Voucher Berhasil Ditukar! 🎁",
		fmt.Sprintf("Anda telah menukarkan voucher %s senilai Rp %s.", name, formatRupiah(nominal)),
		"/voucher")
}

func (s *NotificationService) TreeGrown(ctx context.Context, userID string, treesGrown int) {
	s.Notify(ctx, userID, models.NotificationTreeGrown,
		"Pohon Berhasil Ditanam! 🌳",
		fmt.Sprintf("Selamat! Anda telah menanam pohon ke-%d. Teruslah berkontribusi untuk bumi!", treesGrown),
		"/tree")
}

func (s *NotificationService) QuizCompleted(ctx context.Context, userID string, correct bool, points int) {
	if correct {
		s.Notify(ctx, userID, models.NotificationQuizCompleted,
			"Jawaban Benar! ✅",
			fmt.Sprintf("Hebat! Anda mendapatkan %d poin dari kuis.", points),
			"/education")
		return
	}
	s.Notify(ctx, userID, models.NotificationQuizCompleted,
		"Kuis Selesai 📝",
		"Teruslah belajar untuk meningkatkan pengetahuan lingkungan Anda.",
		"/education")
}

func (s *NotificationService) Welcome(ctx context.Context, userID, name string) {
	s.Notify(ctx, userID, models.NotificationSystem,
		"Selamat Datang di Greentera! 🌱",
		fmt.Sprintf("Halo %s, mulai setor sampah untuk mendapatkan poin dan menumbuhkan pohonmu.", name),
		"/dashboard")
}

// formatRupiah groups thousands with dots, e.g. 10000 -> "10.000".
func formatRupiah(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// List returns the latest notifications and the unread count.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, int64, error) {
	tx := s.db.WithContext(ctx)
	var list []models.Notification
	if err := tx.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(NotificationListLimit).
		Find(&list).Error; err != nil {
		return nil, 0, apperror.Internal("failed to load notifications", err)
	}
	var unread int64
	if err := tx.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, 0, apperror.Internal("failed to count notifications", err)
	}
	return list, unread, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return apperror.Internal("failed to update notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("notification", id)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return apperror.Internal("failed to update notifications", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return apperror.Internal("failed to delete notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("notification", id)
	}
	return nil
}

// TypeCount is one row of the per-type notification statistics.
type TypeCount struct {
	Type  models.NotificationType `json:"type"`
	Count int64                   `json:"count"`
}

// AdminList pages through every notification, optionally filtered by type.
func (s *NotificationService) AdminList(ctx context.Context, typ string, limit, offset int) ([]models.Notification, int64, []TypeCount, error) {
	tx := s.db.WithContext(ctx)
	q := tx.Model(&models.Notification{})
	if typ != "" {
		if !models.NotificationType(typ).Valid() {
			return nil, 0, nil, apperror.ValidationFailed("type", "unknown notification type "+typ)
		}
		q = q.Where("type = ?", typ)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to count notifications", err)
	}
	var list []models.Notification
	if err := q.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "email")
	}).Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to load notifications", err)
	}

	var stats []TypeCount
	if err := tx.Model(&models.Notification{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&stats).Error; err != nil {
		return nil, 0, nil, apperror.Internal("failed to aggregate notifications", err)
	}
	return list, total, stats, nil
}

// Announce sends an admin announcement to the given users, or to every
// USER account when targets is empty. Returns the number sent.
func (s *NotificationService) Announce(ctx context.Context, title, message string, targets []string) (int, error) {
	title = strings.TrimSpace(utils.SanitizeText(title))
	message = strings.TrimSpace(utils.SanitizeText(message))
	if title == "" {
		return 0, apperror.ValidationFailed("title", "title is required")
	}
	if message == "" {
		return 0, apperror.ValidationFailed("message", "message is required")
	}

	tx := s.db.WithContext(ctx)
	var ids []string
	q := tx.Model(&models.User{})
	if len(targets) > 0 {
		q = q.Where("id IN ?", targets)
	} else {
		q = q.Where("role = ?", models.RoleUser)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return 0, apperror.Internal("failed to load recipients", err)
	}
	if len(ids) == 0 {
		return 0, apperror.ValidationFailed("targetUserIds", "no recipients found")
	}

	rows := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.Notification{
			UserID:  id,
			Type:    models.NotificationAdminAnnouncement,
			Title:   title,
			Message: message,
		})
	}
	if err := tx.CreateInBatches(rows, 100).Error; err != nil {
		return 0, apperror.Internal("failed to send announcement", err)
	}
	logging.Ctx(ctx).Info().Int("recipients", len(rows)).Str("title", title).Msg("Announcement sent")
	return len(rows), nil
}
