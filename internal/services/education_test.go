package services

import (
	"context"
	"testing"
	"time"

	"greentera/internal/apperror"
	"greentera/internal/models"
	"greentera/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newEducationService(gdb *gorm.DB) *EducationService {
	svc := NewEducationService(gdb, NewNotificationService(gdb), NewLeaderboardService(gdb, time.Minute))
	svc.shuffle = func([]models.EducationQuiz) {}
	return svc
}

func createQuiz(t *testing.T, svc *EducationService, question string, reward int) *models.EducationQuiz {
	t.Helper()
	q, err := svc.CreateQuiz(context.Background(), QuizInput{
		Question:      question,
		Options:       []string{"Organik", "Plastik", "Logam"},
		CorrectAnswer: "Plastik",
		PointsReward:  reward,
		Category:      "recycling",
	})
	require.NoError(t, err)
	return q
}

func TestArticles(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := newEducationService(gdb)
	ctx := context.Background()

	a, err := svc.CreateArticle(ctx, ArticleInput{
		Title:    "Memilah Sampah",
		Content:  "# Judul\n\nPisahkan **plastik**.<script>alert(1)</script>",
		Category: "recycling",
	})
	require.NoError(t, err)
	_, err = svc.CreateArticle(ctx, ArticleInput{Title: "Kompos", Content: "Kompos itu mudah", Category: "composting"})
	require.NoError(t, err)

	got, err := svc.Article(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, got.HTML, "<strong>plastik</strong>")
	assert.NotContains(t, got.HTML, "<script>")

	list, err := svc.Articles(ctx, "recycling", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Memilah Sampah", list[0].Title)

	all, err := svc.Articles(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.CreateArticle(ctx, ArticleInput{Title: "No", Content: "x", Category: "c"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	require.NoError(t, svc.DeleteArticle(ctx, a.ID))
	_, err = svc.Article(ctx, a.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteArticle(ctx, a.ID), apperror.ErrNotFound)
}

func TestQuizAnswerCorrect(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := newEducationService(gdb)
	ctx := context.Background()

	user := testutil.CreateUser(t, gdb, "quiz@example.com", testutil.WithPoints(490))
	q := createQuiz(t, svc, "Botol air mineral termasuk?", 15)

	res, err := svc.Answer(ctx, user.ID, QuizAnswer{QuizID: q.ID, Answer: " plastik "})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 15, res.PointsEarned)

	stored := testutil.ReloadUser(t, gdb, user.ID)
	assert.Equal(t, 505, stored.Points)
	assert.Equal(t, models.LevelSilver, stored.Level)

	_, err = svc.Answer(ctx, user.ID, QuizAnswer{QuizID: q.ID, Answer: "Plastik"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 505, testutil.ReloadUser(t, gdb, user.ID).Points)

	_, err = svc.Answer(ctx, user.ID, QuizAnswer{QuizID: "missing", Answer: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestQuizAnswerWrong(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := newEducationService(gdb)

	user := testutil.CreateUser(t, gdb, "wrong@example.com", testutil.WithPoints(10))
	q := createQuiz(t, svc, "Kaleng termasuk?", 10)

	res, err := svc.Answer(context.Background(), user.ID, QuizAnswer{QuizID: q.ID, Answer: "Organik"})
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, "Plastik", res.CorrectAnswer)
	assert.Zero(t, res.PointsEarned)
	assert.Equal(t, 10, testutil.ReloadUser(t, gdb, user.ID).Points)

	var attempts int64
	gdb.Model(&models.QuizAttempt{}).Where("user_id = ?", user.ID).Count(&attempts)
	assert.EqualValues(t, 1, attempts)
}

func TestPendingQuizzes(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := newEducationService(gdb)
	ctx := context.Background()

	user := testutil.CreateUser(t, gdb, "pending@example.com")
	first := createQuiz(t, svc, "Pertanyaan pertama?", 10)
	createQuiz(t, svc, "Pertanyaan kedua?", 10)
	createQuiz(t, svc, "Pertanyaan ketiga?", 10)

	_, err := svc.Answer(ctx, user.ID, QuizAnswer{QuizID: first.ID, Answer: "Logam"})
	require.NoError(t, err)

	pending, err := svc.PendingQuizzes(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	for _, q := range pending {
		assert.NotEqual(t, first.ID, q.ID)
		assert.Empty(t, q.CorrectAnswer)
	}

	one, err := svc.PendingQuizzes(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestQuizAdmin(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := newEducationService(gdb)
	ctx := context.Background()

	_, err := svc.CreateQuiz(ctx, QuizInput{
		Question:      "Mana yang organik?",
		Options:       []string{"Daun", "Kaca"},
		CorrectAnswer: "Besi",
	})
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "correctAnswer", apperror.Field(err))

	q, err := svc.CreateQuiz(ctx, QuizInput{
		Question:      "Mana yang organik?",
		Options:       []string{"Daun", "Kaca"},
		CorrectAnswer: "Daun",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, q.PointsReward)

	updated, err := svc.UpdateQuiz(ctx, q.ID, QuizInput{
		Question:      "Mana yang anorganik?",
		Options:       []string{"Daun", "Kaca"},
		CorrectAnswer: "Kaca",
		PointsReward:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kaca", updated.CorrectAnswer)

	list, err := svc.AdminQuizzes(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kaca", list[0].CorrectAnswer)
	assert.Equal(t, []string{"Daun", "Kaca"}, []string(list[0].Options))

	require.NoError(t, svc.DeleteQuiz(ctx, q.ID))
	assert.ErrorIs(t, svc.DeleteQuiz(ctx, q.ID), apperror.ErrNotFound)
}
