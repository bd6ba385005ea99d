package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/utils"
	"greentera/internal/validation"

	"gorm.io/gorm"
)

// Article is an education article with its rendered, sanitised HTML.
type Article struct {
	models.EducationArticle
	HTML string `json:"html"`
}

func renderArticle(a models.EducationArticle) Article {
	return Article{EducationArticle: a, HTML: utils.RenderMarkdown(a.Content)}
}

type ArticleInput struct {
	Title    string `json:"title" validate:"required,min=3,max=200"`
	Content  string `json:"content" validate:"required"`
	Summary  string `json:"summary" validate:"max=500"`
	Category string `json:"category" validate:"required,max=50"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

type QuizInput struct {
	Question      string   `json:"question" validate:"required,min=5"`
	Options       []string `json:"options" validate:"required,min=2,max=6,dive,required"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	PointsReward  int      `json:"pointsReward" validate:"gte=0"`
	Category      string   `json:"category" validate:"max=50"`
}

type QuizAnswer struct {
	QuizID string `json:"quizId" validate:"required"`
	Answer string `json:"answer" validate:"required"`
}

type QuizResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
	PointsEarned  int    `json:"pointsEarned"`
	Message       string `json:"message"`
}

const (
	DefaultArticleLimit = 20
	DefaultQuizLimit    = 5
)

type EducationService struct {
	db            *gorm.DB
	notifications *NotificationService
	leaderboard   *LeaderboardService
	shuffle       func([]models.EducationQuiz)
}

func NewEducationService(gdb *gorm.DB, n *NotificationService, lb *LeaderboardService) *EducationService {
	return &EducationService{
		db:            gdb,
		notifications: n,
		leaderboard:   lb,
		shuffle: func(q []models.EducationQuiz) {
			rand.Shuffle(len(q), func(i, j int) { q[i], q[j] = q[j], q[i] })
		},
	}
}

func (s *EducationService) Articles(ctx context.Context, category string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = DefaultArticleLimit
	}
	q := s.db.WithContext(ctx).Model(&models.EducationArticle{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var rows []models.EducationArticle
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, apperror.Internal("failed to load articles", err)
	}
	out := make([]Article, len(rows))
	for i, a := range rows {
		out[i] = renderArticle(a)
	}
	return out, nil
}

func (s *EducationService) Article(ctx context.Context, id string) (*Article, error) {
	var a models.EducationArticle
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("article", id)
		}
		return nil, apperror.Internal("failed to load article", err)
	}
	out := renderArticle(a)
	return &out, nil
}

func (s *EducationService) CreateArticle(ctx context.Context, in ArticleInput) (*models.EducationArticle, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	a := models.EducationArticle{
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		Summary:  in.Summary,
		Category: in.Category,
		ImageURL: in.ImageURL,
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, apperror.Internal("failed to create article", err)
	}
	return &a, nil
}

func (s *EducationService) UpdateArticle(ctx context.Context, id string, in ArticleInput) (*models.EducationArticle, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	var a models.EducationArticle
	if err := tx.Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("article", id)
		}
		return nil, apperror.Internal("failed to load article", err)
	}
	a.Title = strings.TrimSpace(in.Title)
	a.Content = in.Content
	a.Summary = in.Summary
	a.Category = in.Category
	a.ImageURL = in.ImageURL
	if err := tx.Save(&a).Error; err != nil {
		return nil, apperror.Internal("failed to update article", err)
	}
	return &a, nil
}

func (s *EducationService) DeleteArticle(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.EducationArticle{}, "id = ?", id)
	if res.Error != nil {
		return apperror.Internal("failed to delete article", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("article", id)
	}
	return nil
}

// PendingQuizzes returns up to limit quizzes the user has not attempted,
// shuffled and with the answers stripped.
func (s *EducationService) PendingQuizzes(ctx context.Context, userID string, limit int) ([]models.EducationQuiz, error) {
	if limit <= 0 {
		limit = DefaultQuizLimit
	}
	tx := s.db.WithContext(ctx)
	attempted := tx.Model(&models.QuizAttempt{}).Select("quiz_id").Where("user_id = ?", userID)

	var quizzes []models.EducationQuiz
	if err := tx.Where("id NOT IN (?)", attempted).Find(&quizzes).Error; err != nil {
		return nil, apperror.Internal("failed to load quizzes", err)
	}
	s.shuffle(quizzes)
	if len(quizzes) > limit {
		quizzes = quizzes[:limit]
	}
	for i := range quizzes {
		quizzes[i].CorrectAnswer = ""
	}
	return quizzes, nil
}

// Answer records the user's single attempt at a quiz and credits the
// reward when the answer is right.
func (s *EducationService) Answer(ctx context.Context, userID string, in QuizAnswer) (*QuizResult, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	var (
		result    QuizResult
		prevLevel models.Level
		newLevel  models.Level
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quiz models.EducationQuiz
		if err := tx.Where("id = ?", in.QuizID).Take(&quiz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("quiz", in.QuizID)
			}
			return fmt.Errorf("load quiz: %w", err)
		}

		var n int64
		if err := tx.Model(&models.QuizAttempt{}).Where("user_id = ? AND quiz_id = ?", userID, quiz.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("check attempt: %w", err)
		}
		if n > 0 {
			return apperror.Conflict("quiz already answered")
		}

		correct := strings.EqualFold(strings.TrimSpace(in.Answer), strings.TrimSpace(quiz.CorrectAnswer))
		attempt := models.QuizAttempt{UserID: userID, QuizID: quiz.ID, IsCorrect: correct}
		if err := tx.Create(&attempt).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("quiz already answered")
			}
			return fmt.Errorf("create attempt: %w", err)
		}

		result = QuizResult{IsCorrect: correct, CorrectAnswer: quiz.CorrectAnswer}
		if !correct {
			result.Message = "Jawaban kurang tepat. Terus belajar!"
			return nil
		}

		result.PointsEarned = quiz.PointsReward
		result.Message = fmt.Sprintf("Benar! Anda mendapatkan %d poin.", quiz.PointsReward)
		if quiz.PointsReward == 0 {
			return nil
		}
		ok, err := addPoints(tx, userID, quiz.PointsReward, models.PointSourceQuiz, quiz.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("user", userID)
		}
		prevLevel, newLevel, err = refreshLevel(tx, userID, resolveSettings(tx).LevelThresholds)
		return err
	})
	if err != nil {
		return nil, wrapTxError("failed to answer quiz", err)
	}

	logging.Ctx(ctx).Info().Str("user_id", userID).Str("quiz_id", in.QuizID).Bool("correct", result.IsCorrect).Msg("Quiz answered")
	s.notifications.QuizCompleted(ctx, userID, result.IsCorrect, result.PointsEarned)
	if result.PointsEarned > 0 {
		s.leaderboard.Invalidate()
	}
	if newLevel != prevLevel {
		s.notifications.LevelUp(ctx, userID, newLevel)
	}
	return &result, nil
}

func (s *EducationService) AdminQuizzes(ctx context.Context) ([]models.EducationQuiz, error) {
	var list []models.EducationQuiz
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, apperror.Internal("failed to load quizzes", err)
	}
	return list, nil
}

func validateQuiz(in QuizInput) error {
	if err := validation.ValidateStruct(in); err != nil {
		return err
	}
	if !slices.Contains(in.Options, in.CorrectAnswer) {
		return apperror.ValidationFailed("correctAnswer", "correctAnswer must be one of the options")
	}
	return nil
}

func (s *EducationService) CreateQuiz(ctx context.Context, in QuizInput) (*models.EducationQuiz, error) {
	if err := validateQuiz(in); err != nil {
		return nil, err
	}
	q := models.EducationQuiz{
		Question:      in.Question,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		PointsReward:  in.PointsReward,
		Category:      in.Category,
	}
	if q.PointsReward == 0 {
		q.PointsReward = 10
	}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, apperror.Internal("failed to create quiz", err)
	}
	return &q, nil
}

func (s *EducationService) UpdateQuiz(ctx context.Context, id string, in QuizInput) (*models.EducationQuiz, error) {
	if err := validateQuiz(in); err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	var q models.EducationQuiz
	if err := tx.Where("id = ?", id).Take(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("quiz", id)
		}
		return nil, apperror.Internal("failed to load quiz", err)
	}
	q.Question = in.Question
	q.Options = in.Options
	q.CorrectAnswer = in.CorrectAnswer
	q.PointsReward = in.PointsReward
	q.Category = in.Category
	if err := tx.Save(&q).Error; err != nil {
		return nil, apperror.Internal("failed to update quiz", err)
	}
	return &q, nil
}

func (s *EducationService) DeleteQuiz(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.EducationQuiz{}, "id = ?", id)
	if res.Error != nil {
		return apperror.Internal("failed to delete quiz", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("quiz", id)
	}
	return nil
}
