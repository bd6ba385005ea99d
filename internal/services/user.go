package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/models"
	"greentera/internal/utils"
	"greentera/internal/validation"

	"gorm.io/gorm"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Location string `json:"location" validate:"required,min=3,max=200"`
}

type ProfileUpdate struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Location *string `json:"location" validate:"omitempty,min=3,max=200"`
}

// Profile is the user row plus the leaderboard rank.
type Profile struct {
	models.User
	Rank int64 `json:"rank"`
}

// GoogleIdentity is what the OAuth callback learned about the caller.
type GoogleIdentity struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

type UserService struct {
	db            *gorm.DB
	notifications *NotificationService
	leaderboard   *LeaderboardService
	mail          *MailService
}

func NewUserService(gdb *gorm.DB, n *NotificationService, lb *LeaderboardService, mail *MailService) *UserService {
	return &UserService{db: gdb, notifications: n, leaderboard: lb, mail: mail}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) emailTaken(tx *gorm.DB, email, exceptID string) (bool, error) {
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

// Register creates a USER account with zero counters.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Location = strings.TrimSpace(in.Location)
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)
	taken, err := s.emailTaken(tx, in.Email, "")
	if err != nil {
		return nil, apperror.Internal("failed to check email", err)
	}
	if taken {
		return nil, apperror.Conflict("email is already registered")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}
	user := models.User{
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Location:  in.Location,
		Role:      models.RoleUser,
		Level:     models.LevelBronze,
		TreeStage: models.StageSeed,
	}
	if err := tx.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("email is already registered")
		}
		return nil, apperror.Internal("failed to create user", err)
	}

	logging.Ctx(ctx).Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	s.leaderboard.Invalidate()
	s.notifications.Welcome(ctx, user.ID, user.Name)
	s.mail.SendWelcomeEmail(user.Email, user.Name)
	return &user, nil
}

// Authenticate checks an email/password pair. Accounts without a password
// (Google sign-in only) never authenticate here.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, apperror.Internal("failed to load user", err)
	}
	if !user.HasPassword() {
		return nil, apperror.Unauthorized("this account signs in with Google")
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	return &user, nil
}

// LoginWithGoogle finds the account bound to the Google identity or with
// the same email, binding it if needed, and creates one otherwise.
func (s *UserService) LoginWithGoogle(ctx context.Context, id GoogleIdentity) (*models.User, error) {
	id.Email = normalizeEmail(id.Email)
	if id.ID == "" || id.Email == "" {
		return nil, apperror.ValidationFailed("email", "google account has no email")
	}

	var user models.User
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_id = ?", id.ID).Or("email = ?", id.Email).Take(&user).Error
		switch {
		case err == nil:
			if user.GoogleID == "" {
				updates := map[string]any{"google_id": id.ID}
				if user.Image == "" && id.Picture != "" {
					updates["image"] = id.Picture
				}
				return tx.Model(&user).Updates(updates).Error
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			name := strings.TrimSpace(id.Name)
			if name == "" {
				name = strings.Split(id.Email, "@")[0]
			}
			user = models.User{
				Name:     name,
				Email:    id.Email,
				GoogleID: id.ID,
				Image:    id.Picture,
				Role:     models.RoleUser,
			}
			created = true
			return tx.Create(&user).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, apperror.Internal("failed to sign in with google", err)
	}

	if created {
		logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("User registered with Google")
		s.leaderboard.Invalidate()
		s.notifications.Welcome(ctx, user.ID, user.Name)
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, apperror.Internal("failed to load user", err)
	}
	return &user, nil
}

func (s *UserService) Profile(ctx context.Context, id string) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rank, err := s.leaderboard.Rank(ctx, user.Points)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *user, Rank: rank}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		in.Name = &v
	}
	if in.Location != nil {
		v := strings.TrimSpace(*in.Location)
		in.Location = &v
	}
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if len(updates) == 0 {
		return nil, apperror.ValidationFailed("", "nothing to update")
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, apperror.Internal("failed to update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperror.NotFound("user", id)
	}
	if in.Name != nil {
		s.leaderboard.Invalidate()
	}
	return s.Get(ctx, id)
}

type UserFilter struct {
	Search string
	Role   models.Role
	Limit  int
	Offset int
}

// AdminList pages through accounts, newest first.
func (s *UserService) AdminList(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if f.Role != "" {
		if !f.Role.Valid() {
			return nil, 0, apperror.ValidationFailed("role", "role must be USER or ADMIN")
		}
		q = q.Where("role = ?", f.Role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperror.Internal("failed to count users", err)
	}
	var users []models.User
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&users).Error; err != nil {
		return nil, 0, apperror.Internal("failed to load users", err)
	}
	return users, total, nil
}

type UserCounts struct {
	Deposits      int64 `json:"deposits"`
	Vouchers      int64 `json:"vouchers"`
	QuizAttempts  int64 `json:"quizAttempts"`
	Notifications int64 `json:"notifications"`
}

type UserDetail struct {
	models.User
	RecentDeposits []models.WasteDeposit `json:"recentDeposits"`
	Vouchers       []models.Voucher      `json:"vouchers"`
	Counts         UserCounts            `json:"_count"`
}

func (s *UserService) AdminDetail(ctx context.Context, id string) (*UserDetail, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	d := UserDetail{User: *user}

	if err := tx.Where("user_id = ?", id).Order("deposit_date DESC").Limit(10).Find(&d.RecentDeposits).Error; err != nil {
		return nil, apperror.Internal("failed to load deposits", err)
	}
	if err := tx.Preload("Template").Where("user_id = ?", id).Order("created_at DESC").Limit(10).Find(&d.Vouchers).Error; err != nil {
		return nil, apperror.Internal("failed to load vouchers", err)
	}
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.WasteDeposit{}, &d.Counts.Deposits},
		{&models.Voucher{}, &d.Counts.Vouchers},
		{&models.QuizAttempt{}, &d.Counts.QuizAttempts},
		{&models.Notification{}, &d.Counts.Notifications},
	}
	for _, c := range counts {
		if err := tx.Model(c.model).Where("user_id = ?", id).Count(c.dst).Error; err != nil {
			return nil, apperror.Internal("failed to count user records", err)
		}
	}
	return &d, nil
}

type AdminUserUpdate struct {
	Name     *string      `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Role     *models.Role `json:"role" validate:"omitempty,role"`
	Location *string      `json:"location" validate:"omitempty,max=200"`
	Points   *int         `json:"points" validate:"omitempty,gte=0"`
	Password *string      `json:"password" validate:"omitempty,min=6,max=72"`
}

// AdminUpdate edits an account. A points change is written to the ledger
// and the level recomputed.
func (s *UserService) AdminUpdate(ctx context.Context, id string, in AdminUserUpdate) (*models.User, error) {
	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user", id)
			}
			return fmt.Errorf("load user: %w", err)
		}

		updates := map[string]any{}
		if in.Name != nil {
			updates["name"] = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			email := normalizeEmail(*in.Email)
			taken, err := s.emailTaken(tx, email, id)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if taken {
				return apperror.Conflict("email is already registered")
			}
			updates["email"] = email
		}
		if in.Role != nil {
			updates["role"] = *in.Role
		}
		if in.Location != nil {
			updates["location"] = strings.TrimSpace(*in.Location)
		}
		if in.Password != nil {
			hash, err := utils.HashPassword(*in.Password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			updates["password"] = hash
		}
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return fmt.Errorf("update user: %w", err)
			}
		}

		if in.Points != nil && *in.Points != user.Points {
			delta := *in.Points - user.Points
			if _, err := addPoints(tx, id, delta, models.PointSourceAdminAdjust, ""); err != nil {
				return err
			}
			if _, _, err := refreshLevel(tx, id, resolveSettings(tx).LevelThresholds); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxError("failed to update user", err)
	}

	s.leaderboard.Invalidate()
	logging.Ctx(ctx).Info().Str("user_id", id).Msg("User updated by admin")
	return s.Get(ctx, id)
}

// AdminDelete removes an account and everything it owns. Admins cannot
// delete themselves.
func (s *UserService) AdminDelete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperror.Forbidden("you cannot delete your own account")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		// children first so sqlite without enforced foreign keys stays consistent
		for _, m := range []any{&models.PointLog{}, &models.Notification{}, &models.QuizAttempt{}, &models.Voucher{}, &models.WasteDeposit{}} {
			if err := tx.Where("user_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("delete user records: %w", err)
			}
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
	if err != nil {
		return wrapTxError("failed to delete user", err)
	}
	s.leaderboard.Invalidate()
	logging.Ctx(ctx).Info().Str("user_id", id).Str("actor_id", actorID).Msg("User deleted")
	return nil
}
