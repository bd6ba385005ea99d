// Package router assembles services, middleware and the route table.
package router

import (
	"net/http"

	"greentera/internal/config"
	"greentera/internal/handlers"
	"greentera/internal/middleware"
	"greentera/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const sessionName = "greentera_session"

// Services is the wired domain layer.
type Services struct {
	Settings      *services.SettingsService
	Notifications *services.NotificationService
	Leaderboard   *services.LeaderboardService
	Mail          *services.MailService
	Captcha       *services.CaptchaService
	Users         *services.UserService
	Deposits      *services.DepositService
	Trees         *services.TreeService
	Vouchers      *services.VoucherService
	Templates     *services.TemplateService
	Education     *services.EducationService
	Points        *services.PointsService
	Stats         *services.StatsService
	Classifier    *services.ClassifierService
}

func NewServices(gdb *gorm.DB, cfg *config.Config) *Services {
	notifications := services.NewNotificationService(gdb)
	lb := services.NewLeaderboardService(gdb, cfg.Leaderboard.CacheTTL)
	mail := services.NewMailService(cfg.SMTP)
	images := services.NewImageService(cfg.Scan.MaxImageBytes, cfg.Scan.MaxDimension)

	return &Services{
		Settings:      services.NewSettingsService(gdb),
		Notifications: notifications,
		Leaderboard:   lb,
		Mail:          mail,
		Captcha:       services.NewCaptchaService(),
		Users:         services.NewUserService(gdb, notifications, lb, mail),
		Deposits:      services.NewDepositService(gdb, notifications, lb),
		Trees:         services.NewTreeService(gdb, notifications, lb),
		Vouchers:      services.NewVoucherService(gdb, notifications, lb, mail),
		Templates:     services.NewTemplateService(gdb),
		Education:     services.NewEducationService(gdb, notifications, lb),
		Points:        services.NewPointsService(gdb),
		Stats:         services.NewStatsService(gdb),
		Classifier:    services.NewClassifierService(cfg.Gemini, images),
	}
}

// New returns the fully configured engine.
func New(gdb *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.Server.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(gdb))

	RegisterRoutes(r, NewServices(gdb, cfg), cfg)
	return r
}

func RegisterRoutes(r *gin.Engine, s *Services, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(s.Users, s.Captcha, cfg.Captcha.Enabled,
		handlers.NewGoogleOAuth(cfg.Google, cfg.Server.SiteURL))
	wasteHandler := handlers.NewWasteHandler(s.Deposits, s.Classifier)
	treeHandler := handlers.NewTreeHandler(s.Trees)
	voucherHandler := handlers.NewVoucherHandler(s.Vouchers, s.Templates)
	userHandler := handlers.NewUserHandler(s.Users, s.Stats, s.Leaderboard, s.Points)
	notificationHandler := handlers.NewNotificationHandler(s.Notifications)
	educationHandler := handlers.NewEducationHandler(s.Education)
	adminHandler := handlers.NewAdminHandler(handlers.AdminDeps{
		Users:         s.Users,
		Deposits:      s.Deposits,
		Vouchers:      s.Vouchers,
		Templates:     s.Templates,
		Education:     s.Education,
		Notifications: s.Notifications,
		Settings:      s.Settings,
		Stats:         s.Stats,
	})
	scanLimiter := middleware.NewRateLimiter(cfg.Scan.RequestsPerMinute, cfg.Scan.Burst)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/auth/google/login", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)

	api := r.Group("/api")

	// Public
	api.GET("/auth/captcha", authHandler.Captcha)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me)
	api.GET("/leaderboard", userHandler.Leaderboard)
	api.GET("/vouchers/templates", voucherHandler.Templates)
	api.GET("/education/articles", educationHandler.Articles)
	api.GET("/education/articles/:id", educationHandler.Article)

	// Signed in
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/waste/deposit", wasteHandler.Deposit)
		authorized.GET("/waste/history", wasteHandler.History)
		authorized.POST("/waste/scan", scanLimiter.PerUser(), wasteHandler.Scan)

		authorized.GET("/eco-tree", treeHandler.Status)
		authorized.POST("/eco-tree/claim", treeHandler.Claim)

		authorized.POST("/voucher/redeem", voucherHandler.Redeem)
		authorized.GET("/voucher/history", voucherHandler.History)
		authorized.POST("/voucher/:id/use", voucherHandler.Use)

		authorized.GET("/profile", userHandler.Profile)
		authorized.PUT("/profile", userHandler.UpdateProfile)
		authorized.GET("/dashboard", userHandler.Dashboard)
		authorized.GET("/points/history", userHandler.PointsHistory)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.PUT("/notifications", notificationHandler.MarkRead)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)

		authorized.GET("/education/quiz", educationHandler.Quizzes)
		authorized.POST("/education/quiz", educationHandler.Answer)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/stats", adminHandler.Stats)

		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.PUT("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)

		admin.GET("/deposits", adminHandler.Deposits)

		admin.GET("/vouchers", adminHandler.ListVouchers)
		admin.POST("/vouchers", adminHandler.CreateVoucher)
		admin.PUT("/vouchers", adminHandler.UpdateVoucher)
		admin.PUT("/vouchers/:id", adminHandler.UpdateVoucher)
		admin.DELETE("/vouchers", adminHandler.DeleteVoucher)
		admin.DELETE("/vouchers/:id", adminHandler.DeleteVoucher)

		admin.GET("/voucher-templates", adminHandler.ListTemplates)
		admin.POST("/voucher-templates", adminHandler.CreateTemplate)
		admin.PUT("/voucher-templates/:id", adminHandler.UpdateTemplate)
		admin.DELETE("/voucher-templates/:id", adminHandler.DeleteTemplate)

		admin.GET("/articles", adminHandler.ListArticles)
		admin.POST("/articles", adminHandler.CreateArticle)
		admin.PUT("/articles/:id", adminHandler.UpdateArticle)
		admin.DELETE("/articles/:id", adminHandler.DeleteArticle)

		admin.GET("/quizzes", adminHandler.ListQuizzes)
		admin.POST("/quizzes", adminHandler.CreateQuiz)
		admin.PUT("/quizzes/:id", adminHandler.UpdateQuiz)
		admin.DELETE("/quizzes/:id", adminHandler.DeleteQuiz)

		admin.GET("/notifications", adminHandler.ListNotifications)
		admin.POST("/notifications", adminHandler.Announce)

		admin.GET("/settings", adminHandler.GetSettings)
		admin.PUT("/settings", adminHandler.UpdateSettings)
	}
}
