package handlers

import (
	"net/http"

	"greentera/internal/apperror"
	"greentera/internal/models"
	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the /api/admin surface. Every route sits behind
// AdminRequired.
type AdminHandler struct {
	users         *services.UserService
	deposits      *services.DepositService
	vouchers      *services.VoucherService
	templates     *services.TemplateService
	education     *services.EducationService
	notifications *services.NotificationService
	settings      *services.SettingsService
	stats         *services.StatsService
}

type AdminDeps struct {
	Users         *services.UserService
	Deposits      *services.DepositService
	Vouchers      *services.VoucherService
	Templates     *services.TemplateService
	Education     *services.EducationService
	Notifications *services.NotificationService
	Settings      *services.SettingsService
	Stats         *services.StatsService
}

func NewAdminHandler(d AdminDeps) *AdminHandler {
	return &AdminHandler{
		users:         d.Users,
		deposits:      d.Deposits,
		vouchers:      d.Vouchers,
		templates:     d.Templates,
		education:     d.Education,
		notifications: d.Notifications,
		settings:      d.Settings,
		stats:         d.Stats,
	}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	s, err := h.stats.Admin(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Users

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := paging(c)
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		writeError(c, apperror.ValidationFailed("role", "role must be USER or ADMIN"))
		return
	}

	users, total, err := h.users.AdminList(c.Request.Context(), services.UserFilter{
		Search: c.Query("search"),
		Role:   role,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "pagination": newPagination(total, limit, offset)})
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	d, err := h.users.AdminDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var in services.AdminUserUpdate
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.users.AdminUpdate(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.users.AdminDelete(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Deposits

func (h *AdminHandler) Deposits(c *gin.Context) {
	limit, offset := paging(c)
	wasteType := models.WasteCategory(c.Query("wasteType"))
	if wasteType != "" && !wasteType.Valid() {
		writeError(c, apperror.ValidationFailed("wasteType", "wasteType must be one of ORGANIC, PLASTIC, METAL, PAPER"))
		return
	}

	deposits, total, byType, err := h.deposits.AdminDeposits(c.Request.Context(), services.DepositFilter{
		WasteType: wasteType,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deposits":   deposits,
		"pagination": newPagination(total, limit, offset),
		"totals":     byType,
	})
}

// Vouchers

func (h *AdminHandler) ListVouchers(c *gin.Context) {
	vouchers, stats, err := h.vouchers.AdminList(c.Request.Context(), services.VoucherStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers, "stats": stats})
}

func (h *AdminHandler) CreateVoucher(c *gin.Context) {
	var in services.AdminVoucherInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vouchers.AdminCreate(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "voucher": v})
}

func (h *AdminHandler) UpdateVoucher(c *gin.Context) {
	var in services.AdminVoucherUpdate
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vouchers.AdminUpdate(c.Request.Context(), idParam(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "voucher": v})
}

func (h *AdminHandler) DeleteVoucher(c *gin.Context) {
	id := idParam(c)
	if id == "" {
		writeError(c, apperror.ValidationFailed("id", "voucher id is required"))
		return
	}
	res, err := h.vouchers.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "refundedPoints": res.Refunded})
}

// Templates

func (h *AdminHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context(), true)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *AdminHandler) CreateTemplate(c *gin.Context) {
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.templates.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "template": t})
}

func (h *AdminHandler) UpdateTemplate(c *gin.Context) {
	var in services.TemplateUpdate
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.templates.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "template": t})
}

func (h *AdminHandler) DeleteTemplate(c *gin.Context) {
	deactivated, err := h.templates.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	msg := "Template dihapus"
	if deactivated {
		msg = "Template sudah dipakai, dinonaktifkan"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deactivated": deactivated, "message": msg})
}

// Education

func (h *AdminHandler) ListArticles(c *gin.Context) {
	limit, _ := pagingWith(c, maxPageSize, maxPageSize)
	articles, err := h.education.Articles(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *AdminHandler) CreateArticle(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.education.CreateArticle(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "article": a})
}

func (h *AdminHandler) UpdateArticle(c *gin.Context) {
	var in services.ArticleInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.education.UpdateArticle(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "article": a})
}

func (h *AdminHandler) DeleteArticle(c *gin.Context) {
	if err := h.education.DeleteArticle(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.education.AdminQuizzes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

func (h *AdminHandler) CreateQuiz(c *gin.Context) {
	var in services.QuizInput
	if !bindJSON(c, &in) {
		return
	}
	q, err := h.education.CreateQuiz(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "quiz": q})
}

func (h *AdminHandler) UpdateQuiz(c *gin.Context) {
	var in services.QuizInput
	if !bindJSON(c, &in) {
		return
	}
	q, err := h.education.UpdateQuiz(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quiz": q})
}

func (h *AdminHandler) DeleteQuiz(c *gin.Context) {
	if err := h.education.DeleteQuiz(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Notifications

func (h *AdminHandler) ListNotifications(c *gin.Context) {
	limit, offset := paging(c)
	list, total, byType, err := h.notifications.AdminList(c.Request.Context(), c.Query("type"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"pagination":    newPagination(total, limit, offset),
		"stats":         byType,
	})
}

type announceRequest struct {
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	TargetUserIDs []string `json:"targetUserIds"`
}

func (h *AdminHandler) Announce(c *gin.Context) {
	var req announceRequest
	if !bindJSON(c, &req) {
		return
	}
	sent, err := h.notifications.Announce(c.Request.Context(), req.Title, req.Message, req.TargetUserIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": sent})
}

// Settings

func (h *AdminHandler) GetSettings(c *gin.Context) {
	s, err := h.settings.Ensure(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var in services.Settings
	if !bindJSON(c, &in) {
		return
	}
	s, err := h.settings.Update(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": s})
}
