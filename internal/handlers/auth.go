package handlers

import (
	"net/http"

	"greentera/internal/apperror"
	"greentera/internal/middleware"
	"greentera/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const captchaSessionKey = "captcha_answer"

type AuthHandler struct {
	users          *services.UserService
	captchaService *services.CaptchaService
	captchaEnabled bool

	oauth       *oauth2.Config
	userInfoURL string
}

func NewAuthHandler(users *services.UserService, captcha *services.CaptchaService, captchaEnabled bool, oauth *oauth2.Config) *AuthHandler {
	return &AuthHandler{
		users:          users,
		captchaService: captcha,
		captchaEnabled: captchaEnabled,
		oauth:          oauth,
		userInfoURL:    googleUserInfoURL,
	}
}

// Captcha issues a new math question; the answer stays in the session.
func (h *AuthHandler) Captcha(c *gin.Context) {
	question, answer := h.captchaService.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"captcha": question})
}

type registerRequest struct {
	services.RegisterInput
	CaptchaAnswer *int `json:"captchaAnswer"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	if h.captchaEnabled {
		session := sessions.Default(c)
		expected, ok := session.Get(captchaSessionKey).(int)
		// one answer per question
		session.Delete(captchaSessionKey)
		_ = session.Save()
		if !ok || req.CaptchaAnswer == nil || *req.CaptchaAnswer != expected {
			writeError(c, apperror.ValidationFailed("captchaAnswer", "captcha answer is wrong, request a new one"))
			return
		}
	}

	user, err := h.users.Register(c.Request.Context(), req.RegisterInput)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Registrasi berhasil", "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the signed-in user or 401.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		writeError(c, apperror.Unauthorized("login required"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
