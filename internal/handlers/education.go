package handlers

import (
	"net/http"

	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type EducationHandler struct {
	education *services.EducationService
}

func NewEducationHandler(e *services.EducationService) *EducationHandler {
	return &EducationHandler{education: e}
}

func (h *EducationHandler) Articles(c *gin.Context) {
	limit, _ := pagingWith(c, services.DefaultArticleLimit, maxPageSize)
	articles, err := h.education.Articles(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (h *EducationHandler) Article(c *gin.Context) {
	a, err := h.education.Article(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Quizzes returns unattempted quizzes without their answers.
func (h *EducationHandler) Quizzes(c *gin.Context) {
	limit, _ := pagingWith(c, services.DefaultQuizLimit, 20)
	quizzes, err := h.education.PendingQuizzes(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

func (h *EducationHandler) Answer(c *gin.Context) {
	var in services.QuizAnswer
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.education.Answer(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
