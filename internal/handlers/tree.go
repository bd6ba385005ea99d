package handlers

import (
	"fmt"
	"net/http"

	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type TreeHandler struct {
	trees *services.TreeService
}

func NewTreeHandler(trees *services.TreeService) *TreeHandler {
	return &TreeHandler{trees: trees}
}

func (h *TreeHandler) Status(c *gin.Context) {
	status, err := h.trees.Status(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *TreeHandler) Claim(c *gin.Context) {
	res, err := h.trees.Claim(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Selamat! Pohon Anda telah tumbuh dan Anda mendapatkan %d poin bonus!", res.BonusPoints),
		"bonusPoints": res.BonusPoints,
		"newStats":    res.NewStats,
	})
}
