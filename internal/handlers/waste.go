package handlers

import (
	"fmt"
	"net/http"

	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type WasteHandler struct {
	deposits   *services.DepositService
	classifier *services.ClassifierService
}

func NewWasteHandler(deposits *services.DepositService, classifier *services.ClassifierService) *WasteHandler {
	return &WasteHandler{deposits: deposits, classifier: classifier}
}

func (h *WasteHandler) Deposit(c *gin.Context) {
	user := currentUser(c)
	var in services.DepositInput
	if !bindJSON(c, &in) {
		return
	}

	res, err := h.deposits.Deposit(c.Request.Context(), user.ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  fmt.Sprintf("Berhasil menyetor %.1f kg sampah dan mendapatkan %d poin!", res.Deposit.Amount, res.Deposit.PointsEarned),
		"deposit":  res.Deposit,
		"newStats": res.NewStats,
	})
}

func (h *WasteHandler) History(c *gin.Context) {
	user := currentUser(c)
	limit, offset := paging(c)

	deposits, totals, err := h.deposits.History(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deposits":   deposits,
		"pagination": newPagination(totals.Count, limit, offset),
		"totals":     totals,
	})
}

type scanRequest struct {
	Image string `json:"image"`
}

// Scan classifies a photo. Upstream failures still answer 200 with a
// fallback result.
func (h *WasteHandler) Scan(c *gin.Context) {
	var req scanRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.classifier.Classify(c.Request.Context(), req.Image)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
