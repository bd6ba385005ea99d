package handlers

import (
	"fmt"
	"net/http"

	"greentera/internal/middleware"
	"greentera/internal/models"
	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type VoucherHandler struct {
	vouchers  *services.VoucherService
	templates *services.TemplateService
}

func NewVoucherHandler(vouchers *services.VoucherService, templates *services.TemplateService) *VoucherHandler {
	return &VoucherHandler{vouchers: vouchers, templates: templates}
}

func (h *VoucherHandler) Redeem(c *gin.Context) {
	user := currentUser(c)
	var in services.RedeemInput
	if !bindJSON(c, &in) {
		return
	}

	res, err := h.vouchers.Redeem(c.Request.Context(), user.ID, in)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"success":         true,
		"message":         fmt.Sprintf("Voucher %s berhasil ditukar!", res.Name),
		"id":              res.Voucher.ID,
		"voucherCode":     res.Voucher.VoucherCode,
		"nominal":         res.Voucher.Nominal,
		"expiresAt":       res.Voucher.ExpiresAt,
		"remainingPoints": res.RemainingPoints,
	}
	if res.Template != nil {
		body["template"] = gin.H{
			"id":       res.Template.ID,
			"name":     res.Template.Name,
			"icon":     res.Template.Icon,
			"category": res.Template.Category,
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *VoucherHandler) History(c *gin.Context) {
	vouchers, err := h.vouchers.History(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
}

// Templates lists the redeemable catalog; admins also see inactive entries.
func (h *VoucherHandler) Templates(c *gin.Context) {
	user := middleware.CurrentUser(c)
	admin := user != nil && user.Role == models.RoleAdmin

	templates, err := h.templates.List(c.Request.Context(), admin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "legacy": services.LegacyVouchers})
}

func (h *VoucherHandler) Use(c *gin.Context) {
	v, err := h.vouchers.MarkUsed(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "voucher": v})
}
