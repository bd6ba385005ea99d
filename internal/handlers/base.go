package handlers

import (
	"errors"
	"net/http"

	"greentera/internal/apperror"
	"greentera/internal/logging"
	"greentera/internal/middleware"
	"greentera/internal/models"
	"greentera/internal/utils"
	"greentera/internal/validation"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// currentUser returns the signed-in user; routes using it sit behind
// AuthRequired.
func currentUser(c *gin.Context) *models.User {
	return c.MustGet(middleware.CheckUserKey).(*models.User)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrRejected):
		return http.StatusBadRequest, "rejected"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps err onto a status and the JSON error body. Internal
// causes are logged, never sent.
func writeError(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status == http.StatusInternalServerError {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	_ = c.Error(err)

	body := gin.H{"error": code, "message": apperror.Message(err)}
	if f := apperror.Field(err); f != "" {
		body["field"] = f
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, validation.Translate(err))
		return false
	}
	return true
}

type pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

func paging(c *gin.Context) (limit, offset int) {
	return pagingWith(c, defaultPageSize, maxPageSize)
}

func pagingWith(c *gin.Context, def, max int) (limit, offset int) {
	return utils.Paging(c.Query("limit"), c.Query("offset"), def, max)
}

func newPagination(total int64, limit, offset int) pagination {
	return pagination{Total: total, Limit: limit, Offset: offset, HasMore: int64(offset+limit) < total}
}

// idParam reads the :id path value, falling back to ?id=.
func idParam(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Query("id")
}
