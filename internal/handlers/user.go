package handlers

import (
	"net/http"

	"greentera/internal/apperror"
	"greentera/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users       *services.UserService
	stats       *services.StatsService
	leaderboard *services.LeaderboardService
	points      *services.PointsService
}

func NewUserHandler(users *services.UserService, stats *services.StatsService, lb *services.LeaderboardService, points *services.PointsService) *UserHandler {
	return &UserHandler{users: users, stats: stats, leaderboard: lb, points: points}
}

func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var in services.ProfileUpdate
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *UserHandler) Dashboard(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *UserHandler) Leaderboard(c *gin.Context) {
	period := services.LeaderboardPeriod(c.DefaultQuery("period", string(services.PeriodAllTime)))
	if !period.Valid() {
		writeError(c, apperror.ValidationFailed("period", "period must be one of: weekly, monthly, alltime"))
		return
	}
	limit, _ := pagingWith(c, services.DefaultLeaderboardLimit, services.MaxLeaderboardLimit)

	entries, err := h.leaderboard.Top(c.Request.Context(), period, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "period": period})
}

func (h *UserHandler) PointsHistory(c *gin.Context) {
	limit, offset := paging(c)
	logs, total, err := h.points.History(c.Request.Context(), currentUser(c).ID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"pagination": newPagination(total, limit, offset),
	})
}
