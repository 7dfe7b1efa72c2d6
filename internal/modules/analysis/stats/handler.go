package stats

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/pkg/pagination"
	"github.com/tubelens/core/internal/pkg/response"
)

const defaultLogRetention = 90 * 24 * time.Hour

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/stats", authMW)
	g.GET("", h.summary)
	g.GET("/daily", h.daily)
	g.GET("/recent", h.recent)
	g.DELETE("", h.cleanOld)
}

// GET /stats
func (h *Handler) summary(c *gin.Context) {
	summary, err := h.svc.Summary()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, summary)
}

// GET /stats/daily?days=N
func (h *Handler) daily(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	series, err := h.svc.Daily(days)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, series)
}

// GET /stats/recent
func (h *Handler) recent(c *gin.Context) {
	var sq statsQuery
	if err := c.ShouldBindQuery(&sq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q := pagination.FromContext(c)
	items, pag, err := h.svc.Recent(q, sq)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// DELETE /stats
func (h *Handler) cleanOld(c *gin.Context) {
	deleted, err := h.svc.CleanOld(defaultLogRetention)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}
