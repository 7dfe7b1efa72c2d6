package results

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/pkg/pagination"
	"github.com/tubelens/core/internal/pkg/response"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/results")

	// The page client re-reads a cached result without owner credentials.
	g.GET("/:contentId", h.get)

	a := g.Group("", authMW)
	a.GET("", h.list)
	a.DELETE("/:contentId", h.delete)
	a.DELETE("", h.purge)
}

// GET /results/:contentId
func (h *Handler) get(c *gin.Context) {
	record, source, err := h.svc.GetByContentID(c.Request.Context(), c.Param("contentId"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if record == nil {
		response.NotFoundMsg(c, "no analysis for this content")
		return
	}
	c.Header("x-tubelens-served-by", source)
	response.OK(c, toResponse(record))
}

// GET /results
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]recordResponse, len(items))
	for i := range items {
		out[i] = toResponse(&items[i])
	}
	response.Paged(c, out, pag)
}

// DELETE /results/:contentId
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("contentId")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "no analysis for this content")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// DELETE /results
func (h *Handler) purge(c *gin.Context) {
	deleted, err := h.svc.PurgeAll(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}
