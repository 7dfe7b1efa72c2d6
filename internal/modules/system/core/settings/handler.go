package settings

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tubelens/core/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/settings")

	// The page client reads settings without owner credentials.
	g.GET("", h.get)

	a := g.Group("", authMW)
	a.PATCH("", h.patch)
}

func (h *Handler) get(c *gin.Context) {
	current, err := h.svc.Get()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, current)
}

func (h *Handler) patch(c *gin.Context) {
	var partial map[string]json.RawMessage
	if err := c.ShouldBindJSON(&partial); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updated, err := h.svc.Patch(partial)
	if err != nil {
		if errors.Is(err, ErrInvalidPatch) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, updated)
}
