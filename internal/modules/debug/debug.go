package debug

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tubelens/core/internal/modules/gateway/gateway"
	"github.com/tubelens/core/internal/pkg/response"
)

// Handler exposes authed probes for exercising the realtime surface
// without a page client: an empty endpoint to verify auth plumbing and a
// manual event push into the socket hub.
type Handler struct {
	hub *gateway.Hub
}

func NewHandler(hub *gateway.Hub) *Handler { return &Handler{hub: hub} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/debug", authMW)
	g.GET("/test", h.test)
	g.POST("/events", h.sendEvent)
}

func (h *Handler) test(c *gin.Context) {
	c.String(200, "")
}

// POST /debug/events?event=NAME&type=admin|public|all|video&room=<contentId>
// pushes the request body to connected sockets, wrapped the same way real
// broadcasts are.
func (h *Handler) sendEvent(c *gin.Context) {
	event := strings.TrimSpace(c.Query("event"))
	if event == "" {
		response.BadRequest(c, "event is required")
		return
	}

	target := strings.TrimSpace(strings.ToLower(c.DefaultQuery("type", "public")))
	var payload interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if h.hub == nil {
		response.UnprocessableEntity(c, "gateway is disabled")
		return
	}

	data := gin.H{
		"event":   event,
		"payload": payload,
		"date":    time.Now(),
	}
	switch target {
	case "admin":
		h.hub.BroadcastAdmin(event, data)
	case "all":
		h.hub.BroadcastAdmin(event, data)
		h.hub.BroadcastPublic(event, data)
	case "video":
		contentID := strings.TrimSpace(c.Query("room"))
		if contentID == "" {
			response.BadRequest(c, "room is required for video events")
			return
		}
		h.hub.BroadcastVideo(contentID, event, data)
	default:
		h.hub.BroadcastPublic(event, data)
	}
	response.NoContent(c)
}
