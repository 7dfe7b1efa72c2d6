package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/modules/analysis/stats"
	"github.com/tubelens/core/internal/pkg/envelope"
)

type Handler struct {
	router *Router
	stats  *stats.Service
}

func NewHandler(router *Router, statsSvc *stats.Service) *Handler {
	return &Handler{router: router, stats: statsSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, _ gin.HandlerFunc) {
	// The page client posts here without credentials.
	rg.POST("/bridge", h.dispatch)
}

// POST /bridge
//
// The response envelope is the protocol: every outcome, including a body
// that does not parse, answers 200 with {success,data?,error?}. Transport
// status codes stay out of it so the page client has one shape to handle.
func (h *Handler) dispatch(c *gin.Context) {
	start := time.Now()
	id := uuid.New().String()

	var msg envelope.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		resp := envelope.Reject(fmt.Errorf("invalid message: %v", err))
		h.record(c, id, msg, resp, start)
		c.JSON(200, resp)
		return
	}

	ctx := WithMessageID(c.Request.Context(), id)
	resp := h.router.Dispatch(ctx, msg)
	h.record(c, id, msg, resp, start)
	c.JSON(200, resp)
}

// record writes one stats row per message. A failed insert never affects
// the response.
func (h *Handler) record(c *gin.Context, id string, msg envelope.Message, resp envelope.Response, start time.Time) {
	if h.stats == nil {
		return
	}

	entry := &models.AnalysisLog{
		MessageID:  id,
		Type:       string(msg.Type),
		Success:    resp.Success,
		DurationMS: time.Since(start).Milliseconds(),
		IP:         c.ClientIP(),
		UA:         c.Request.UserAgent(),
	}
	if kind, ok := envelope.KindOf(resp.Err); ok {
		entry.ErrorKind = string(kind)
	}
	if msg.Type == envelope.MessageAnalyzeComments && len(msg.Data) > 0 {
		var payload analyzePayload
		if json.Unmarshal(msg.Data, &payload) == nil {
			entry.ContentID = payload.ContentID
			entry.Comments = len(payload.Comments)
		}
	}
	_ = h.stats.Record(entry)
}
