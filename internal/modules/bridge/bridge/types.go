package bridge

import (
	"context"
	"encoding/json"

	"github.com/tubelens/core/internal/models"
)

// HandlerFunc services one message type. The data it returns becomes the
// response payload; a returned error becomes the rejection text.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Events receives completion notifications so transports and webhooks can
// fan results out without the bridge knowing about either.
type Events interface {
	AnalysisCompleted(record *models.AnalysisRecord)
}

// analyzePayload is the ANALYZE_COMMENTS request body. Page clients send
// either pre-extracted comments or the raw page markup; extracted
// comments win when both are present.
type analyzePayload struct {
	ContentID string   `json:"contentId"`
	Title     string   `json:"title"`
	Comments  []string `json:"comments,omitempty"`
	HTML      string   `json:"html,omitempty"`
}

type ctxKey int

const messageIDKey ctxKey = iota

// WithMessageID tags ctx so dispatch logs and the request log share one
// message id.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey, id)
}

// MessageIDFrom returns the tagged message id, or "" when ctx carries
// none.
func MessageIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey).(string)
	return id
}
