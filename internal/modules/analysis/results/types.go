package results

import (
	"time"

	"github.com/tubelens/core/internal/models"
)

const cacheTTL = 24 * time.Hour

// DefaultRetention is how long a record survives without re-analysis
// before the purge job removes it.
const DefaultRetention = 90 * 24 * time.Hour

// Served-by values for the result read path.
const (
	ServedByRedis = "redis"
	ServedByMySQL = "mysql"
)

type recordResponse struct {
	ID         string                `json:"id"`
	ContentID  string                `json:"contentId"`
	Title      string                `json:"title"`
	Result     models.AnalysisResult `json:"result"`
	AnalyzedAt time.Time             `json:"analyzedAt"`
	Created    time.Time             `json:"created"`
	Modified   time.Time             `json:"modified"`
}

func toResponse(r *models.AnalysisRecord) recordResponse {
	return recordResponse{
		ID:         r.ID,
		ContentID:  r.ContentID,
		Title:      r.Title,
		Result:     r.Result,
		AnalyzedAt: r.AnalyzedAt,
		Created:    r.CreatedAt,
		Modified:   r.UpdatedAt,
	}
}
