package stats

import "time"

// Summary aggregates the routed-message log for the owner dashboard.
type Summary struct {
	Total        int64            `json:"total"`
	Succeeded    int64            `json:"succeeded"`
	Failed       int64            `json:"failed"`
	Today        int64            `json:"today"`
	AvgAnalyzeMS float64          `json:"avgAnalyzeMs"`
	ByType       map[string]int64 `json:"byType"`
	ByErrorKind  map[string]int64 `json:"byErrorKind"`
}

// DayCount is one bucket of the daily request series.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type statsQuery struct {
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to"   time_format:"2006-01-02"`
	Type string     `form:"type"`
}

type groupCount struct {
	Key   string `gorm:"column:key"`
	Count int64  `gorm:"column:count"`
}
