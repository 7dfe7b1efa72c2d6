package models

import "time"

// AnalysisResult is the normalized shape every remote response is reduced
// to before anything downstream sees it. Field names stay camelCase on the
// wire because the dashboard consumes them as-is.
type AnalysisResult struct {
	Sentiment SentimentSummary `json:"sentiment"`
	Toxicity  ToxicitySummary  `json:"toxicity"`
	Keywords  []KeywordCount   `json:"keywords"`
	Emotions  *EmotionSummary  `json:"emotions,omitempty"`
	Patterns  PatternSummary   `json:"patterns"`
	WordCloud string           `json:"wordCloud,omitempty"` // encoded image payload (data URL)
	Meta      ResultMeta       `json:"meta"`
}

// SentimentSummary carries the sentiment distribution. Percentages default
// to zero when the service omits them.
type SentimentSummary struct {
	PositivePct  float64 `json:"positivePct"`
	NegativePct  float64 `json:"negativePct"`
	NeutralPct   float64 `json:"neutralPct"`
	AverageScore float64 `json:"averageScore"`
	Overall      string  `json:"overall"`
}

type ToxicitySummary struct {
	ToxicPct float64 `json:"toxicPct"`
	SpamPct  float64 `json:"spamPct"`
}

// KeywordCount is one entry of the ranked keyword list.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// EmotionSummary is absent entirely (nil) when the service has emotion
// analysis disabled; renderers skip the section rather than defaulting it.
type EmotionSummary struct {
	Distribution map[string]float64 `json:"distribution"`
	Dominant     string             `json:"dominant"`
}

type PatternSummary struct {
	AverageLength  float64 `json:"averageLength"`
	QuestionPct    float64 `json:"questionPct"`
	ExclamationPct float64 `json:"exclamationPct"`
}

type ResultMeta struct {
	ContentID        string `json:"contentId"`
	Title            string `json:"title"`
	CommentsReceived int    `json:"commentsReceived"`
	CommentsAnalyzed int    `json:"commentsAnalyzed"`
	ServiceVersion   string `json:"serviceVersion,omitempty"`
}

// AnalysisRecord caches the most recent result per content id. Re-analysis
// overwrites the row in place.
type AnalysisRecord struct {
	Base
	ContentID  string         `json:"content_id"  gorm:"uniqueIndex;not null"`
	Title      string         `json:"title"`
	Result     AnalysisResult `json:"result"      gorm:"type:longtext;serializer:json"`
	AnalyzedAt time.Time      `json:"analyzed_at" gorm:"index"`
}

func (AnalysisRecord) TableName() string { return "analysis_records" }

// AnalysisLog records one routed bridge message for the stats module.
type AnalysisLog struct {
	Base
	MessageID  string    `json:"message_id"  gorm:"index"`
	Type       string    `json:"type"        gorm:"index;not null"`
	ContentID  string    `json:"content_id"  gorm:"index"`
	Comments   int       `json:"comments"`
	Success    bool      `json:"success"     gorm:"index"`
	ErrorKind  string    `json:"error_kind"  gorm:"index"`
	DurationMS int64     `json:"duration_ms"`
	IP         string    `json:"ip"`
	UA         string    `json:"ua"          gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp"   gorm:"index;index:idx_ts_type,composite:1"`
}

func (AnalysisLog) TableName() string { return "analysis_logs" }
