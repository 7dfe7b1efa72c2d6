package remote

import "encoding/json"

// Batch is one analysis request: the extracted comments plus the identity
// of the content they came from.
type Batch struct {
	ContentID string
	Title     string
	Comments  []string
}

// HealthStatus mirrors the service's health probe body.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Message string `json:"message,omitempty"`
}

type analyzeRequest struct {
	Comments   []string `json:"comments"`
	VideoID    string   `json:"video_id"`
	VideoTitle string   `json:"video_title"`
}

// rawEnvelope holds every key either response shape may carry. Shape
// detection looks at which keys are present: a success flag or data object
// marks the full envelope, a sentiment_summary object marks the reduced
// one. Full-envelope keys win when both appear.
type rawEnvelope struct {
	Success          *bool           `json:"success"`
	Error            string          `json:"error"`
	Data             json.RawMessage `json:"data"`
	SentimentSummary json.RawMessage `json:"sentiment_summary"`
	TotalComments    int             `json:"total_comments"`
}

type fullPayload struct {
	Sentiment *sentimentBlock `json:"sentiment_analysis"`
	Emotions  *emotionBlock   `json:"emotion_analysis"`
	Toxicity  *toxicityBlock  `json:"toxicity_analysis"`
	Keywords  []keywordEntry  `json:"keywords"`
	Patterns  *patternsBlock  `json:"comment_patterns"`
	WordCloud string          `json:"wordcloud"`
	Metadata  *metadataBlock  `json:"metadata"`
}

func (p fullPayload) empty() bool {
	return p.Sentiment == nil && p.Emotions == nil && p.Toxicity == nil &&
		p.Patterns == nil && p.Metadata == nil && len(p.Keywords) == 0 && p.WordCloud == ""
}

// sentimentBlock is shared by the full envelope's sentiment_analysis
// section and the reduced envelope's sentiment_summary object. Percentage
// keys are model labels and arrive in whatever casing the service used.
type sentimentBlock struct {
	TotalComments int                `json:"total_comments"`
	Percentages   map[string]float64 `json:"sentiment_percentages"`
	AverageScore  float64            `json:"average_sentiment_score"`
	Overall       string             `json:"overall_sentiment"`
}

type emotionBlock struct {
	Percentages map[string]float64 `json:"emotion_percentages"`
	Dominant    string             `json:"dominant_emotion"`
}

type toxicityBlock struct {
	ToxicPct float64 `json:"toxic_percentage"`
	SpamPct  float64 `json:"spam_percentage"`
}

type patternsBlock struct {
	AverageLength  float64 `json:"average_length"`
	QuestionPct    float64 `json:"question_percentage"`
	ExclamationPct float64 `json:"exclamation_percentage"`
}

type keywordEntry struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type metadataBlock struct {
	VideoID          string `json:"video_id"`
	VideoTitle       string `json:"video_title"`
	TotalReceived    int    `json:"total_comments_received"`
	CommentsAnalyzed int    `json:"comments_analyzed"`
	AnalysisVersion  string `json:"analysis_version"`
}
