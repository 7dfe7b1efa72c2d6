package remote

import (
	"encoding/json"
	"strings"

	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/envelope"
)

// parseResult reduces a 2xx response body to the canonical result. sent is
// the number of comments actually posted, used as the last fallback for
// the analyzed count.
func parseResult(body []byte, batch Batch, sent int) (*models.AnalysisResult, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}

	switch {
	case raw.Success != nil || present(raw.Data):
		return normalizeFull(raw, batch, sent)
	case present(raw.SentimentSummary):
		return normalizeReduced(raw, batch, sent)
	}
	return nil, envelope.NewError(envelope.KindMalformedResponse, "")
}

func normalizeFull(raw rawEnvelope, batch Batch, sent int) (*models.AnalysisResult, error) {
	if raw.Success != nil && !*raw.Success {
		if msg := strings.TrimSpace(raw.Error); msg != "" {
			return nil, envelope.NewError(envelope.KindServiceReportedFailure, msg)
		}
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}
	if !present(raw.Data) {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}

	var payload fullPayload
	if err := json.Unmarshal(raw.Data, &payload); err != nil {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}
	if payload.empty() {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}

	result := &models.AnalysisResult{
		Keywords: make([]models.KeywordCount, 0, len(payload.Keywords)),
	}
	if payload.Sentiment != nil {
		result.Sentiment = normalizeSentiment(*payload.Sentiment)
	}
	if payload.Toxicity != nil {
		result.Toxicity = models.ToxicitySummary{
			ToxicPct: payload.Toxicity.ToxicPct,
			SpamPct:  payload.Toxicity.SpamPct,
		}
	}
	for _, kw := range payload.Keywords {
		if strings.TrimSpace(kw.Word) == "" {
			continue
		}
		result.Keywords = append(result.Keywords, models.KeywordCount{Word: kw.Word, Count: kw.Count})
	}
	// Emotion analysis may be disabled service-side. Without a dominant
	// emotion the whole section stays nil so renderers skip it instead of
	// showing zeroes.
	if payload.Emotions != nil && strings.TrimSpace(payload.Emotions.Dominant) != "" {
		dist := payload.Emotions.Percentages
		if dist == nil {
			dist = map[string]float64{}
		}
		result.Emotions = &models.EmotionSummary{
			Distribution: dist,
			Dominant:     payload.Emotions.Dominant,
		}
	}
	if payload.Patterns != nil {
		result.Patterns = models.PatternSummary{
			AverageLength:  payload.Patterns.AverageLength,
			QuestionPct:    payload.Patterns.QuestionPct,
			ExclamationPct: payload.Patterns.ExclamationPct,
		}
	}
	result.WordCloud = payload.WordCloud
	result.Meta = buildMeta(payload.Metadata, payload.Sentiment, batch, sent)
	return result, nil
}

func normalizeReduced(raw rawEnvelope, batch Batch, sent int) (*models.AnalysisResult, error) {
	var block sentimentBlock
	if err := json.Unmarshal(raw.SentimentSummary, &block); err != nil {
		return nil, envelope.NewError(envelope.KindMalformedResponse, "")
	}

	result := &models.AnalysisResult{
		Sentiment: normalizeSentiment(block),
		Keywords:  make([]models.KeywordCount, 0),
		Meta: models.ResultMeta{
			ContentID:        batch.ContentID,
			Title:            batch.Title,
			CommentsReceived: len(batch.Comments),
			CommentsAnalyzed: sent,
		},
	}
	if raw.TotalComments > 0 {
		result.Meta.CommentsAnalyzed = raw.TotalComments
	} else if block.TotalComments > 0 {
		result.Meta.CommentsAnalyzed = block.TotalComments
	}
	return result, nil
}

func normalizeSentiment(block sentimentBlock) models.SentimentSummary {
	return models.SentimentSummary{
		PositivePct:  pickPct(block.Percentages, "positive"),
		NegativePct:  pickPct(block.Percentages, "negative"),
		NeutralPct:   pickPct(block.Percentages, "neutral"),
		AverageScore: block.AverageScore,
		Overall:      block.Overall,
	}
}

func buildMeta(md *metadataBlock, sentiment *sentimentBlock, batch Batch, sent int) models.ResultMeta {
	meta := models.ResultMeta{
		ContentID:        batch.ContentID,
		Title:            batch.Title,
		CommentsReceived: len(batch.Comments),
		CommentsAnalyzed: sent,
	}
	if sentiment != nil && sentiment.TotalComments > 0 {
		meta.CommentsAnalyzed = sentiment.TotalComments
	}
	if md == nil {
		return meta
	}
	if md.VideoID != "" {
		meta.ContentID = md.VideoID
	}
	if md.VideoTitle != "" {
		meta.Title = md.VideoTitle
	}
	if md.TotalReceived > 0 {
		meta.CommentsReceived = md.TotalReceived
	}
	if md.CommentsAnalyzed > 0 {
		meta.CommentsAnalyzed = md.CommentsAnalyzed
	}
	if md.AnalysisVersion != "" {
		meta.ServiceVersion = md.AnalysisVersion
	}
	return meta
}

// pickPct reads a percentage by label regardless of the casing the model
// emitted, defaulting to zero when the label is absent.
func pickPct(m map[string]float64, label string) float64 {
	for k, v := range m {
		if strings.EqualFold(k, label) {
			return v
		}
	}
	return 0
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
