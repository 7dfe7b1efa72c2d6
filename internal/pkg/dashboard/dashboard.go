// Package dashboard projects analysis outcomes into a neutral display
// document. It never touches the network or storage; writers (markdown,
// terminal) consume the document independently.
package dashboard

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/pkg/envelope"
)

type SectionKind string

const (
	SectionSummary   SectionKind = "summary"
	SectionSentiment SectionKind = "sentiment"
	SectionToxicity  SectionKind = "toxicity"
	SectionKeywords  SectionKind = "keywords"
	SectionEmotions  SectionKind = "emotions"
	SectionPatterns  SectionKind = "patterns"
	SectionWordCloud SectionKind = "word_cloud"
	SectionMeta      SectionKind = "meta"
	SectionError     SectionKind = "error"
)

// Row is one labelled value inside a section.
type Row struct {
	Label string
	Value string
}

// Section is a titled block of the dashboard.
type Section struct {
	Kind  SectionKind
	Title string
	Rows  []Row
	Lines []string
}

// Document is the renderer's output tree.
type Document struct {
	Title    string
	Sections []Section
}

// Render projects a result into a document. Sections without data are
// omitted so the layout collapses instead of showing holes.
func Render(result *models.AnalysisResult) Document {
	doc := Document{Title: "Comment analysis"}
	if result == nil {
		return doc
	}
	if result.Meta.Title != "" {
		doc.Title = result.Meta.Title
	}

	doc.Sections = append(doc.Sections, Section{
		Kind:  SectionSummary,
		Title: "Summary",
		Rows: []Row{
			{Label: "Overall sentiment", Value: orDash(result.Sentiment.Overall)},
			{Label: "Comments analyzed", Value: strconv.Itoa(result.Meta.CommentsAnalyzed)},
		},
	})

	doc.Sections = append(doc.Sections, Section{
		Kind:  SectionSentiment,
		Title: "Sentiment",
		Rows: []Row{
			{Label: "Positive", Value: pct(result.Sentiment.PositivePct)},
			{Label: "Negative", Value: pct(result.Sentiment.NegativePct)},
			{Label: "Neutral", Value: pct(result.Sentiment.NeutralPct)},
			{Label: "Average score", Value: score(result.Sentiment.AverageScore)},
		},
	})

	doc.Sections = append(doc.Sections, Section{
		Kind:  SectionToxicity,
		Title: "Toxicity",
		Rows: []Row{
			{Label: "Toxic", Value: pct(result.Toxicity.ToxicPct)},
			{Label: "Spam", Value: pct(result.Toxicity.SpamPct)},
		},
	})

	if len(result.Keywords) > 0 {
		sec := Section{Kind: SectionKeywords, Title: "Keywords"}
		for _, kw := range result.Keywords {
			sec.Rows = append(sec.Rows, Row{Label: kw.Word, Value: strconv.Itoa(kw.Count)})
		}
		doc.Sections = append(doc.Sections, sec)
	}

	if result.Emotions != nil {
		sec := Section{
			Kind:  SectionEmotions,
			Title: "Emotions",
			Rows:  []Row{{Label: "Dominant", Value: orDash(result.Emotions.Dominant)}},
		}
		for _, name := range sortedKeys(result.Emotions.Distribution) {
			sec.Rows = append(sec.Rows, Row{Label: name, Value: pct(result.Emotions.Distribution[name])})
		}
		doc.Sections = append(doc.Sections, sec)
	}

	doc.Sections = append(doc.Sections, Section{
		Kind:  SectionPatterns,
		Title: "Patterns",
		Rows: []Row{
			{Label: "Average length", Value: score(result.Patterns.AverageLength)},
			{Label: "Questions", Value: pct(result.Patterns.QuestionPct)},
			{Label: "Exclamations", Value: pct(result.Patterns.ExclamationPct)},
		},
	})

	if result.WordCloud != "" {
		doc.Sections = append(doc.Sections, Section{
			Kind:  SectionWordCloud,
			Title: "Word cloud",
			Lines: []string{result.WordCloud},
		})
	}

	meta := Section{Kind: SectionMeta, Title: "Details"}
	if result.Meta.ContentID != "" {
		meta.Rows = append(meta.Rows, Row{Label: "Content", Value: result.Meta.ContentID})
	}
	if result.Meta.CommentsReceived > 0 {
		meta.Rows = append(meta.Rows, Row{Label: "Comments received", Value: strconv.Itoa(result.Meta.CommentsReceived)})
	}
	if result.Meta.ServiceVersion != "" {
		meta.Rows = append(meta.Rows, Row{Label: "Service version", Value: result.Meta.ServiceVersion})
	}
	if len(meta.Rows) > 0 {
		doc.Sections = append(doc.Sections, meta)
	}

	return doc
}

// RenderError projects a failure into a single-section document with a
// short human-readable message.
func RenderError(err error) Document {
	return Document{
		Title: "Comment analysis",
		Sections: []Section{{
			Kind:  SectionError,
			Title: "Error",
			Lines: []string{ErrorMessage(err)},
		}},
	}
}

// ErrorMessage maps an error to the short message shown to users.
func ErrorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}

	e, ok := envelope.AsError(err)
	if !ok {
		return err.Error()
	}
	switch e.Kind {
	case envelope.KindNoComments:
		return "No comments found to analyze."
	case envelope.KindServiceUnreachable:
		return "Could not reach the analysis service."
	case envelope.KindServiceError:
		return fmt.Sprintf("The analysis service returned an error (status %d).", e.Status)
	case envelope.KindMalformedResponse:
		return "The analysis service returned an unexpected response."
	case envelope.KindServiceReportedFailure:
		return e.Message
	case envelope.KindTimeout:
		return "The analysis request timed out."
	case envelope.KindUnknownMessageType:
		return "Unknown request type."
	default:
		return e.Message
	}
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
