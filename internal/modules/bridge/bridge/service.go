package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tubelens/core/internal/modules/analysis/remote"
	"github.com/tubelens/core/internal/modules/analysis/results"
	"github.com/tubelens/core/internal/modules/system/core/settings"
	"github.com/tubelens/core/internal/pkg/envelope"
	"github.com/tubelens/core/internal/pkg/extract"
	"go.uber.org/zap"
)

// serviceDownMessage is the one hint a page user gets when the analysis
// service does not answer the health probe. Starting the service is the
// common first-run fix, so this replaces the whole error taxonomy.
const serviceDownMessage = "analysis service is not running. start the service and try again"

// Service implements the four message handlers over the settings store,
// the remote client, and the result cache. Settings are re-read on every
// message so an update takes effect on the next request.
type Service struct {
	settings *settings.Service
	client   *remote.Client
	results  *results.Service
	events   Events
	logger   *zap.Logger
}

func NewService(settingsSvc *settings.Service, client *remote.Client, resultsSvc *results.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		settings: settingsSvc,
		client:   client,
		results:  resultsSvc,
		logger:   logger,
	}
}

// SetEvents wires completion notifications. Called once during startup.
func (s *Service) SetEvents(events Events) { s.events = events }

// RegisterAll binds every supported message type on r.
func (s *Service) RegisterAll(r *Router) {
	r.Register(envelope.MessageAnalyzeComments, s.analyzeComments)
	r.Register(envelope.MessageGetSettings, s.getSettings)
	r.Register(envelope.MessageUpdateSettings, s.updateSettings)
	r.Register(envelope.MessageHealthCheck, s.healthCheck)
}

func (s *Service) analyzeComments(ctx context.Context, data json.RawMessage) (any, error) {
	var payload analyzePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("invalid analyze payload: %v", err)
		}
	}

	comments := payload.Comments
	if len(comments) == 0 && payload.HTML != "" {
		comments = extract.ExtractString(payload.HTML)
	}

	current, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	result, err := s.client.Analyze(ctx, current, remote.Batch{
		ContentID: payload.ContentID,
		Title:     payload.Title,
		Comments:  comments,
	})
	if err != nil {
		return nil, err
	}

	// The result cache is keyed by content id; without one there is
	// nothing a later request could re-read. A failed write must not eat
	// the analysis the user is waiting for.
	if payload.ContentID != "" && s.results != nil {
		record, err := s.results.Upsert(ctx, payload.ContentID, payload.Title, *result)
		if err != nil {
			s.logger.Warn("result cache write failed",
				zap.String("content_id", payload.ContentID), zap.Error(err))
		} else if s.events != nil {
			go s.events.AnalysisCompleted(record)
		}
	}

	return result, nil
}

func (s *Service) getSettings(_ context.Context, _ json.RawMessage) (any, error) {
	return s.settings.Get()
}

func (s *Service) updateSettings(_ context.Context, data json.RawMessage) (any, error) {
	// An empty patch is a no-op that still answers with the current
	// record.
	partial := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &partial); err != nil {
			return nil, fmt.Errorf("invalid settings payload: %v", err)
		}
	}
	return s.settings.Patch(partial)
}

func (s *Service) healthCheck(ctx context.Context, _ json.RawMessage) (any, error) {
	current, err := s.settings.Get()
	if err != nil {
		return nil, err
	}

	status, err := s.client.Health(ctx, current)
	if err != nil {
		if e, ok := envelope.AsError(err); ok {
			return nil, envelope.NewError(e.Kind, serviceDownMessage)
		}
		return nil, envelope.NewError(envelope.KindServiceUnreachable, serviceDownMessage)
	}
	return status, nil
}
