package webhook

import "time"

// Event names hooks can subscribe to. "all" is accepted as a wildcard.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventSettingsUpdated   = "settings.updated"
	EventHealthChanged     = "health.changed"
	EventBackupCompleted   = "backup.completed"
)

// CreateWebhookDTO is the request body for creating a webhook.
type CreateWebhookDTO struct {
	PayloadURL string   `json:"payloadUrl" binding:"required,url"`
	Events     []string `json:"events"     binding:"required,min=1"`
	Enabled    *bool    `json:"enabled"`
	Secret     string   `json:"secret"`
}

// UpdateWebhookDTO is the request body for updating a webhook.
type UpdateWebhookDTO struct {
	PayloadURL *string  `json:"payloadUrl"`
	Events     []string `json:"events"`
	Enabled    *bool    `json:"enabled"`
	Secret     *string  `json:"secret"`
}

// webhookResponse is the outbound representation of a webhook (no secret).
type webhookResponse struct {
	ID         string    `json:"id"`
	PayloadURL string    `json:"payloadUrl"`
	Events     []string  `json:"events"`
	Enabled    bool      `json:"enabled"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

// webhookEventEnum is the canonical list of supported event names.
var webhookEventEnum = []string{
	EventAnalysisCompleted,
	EventSettingsUpdated,
	EventHealthChanged,
	EventBackupCompleted,
}

// acceptedWebhookEvents is a set built from webhookEventEnum for O(1) lookup.
var acceptedWebhookEvents = func() map[string]struct{} {
	out := make(map[string]struct{}, len(webhookEventEnum))
	for _, event := range webhookEventEnum {
		out[event] = struct{}{}
	}
	return out
}()
