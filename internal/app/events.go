package app

import (
	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/models"
	"github.com/tubelens/core/internal/modules/gateway/gateway"
	"github.com/tubelens/core/internal/modules/gateway/notify"
)

// eventFanout pushes domain events to connected sockets and to the notify
// pipeline. The hub is nil when the gateway is disabled.
type eventFanout struct {
	hub    *gateway.Hub
	notify *notify.Service
}

// AnalysisCompleted lands in the video room of the analyzed content and in
// the admin namespace, then triggers webhooks.
func (f *eventFanout) AnalysisCompleted(record *models.AnalysisRecord) {
	if record == nil {
		return
	}
	if f.hub != nil {
		f.hub.BroadcastVideo(record.ContentID, gateway.EventAnalysisComplete, record)
		f.hub.BroadcastAdmin(gateway.EventAnalysisComplete, record)
	}
	if f.notify != nil {
		f.notify.OnAnalysisCompleted(record)
	}
}

// SettingsUpdated goes to every connected client, then triggers webhooks.
func (f *eventFanout) SettingsUpdated(current config.Settings) {
	if f.hub != nil {
		f.hub.Broadcast(gateway.EventSettingsUpdate, current, "")
	}
	if f.notify != nil {
		f.notify.OnSettingsUpdated(current)
	}
}
