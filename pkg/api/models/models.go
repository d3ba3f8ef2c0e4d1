package models

import (
	"encoding/json"
)

const (
	NotificationReadingsUpdated = "readings.updated"
	NotificationAlertsRaised    = "alerts.raised"
	NotificationMonitorStarted  = "monitor.started"
	NotificationMonitorStopped  = "monitor.stopped"
	NotificationMonitorFailed   = "monitor.failed"
	NotificationIdleLockState   = "idlelock.state"
	NotificationIdleLockLocked  = "idlelock.locked"
	NotificationSettingsUpdated = "settings.updated"
)

// AllNotifications lists every method that can appear on the stream.
var AllNotifications = []string{
	NotificationReadingsUpdated,
	NotificationAlertsRaised,
	NotificationMonitorStarted,
	NotificationMonitorStopped,
	NotificationMonitorFailed,
	NotificationIdleLockState,
	NotificationIdleLockLocked,
	NotificationSettingsUpdated,
}

type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
