// Package notifications builds stream notifications and posts them without
// ever blocking the caller.
package notifications

import (
	"encoding/json"

	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/rs/zerolog/log"
)

func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("failed to marshal notification params")
			return
		}
		params = data
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func ReadingsUpdated(ns chan<- models.Notification, payload models.ReadingParams) {
	sendNotification(ns, models.NotificationReadingsUpdated, payload)
}

func AlertsRaised(ns chan<- models.Notification, payload models.AlertParams) {
	sendNotification(ns, models.NotificationAlertsRaised, payload)
}

func MonitorStarted(ns chan<- models.Notification, port string) {
	sendNotification(ns, models.NotificationMonitorStarted, models.MonitorParams{Port: port})
}

func MonitorStopped(ns chan<- models.Notification, port string) {
	sendNotification(ns, models.NotificationMonitorStopped, models.MonitorParams{Port: port})
}

func MonitorFailed(ns chan<- models.Notification, port string, err error) {
	payload := models.MonitorParams{Port: port}
	if err != nil {
		payload.Error = err.Error()
	}
	sendNotification(ns, models.NotificationMonitorFailed, payload)
}

func IdleLockState(ns chan<- models.Notification, payload models.IdleLockParams) {
	sendNotification(ns, models.NotificationIdleLockState, payload)
}

func IdleLockLocked(ns chan<- models.Notification, err error) {
	if err == nil {
		sendNotification(ns, models.NotificationIdleLockLocked, nil)
		return
	}
	sendNotification(ns, models.NotificationIdleLockLocked, models.IdleLockParams{
		State: "disarmed",
		Error: err.Error(),
	})
}

func SettingsUpdated(ns chan<- models.Notification, payload models.SettingsResponse) {
	sendNotification(ns, models.NotificationSettingsUpdated, payload)
}
