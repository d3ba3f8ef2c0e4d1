package models

import (
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/helpers"
)

type ReadingParams struct {
	Time          time.Time `json:"time"`
	HeartRateText string    `json:"heartRateText"`
	SpO2Text      string    `json:"spo2Text"`
	HeartRate     int       `json:"heartRate"`
	SpO2          int       `json:"spo2"`
	FingerPresent bool      `json:"fingerPresent"`
}

type AlertParams struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	HeartRate int       `json:"heartRate"`
	SpO2      int       `json:"spo2"`
	Run       int       `json:"run"`
}

type MonitorParams struct {
	Port  string `json:"port"`
	Error string `json:"error,omitempty"`
}

type IdleLockParams struct {
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Timeout int    `json:"timeout"`
	Enabled bool   `json:"enabled"`
}

type CountersResponse struct {
	HRAbnormalRun   int `json:"hrAbnormalRun"`
	SpO2AbnormalRun int `json:"spo2AbnormalRun"`
}

type StatusResponse struct {
	LastReading     *ReadingParams   `json:"lastReading,omitempty"`
	Version         string           `json:"version"`
	State           string           `json:"state"`
	Port            string           `json:"port,omitempty"`
	HeartRateText   string           `json:"heartRateText"`
	SpO2Text        string           `json:"spo2Text"`
	LastError       string           `json:"lastError,omitempty"`
	IdleLock        IdleLockParams   `json:"idleLock"`
	Counters        CountersResponse `json:"counters"`
	FingerDetection bool             `json:"fingerDetection"`
}

type PortsResponse struct {
	Ports []helpers.SerialPortInfo `json:"ports"`
}

type StartMonitorRequest struct {
	Port string `json:"port" validate:"required,max=256,portpath"`
}

type SettingsRequest struct {
	FingerDetection *bool   `json:"finger_detection"`
	IdleLock        *bool   `json:"idle_lock"`
	IdleTimeout     *string `json:"idle_timeout" validate:"omitempty,max=16"`
	IdleTimeoutUnit *string `json:"idle_timeout_unit" validate:"omitempty,timeoutunit"`
}

type SettingsResponse struct {
	IdleTimeoutUnit     string `json:"idle_timeout_unit"`
	IdleTimeout         int    `json:"idle_timeout"`
	FingerDetection     bool   `json:"finger_detection"`
	IdleLock            bool   `json:"idle_lock"`
	IdleTimeoutReverted bool   `json:"idle_timeout_reverted"`
}
