// Pulsewatch
// Copyright (c) 2026 The Pulsewatch Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Pulsewatch.
//
// Pulsewatch is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Pulsewatch is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Pulsewatch.  If not, see <http://www.gnu.org/licenses/>.

// Package tui is the terminal dashboard: live readings, the alert log and
// the monitor settings.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/readings"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	NoPortsLabel  = "(no ports found)"
	maxAlertLines = 200
	timeoutWidth  = 5
)

var timeoutUnits = []string{config.UnitSeconds, config.UnitMinutes}

// Controller is the part of the service the dashboard drives.
type Controller interface {
	Status() models.StatusResponse
	Ports() ([]helpers.SerialPortInfo, error)
	StartMonitor(port string) error
	StopMonitor() error
	ApplySettings(req models.SettingsRequest) (models.SettingsResponse, error)
}

// Dashboard owns every widget on screen. Apart from NewDashboard and Run,
// its methods must be called from the tview event goroutine.
type Dashboard struct {
	app       *tview.Application
	ctrl      Controller
	root      *tview.Flex
	form      *tview.Form
	ports     *tview.DropDown
	finger    *tview.Checkbox
	idleLock  *tview.Checkbox
	timeout   *tview.InputField
	unit      *tview.DropDown
	hr        *tview.TextView
	spo2      *tview.TextView
	status    *tview.TextView
	idle      *tview.TextView
	alerts    *tview.TextView
	startBtn  *tview.Button
	stopBtn   *tview.Button
	portNames []string
	running   bool
	// syncing is set while widgets are updated from service state, so
	// their changed funcs don't write that state back.
	syncing bool
}

// NewDashboard builds the widgets and loads the current state from ctrl.
func NewDashboard(app *tview.Application, ctrl Controller, unit string) *Dashboard {
	d := &Dashboard{app: app, ctrl: ctrl}

	d.hr = readingView("Heart rate")
	d.spo2 = readingView("SpO2 %")
	d.status = tview.NewTextView().SetDynamicColors(true)
	d.idle = tview.NewTextView().SetDynamicColors(true)
	d.alerts = pageDefaults("Alerts", tview.NewTextView())
	d.alerts.SetDynamicColors(true).SetMaxLines(maxAlertLines)

	d.ports = tview.NewDropDown().SetLabel("Port ")
	d.finger = tview.NewCheckbox().SetLabel("Finger detection ")
	d.finger.SetChangedFunc(func(bool) { d.applySettings() })
	d.idleLock = tview.NewCheckbox().SetLabel("Idle lock ")
	d.idleLock.SetChangedFunc(func(bool) { d.applySettings() })
	d.timeout = tview.NewInputField().
		SetLabel("Idle timeout ").
		SetFieldWidth(timeoutWidth).
		SetAcceptanceFunc(func(text string, ch rune) bool {
			return len(text) <= 3 && ch >= '0' && ch <= '9'
		})
	d.timeout.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			d.applySettings()
		}
	})
	d.unit = tview.NewDropDown().SetLabel("Unit ").SetOptions(timeoutUnits, nil)
	d.unit.SetCurrentOption(unitIndex(unit))

	d.form = pageDefaults("Monitor", tview.NewForm())
	d.form.
		AddFormItem(d.ports).
		AddFormItem(d.finger).
		AddFormItem(d.idleLock).
		AddFormItem(d.timeout).
		AddFormItem(d.unit).
		AddButton("Start", d.startMonitor).
		AddButton("Stop", d.stopMonitor).
		AddButton("Apply", d.applySettings).
		AddButton("Refresh", d.RefreshPorts).
		AddButton("Exit", d.app.Stop)
	d.startBtn = styleButton(d.form.GetButton(d.form.GetButtonIndex("Start")))
	d.stopBtn = styleButton(d.form.GetButton(d.form.GetButtonIndex("Stop")))
	for _, label := range []string{"Apply", "Refresh", "Exit"} {
		styleButton(d.form.GetButton(d.form.GetButtonIndex(label)))
	}

	help := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText("Tab: next field   F5: refresh ports   Esc: exit")

	d.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(d.hr, 0, 1, false).
			AddItem(d.spo2, 0, 1, false), 5, 0, false).
		AddItem(d.status, 1, 0, false).
		AddItem(d.idle, 1, 0, false).
		AddItem(tview.NewFlex().
			AddItem(d.form, 0, 1, true).
			AddItem(d.alerts, 0, 1, false), 0, 1, true).
		AddItem(help, 1, 0, false)
	d.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			d.RefreshPorts()
			return nil
		case tcell.KeyEscape:
			d.app.Stop()
			return nil
		default:
			return event
		}
	})

	d.RefreshPorts()
	d.loadStatus()
	return d
}

func readingView(title string) *tview.TextView {
	tv := pageDefaults(title, tview.NewTextView())
	tv.SetTextAlign(tview.AlignCenter).SetText(readings.Placeholder)
	return tv
}

func unitIndex(unit string) int {
	for i, u := range timeoutUnits {
		if u == unit {
			return i
		}
	}
	return 0
}

// Root is the primitive to hand to tview.Application.SetRoot.
func (d *Dashboard) Root() tview.Primitive {
	return d.root
}

// Run queues every notification onto the UI goroutine until ctx is
// cancelled or notifs is closed.
func (d *Dashboard) Run(ctx context.Context, notifs <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifs:
			if !ok {
				return
			}
			d.app.QueueUpdateDraw(func() {
				d.HandleNotification(n)
			})
		}
	}
}

// RefreshPorts reloads the port list, keeping the current selection when
// it is still present.
func (d *Dashboard) RefreshPorts() {
	_, current := d.ports.GetCurrentOption()
	if current == "" || current == NoPortsLabel {
		current = d.ctrl.Status().Port
	}

	ports, err := d.ctrl.Ports()
	if err != nil {
		log.Error().Err(err).Msg("failed to list serial ports")
		d.setStatus(CurrentTheme().AlertColor, "Failed to list serial ports: "+err.Error())
	}
	d.portNames = helpers.SerialPortNames(ports)

	if len(d.portNames) == 0 {
		d.ports.SetOptions([]string{NoPortsLabel}, nil)
		d.ports.SetCurrentOption(0)
		d.updateButtons()
		return
	}

	d.ports.SetOptions(d.portNames, nil)
	selected := 0
	for i, name := range d.portNames {
		if name == current {
			selected = i
		}
	}
	d.ports.SetCurrentOption(selected)
	d.updateButtons()
}

// SelectedPort is the port shown in the drop-down, or "" when none exist.
func (d *Dashboard) SelectedPort() string {
	if len(d.portNames) == 0 {
		return ""
	}
	_, name := d.ports.GetCurrentOption()
	return name
}

func (d *Dashboard) loadStatus() {
	st := d.ctrl.Status()
	d.setReadings(st.HeartRateText, st.SpO2Text)
	d.sync(func() {
		d.finger.SetChecked(st.FingerDetection)
		d.idleLock.SetChecked(st.IdleLock.Enabled)
		d.timeout.SetText(strconv.Itoa(st.IdleLock.Timeout))
	})
	d.setIdle(st.IdleLock)
	d.setRunning(st.State == "running")

	t := CurrentTheme()
	switch {
	case st.LastError != "":
		d.setStatus(t.AlertColor, st.LastError)
	case d.running:
		d.setStatus(t.OKColor, "Monitoring "+st.Port)
	default:
		d.setStatus(t.TextColor, "Stopped")
	}
}

func (d *Dashboard) startMonitor() {
	port := d.SelectedPort()
	if port == "" {
		return
	}
	if err := d.ctrl.StartMonitor(port); err != nil {
		d.setStatus(CurrentTheme().AlertColor, err.Error())
		return
	}
	d.setRunning(true)
	d.setStatus(CurrentTheme().OKColor, "Monitoring "+port)
}

func (d *Dashboard) stopMonitor() {
	if err := d.ctrl.StopMonitor(); err != nil {
		d.setStatus(CurrentTheme().AlertColor, err.Error())
	}
	d.setRunning(false)
	d.setReadings(readings.Placeholder, readings.Placeholder)
}

// sync runs fn with the settings callbacks muted.
func (d *Dashboard) sync(fn func()) {
	prev := d.syncing
	d.syncing = true
	defer func() { d.syncing = prev }()
	fn()
}

func (d *Dashboard) applySettings() {
	if d.syncing {
		return
	}
	finger := d.finger.IsChecked()
	lock := d.idleLock.IsChecked()
	timeout := d.timeout.GetText()
	_, unit := d.unit.GetCurrentOption()

	resp, err := d.ctrl.ApplySettings(models.SettingsRequest{
		FingerDetection: &finger,
		IdleLock:        &lock,
		IdleTimeout:     &timeout,
		IdleTimeoutUnit: &unit,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to apply settings")
		d.setStatus(CurrentTheme().AlertColor, "Failed to save settings: "+err.Error())
		return
	}
	d.setSettings(resp)
}

// HandleNotification updates the widgets for one service notification.
func (d *Dashboard) HandleNotification(n models.Notification) {
	t := CurrentTheme()

	switch n.Method {
	case models.NotificationReadingsUpdated:
		var p models.ReadingParams
		if !decode(n, &p) {
			return
		}
		d.setReadings(p.HeartRateText, p.SpO2Text)
	case models.NotificationAlertsRaised:
		var p models.AlertParams
		if !decode(n, &p) {
			return
		}
		d.addAlert(t.AlertColor, p.Time.Format("15:04:05"), fmt.Sprintf(
			"%s abnormal for %d readings (HR %d, SpO2 %d)",
			alertLabel(p.Kind), p.Run, p.HeartRate, p.SpO2,
		))
	case models.NotificationMonitorStarted:
		var p models.MonitorParams
		if !decode(n, &p) {
			return
		}
		d.setRunning(true)
		d.setStatus(t.OKColor, "Monitoring "+p.Port)
	case models.NotificationMonitorStopped:
		d.setRunning(false)
		d.setReadings(readings.Placeholder, readings.Placeholder)
		d.setStatus(t.TextColor, "Stopped")
	case models.NotificationMonitorFailed:
		var p models.MonitorParams
		if !decode(n, &p) {
			return
		}
		d.setRunning(d.ctrl.Status().State == "running")
		if !d.running {
			d.setReadings(readings.Placeholder, readings.Placeholder)
		}
		d.setStatus(t.AlertColor, fmt.Sprintf("Sensor error on %s: %s", p.Port, p.Error))
	case models.NotificationIdleLockState:
		var p models.IdleLockParams
		if !decode(n, &p) {
			return
		}
		d.setIdle(p)
	case models.NotificationIdleLockLocked:
		var p models.IdleLockParams
		if len(n.Params) > 0 && !decode(n, &p) {
			return
		}
		if p.Error != "" {
			d.setStatus(t.AlertColor, "Failed to lock screen: "+p.Error)
			return
		}
		d.addAlert(t.WarningColor, "", "Screen locked after idle timeout")
	case models.NotificationSettingsUpdated:
		var p models.SettingsResponse
		if !decode(n, &p) {
			return
		}
		d.setSettings(p)
	default:
		log.Debug().Str("method", n.Method).Msg("dashboard ignoring notification")
	}
}

func decode(n models.Notification, v any) bool {
	if err := json.Unmarshal(n.Params, v); err != nil {
		log.Warn().Err(err).Str("method", n.Method).Msg("failed to decode notification params")
		return false
	}
	return true
}

func alertLabel(kind string) string {
	switch kind {
	case "hr":
		return "Heart rate"
	case "spo2":
		return "SpO2"
	default:
		return kind
	}
}

func (d *Dashboard) setReadings(hr, spo2 string) {
	d.hr.SetText("\n" + hr)
	d.spo2.SetText("\n" + spo2)
}

func (d *Dashboard) setSettings(s models.SettingsResponse) {
	d.sync(func() {
		d.finger.SetChecked(s.FingerDetection)
		d.idleLock.SetChecked(s.IdleLock)
		d.timeout.SetText(strconv.Itoa(s.IdleTimeout))
		d.unit.SetCurrentOption(unitIndex(s.IdleTimeoutUnit))
	})
	if s.IdleTimeoutReverted {
		d.setStatus(CurrentTheme().WarningColor, fmt.Sprintf(
			"Idle timeout must be a number from 1 to 999, reset to %d", s.IdleTimeout,
		))
	}
}

func (d *Dashboard) setIdle(p models.IdleLockParams) {
	if !p.Enabled {
		d.idle.SetText("Idle lock: off")
		return
	}
	d.idle.SetText(fmt.Sprintf("Idle lock: %s (%d)", p.State, p.Timeout))
}

func (d *Dashboard) setStatus(color tcell.Color, msg string) {
	d.status.SetText(fmt.Sprintf("[%s]%s[-]", color.String(), tview.Escape(msg)))
}

func (d *Dashboard) addAlert(color tcell.Color, stamp, msg string) {
	line := tview.Escape(msg)
	if stamp != "" {
		line = stamp + " " + line
	}
	_, _ = fmt.Fprintf(d.alerts, "[%s]%s[-]\n", color.String(), line)
	d.alerts.ScrollToEnd()
}

func (d *Dashboard) setRunning(running bool) {
	d.running = running
	d.updateButtons()
}

func (d *Dashboard) updateButtons() {
	if d.startBtn == nil {
		return
	}
	d.startBtn.SetDisabled(d.running || len(d.portNames) == 0)
	d.stopBtn.SetDisabled(!d.running)
	d.ports.SetDisabled(d.running)
}

// Running reports whether the dashboard shows an active session.
func (d *Dashboard) Running() bool {
	return d.running
}

// Run shows the dashboard until the user exits or ctx is cancelled.
func Run(
	ctx context.Context,
	cfg *config.Instance,
	ctrl Controller,
	notifs <-chan models.Notification,
) error {
	SetTheme(cfg.UITheme())

	app := tview.NewApplication()
	d := NewDashboard(app, ctrl, cfg.IdleTimeoutUnit())
	app.SetRoot(d.Root(), true).EnableMouse(true)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.Run(ctx, notifs)
	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	if err := app.Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}
