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

// Package systray is the desktop front end: a tray icon whose tooltip shows
// the latest reading and a menu to drive the monitor.
package systray

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"fyne.io/systray"
	"github.com/nixinwang/dialog"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/assets"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/command"
	"github.com/rs/zerolog/log"
	"golang.design/x/clipboard"
)

const appTitle = "Pulsewatch"

var ErrNoPort = errors.New("no serial port configured")

// Controller is the part of the service the tray drives.
type Controller interface {
	Status() models.StatusResponse
	StartMonitor(port string) error
	StopMonitor() error
	ApplySettings(req models.SettingsRequest) (models.SettingsResponse, error)
}

// Tray holds the menu actions. The fyne systray calls are confined to
// onReady so the actions can be tested without a desktop session.
type Tray struct {
	cfg       *config.Instance
	ctrl      Controller
	exec      command.Executor
	copy      func(data []byte) error
	showError func(title, msg string)
	showInfo  func(title, msg string)
	logDir    string
	goos      string
	alertOpen atomic.Bool
}

// New creates a tray using the real clipboard and message dialogs.
func New(cfg *config.Instance, ctrl Controller, exec command.Executor, logDir string) *Tray {
	return &Tray{
		cfg:    cfg,
		ctrl:   ctrl,
		exec:   exec,
		logDir: logDir,
		goos:   runtime.GOOS,
		copy:   writeClipboard,
		showError: func(title, msg string) {
			dialog.Message("%s", msg).Title(title).Error()
		},
		showInfo: func(title, msg string) {
			dialog.Message("%s", msg).Title(title).Info()
		},
	}
}

func writeClipboard(data []byte) error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	clipboard.Write(clipboard.FmtText, data)
	return nil
}

func openCommand(goos string) string {
	switch goos {
	case "windows":
		return "explorer"
	case "darwin":
		return "open"
	default:
		return "xdg-open"
	}
}

// Tooltip summarises the status in one line.
func Tooltip(st models.StatusResponse) string {
	if st.State != "running" {
		if st.LastError != "" {
			return appTitle + ": " + st.LastError
		}
		return appTitle + ": stopped"
	}
	return fmt.Sprintf("%s: HR %s, SpO2 %s%%", appTitle, st.HeartRateText, st.SpO2Text)
}

// ReadingText is what "Copy reading" puts on the clipboard.
func ReadingText(st models.StatusResponse) string {
	if st.LastReading == nil {
		return fmt.Sprintf("HR %s SpO2 %s", st.HeartRateText, st.SpO2Text)
	}
	r := st.LastReading
	return fmt.Sprintf("%s HR %s SpO2 %s%%", r.Time.Format(time.RFC3339), r.HeartRateText, r.SpO2Text)
}

// ToggleMonitor stops a running monitor, or starts one on the configured
// port.
func (t *Tray) ToggleMonitor() error {
	if t.ctrl.Status().State == "running" {
		if err := t.ctrl.StopMonitor(); err != nil {
			return fmt.Errorf("failed to stop monitor: %w", err)
		}
		return nil
	}

	port := t.cfg.SerialPort()
	if port == "" {
		return ErrNoPort
	}
	if err := t.ctrl.StartMonitor(port); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	return nil
}

// SetIdleLock switches the idle lock, keeping the saved timeout.
func (t *Tray) SetIdleLock(enabled bool) error {
	if _, err := t.ctrl.ApplySettings(models.SettingsRequest{IdleLock: &enabled}); err != nil {
		return fmt.Errorf("failed to set idle lock: %w", err)
	}
	return nil
}

// SetFingerDetection switches finger detection.
func (t *Tray) SetFingerDetection(enabled bool) error {
	if _, err := t.ctrl.ApplySettings(models.SettingsRequest{FingerDetection: &enabled}); err != nil {
		return fmt.Errorf("failed to set finger detection: %w", err)
	}
	return nil
}

// CopyReading puts the latest reading on the clipboard.
func (t *Tray) CopyReading() error {
	return t.copy([]byte(ReadingText(t.ctrl.Status())))
}

// Open hands path to the desktop's default application.
func (t *Tray) Open(ctx context.Context, path string) error {
	if err := t.exec.Run(ctx, openCommand(t.goos), path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

// Message returns the dialog text a notification should raise, if any.
// Readings only change the tooltip.
func Message(n models.Notification) (title, msg string, ok bool) {
	switch n.Method {
	case models.NotificationAlertsRaised:
		var p models.AlertParams
		if err := json.Unmarshal(n.Params, &p); err != nil {
			return "", "", false
		}
		return "Health alert", fmt.Sprintf(
			"%s abnormal for %d readings\nHR %d, SpO2 %d",
			alertLabel(p.Kind), p.Run, p.HeartRate, p.SpO2,
		), true
	case models.NotificationMonitorFailed:
		var p models.MonitorParams
		if err := json.Unmarshal(n.Params, &p); err != nil || p.Error == "" {
			return "", "", false
		}
		return "Sensor error", fmt.Sprintf("Monitoring %s failed:\n%s", p.Port, p.Error), true
	case models.NotificationIdleLockLocked:
		if len(n.Params) == 0 {
			return "", "", false
		}
		var p models.IdleLockParams
		if err := json.Unmarshal(n.Params, &p); err != nil || p.Error == "" {
			return "", "", false
		}
		return "Idle lock", "Failed to lock the screen:\n" + p.Error, true
	default:
		return "", "", false
	}
}

func alertLabel(kind string) string {
	if kind == "hr" {
		return "Heart rate"
	}
	return "SpO2"
}

// notify raises the dialog for n. At most one alert dialog is open at a
// time so a run of alerts doesn't stack windows.
func (t *Tray) notify(n models.Notification) {
	title, msg, show := Message(n)
	if !show {
		return
	}
	if n.Method != models.NotificationAlertsRaised {
		go t.showError(title, msg)
		return
	}
	if !t.alertOpen.CompareAndSwap(false, true) {
		log.Debug().Msg("alert dialog already open, skipping")
		return
	}
	go func() {
		defer t.alertOpen.Store(false)
		t.showError(title, msg)
	}()
}

func (t *Tray) report(err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg("tray action failed")
	t.showError(appTitle, err.Error())
}

type menu struct {
	toggle   *systray.MenuItem
	idleLock *systray.MenuItem
	finger   *systray.MenuItem
}

func (m *menu) refresh(st models.StatusResponse) {
	systray.SetTooltip(Tooltip(st))
	if st.State == "running" {
		m.toggle.SetTitle("Stop monitor")
	} else {
		m.toggle.SetTitle("Start monitor")
	}
	setChecked(m.idleLock, st.IdleLock.Enabled)
	setChecked(m.finger, st.FingerDetection)
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func (t *Tray) onReady(ctx context.Context, notifs <-chan models.Notification) func() {
	return func() {
		systray.SetIcon(assets.TrayIcon(t.goos))
		if t.goos != "darwin" {
			systray.SetTitle(appTitle)
		}

		m := &menu{
			toggle:   systray.AddMenuItem("Start monitor", "Start or stop reading the sensor"),
			idleLock: systray.AddMenuItemCheckbox("Idle lock", "Lock the screen when no finger is detected", false),
			finger:   systray.AddMenuItemCheckbox("Finger detection", "Use the sensor's finger flag for the idle lock", false),
		}
		mCopy := systray.AddMenuItem("Copy reading", "Copy the latest reading to the clipboard")
		systray.AddSeparator()
		mConfig := systray.AddMenuItem("Edit config", "Open the config file")
		mLog := systray.AddMenuItem("View log", "Open the log file")
		mVersion := systray.AddMenuItem("Version "+config.AppVersion, "")
		mVersion.Disable()
		mAbout := systray.AddMenuItem("About "+appTitle, "")
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Stop monitoring and quit")

		m.refresh(t.ctrl.Status())

		go func() {
			for {
				select {
				case <-ctx.Done():
					systray.Quit()
					return
				case n, ok := <-notifs:
					if !ok {
						return
					}
					m.refresh(t.ctrl.Status())
					t.notify(n)
				case <-m.toggle.ClickedCh:
					t.report(t.ToggleMonitor())
					m.refresh(t.ctrl.Status())
				case <-m.idleLock.ClickedCh:
					t.report(t.SetIdleLock(!m.idleLock.Checked()))
					m.refresh(t.ctrl.Status())
				case <-m.finger.ClickedCh:
					t.report(t.SetFingerDetection(!m.finger.Checked()))
					m.refresh(t.ctrl.Status())
				case <-mCopy.ClickedCh:
					t.report(t.CopyReading())
				case <-mConfig.ClickedCh:
					t.report(t.Open(ctx, t.cfg.Path()))
				case <-mLog.ClickedCh:
					t.report(t.Open(ctx, filepath.Join(t.logDir, config.LogFile)))
				case <-mAbout.ClickedCh:
					go t.showInfo("About "+appTitle, fmt.Sprintf(
						"%s\nVersion %s\n\nHeart rate and SpO2 monitor\nLicense: GPLv3",
						appTitle, config.AppVersion,
					))
				case <-mQuit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
	}
}

// Run shows the tray icon and blocks until the user quits or ctx is
// cancelled. It must be called from the main goroutine.
func (t *Tray) Run(ctx context.Context, notifs <-chan models.Notification) {
	systray.Run(t.onReady(ctx, notifs), func() {
		log.Info().Msg("tray exited")
	})
}
