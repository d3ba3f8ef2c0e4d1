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

package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds the colours used by every widget in the dashboard.
type Theme struct {
	Name          string
	BgColor       tcell.Color
	BorderColor   tcell.Color
	TextColor     tcell.Color
	LabelColor    tcell.Color
	FieldBgColor  tcell.Color
	ButtonBgColor tcell.Color
	ButtonText    tcell.Color
	AlertColor    tcell.Color
	WarningColor  tcell.Color
	OKColor       tcell.Color
}

const (
	ThemeNameDefault      = "default"
	ThemeNameHighContrast = "high_contrast"
)

var ThemeDefault = Theme{
	Name:          ThemeNameDefault,
	BgColor:       tcell.ColorDarkBlue,
	BorderColor:   tcell.ColorLightYellow,
	TextColor:     tcell.ColorWhite,
	LabelColor:    tcell.ColorLightYellow,
	FieldBgColor:  tcell.ColorNavy,
	ButtonBgColor: tcell.ColorWhite,
	ButtonText:    tcell.ColorDarkBlue,
	AlertColor:    tcell.ColorRed,
	WarningColor:  tcell.ColorYellow,
	OKColor:       tcell.ColorGreen,
}

// ThemeHighContrast is for bedside displays viewed from a distance.
var ThemeHighContrast = Theme{
	Name:          ThemeNameHighContrast,
	BgColor:       tcell.ColorBlack,
	BorderColor:   tcell.ColorWhite,
	TextColor:     tcell.ColorWhite,
	LabelColor:    tcell.ColorYellow,
	FieldBgColor:  tcell.ColorDarkSlateGray,
	ButtonBgColor: tcell.ColorYellow,
	ButtonText:    tcell.ColorBlack,
	AlertColor:    tcell.ColorRed,
	WarningColor:  tcell.ColorOrange,
	OKColor:       tcell.ColorLime,
}

var themes = map[string]*Theme{
	ThemeNameDefault:      &ThemeDefault,
	ThemeNameHighContrast: &ThemeHighContrast,
}

var currentTheme = &ThemeDefault

// CurrentTheme returns the active theme.
func CurrentTheme() *Theme {
	return currentTheme
}

// SetCurrentTheme switches to the named theme. Unknown names keep the
// current theme and return false.
func SetCurrentTheme(name string) bool {
	t, ok := themes[name]
	if !ok {
		return false
	}
	currentTheme = t
	return true
}

// ApplyTheme copies the active theme into tview's global styles. Call it
// before building any widgets.
func ApplyTheme() {
	t := currentTheme
	tview.Styles.PrimitiveBackgroundColor = t.BgColor
	tview.Styles.ContrastBackgroundColor = t.FieldBgColor
	tview.Styles.MoreContrastBackgroundColor = t.ButtonBgColor
	tview.Styles.BorderColor = t.BorderColor
	tview.Styles.TitleColor = t.BorderColor
	tview.Styles.GraphicsColor = t.BorderColor
	tview.Styles.PrimaryTextColor = t.TextColor
	tview.Styles.SecondaryTextColor = t.LabelColor
	tview.Styles.TertiaryTextColor = t.OKColor
	tview.Styles.InverseTextColor = t.ButtonText
	tview.Styles.ContrastSecondaryTextColor = t.LabelColor
}
