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

type primitiveWithBorder interface {
	tview.Primitive
	SetBorder(show bool) *tview.Box
}

// CenterWidget places p in the middle of the screen at the given size.
func CenterWidget(width, height int, p tview.Primitive) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func pageDefaults[S primitiveWithBorder](title string, s S) S {
	s.SetBorder(true)
	if title != "" {
		if b, ok := any(s).(interface {
			SetTitle(title string) *tview.Box
		}); ok {
			b.SetTitle(" " + title + " ")
		}
	}
	return s
}

func styleButton(b *tview.Button) *tview.Button {
	t := CurrentTheme()
	b.SetStyle(tcell.StyleDefault.Background(t.ButtonBgColor).Foreground(t.ButtonText))
	b.SetActivatedStyle(tcell.StyleDefault.Background(t.LabelColor).Foreground(t.BgColor))
	b.SetDisabledStyle(tcell.StyleDefault.Background(t.FieldBgColor).Foreground(tcell.ColorGray))
	return b
}

// SetTheme applies the named theme, falling back to the default for
// unknown names.
func SetTheme(name string) {
	if !SetCurrentTheme(name) {
		SetCurrentTheme(ThemeNameDefault)
	}
	ApplyTheme()
}
