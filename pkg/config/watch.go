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

package config

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// reloadDelay is how long the file must stay quiet before it is reloaded,
// so an editor's partial writes are not loaded.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the config whenever the file is edited on disk and calls
// onChange after each successful reload. Writes made by Save are ignored.
// It blocks until ctx is done.
func (c *Instance) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("failed to close config watcher")
		}
	}()

	// Editors often replace the file, so watch the directory.
	target := filepath.Clean(c.cfgPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	log.Debug().Msgf("watching config file: %s", target)

	settled := make(chan struct{}, 1)
	var timer clockwork.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = c.clock.AfterFunc(reloadDelay, func() {
					select {
					case settled <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(reloadDelay)
			}
		case <-settled:
			changed, err := c.reloadIfChanged()
			if err != nil {
				log.Warn().Err(err).Msg("ignoring config change")
				continue
			}
			if !changed {
				continue
			}
			log.Info().Msg("config reloaded from disk")
			if onChange != nil {
				onChange()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(watchErr).Msg("error in config watcher")
		}
	}
}

func (c *Instance) reloadIfChanged() (bool, error) {
	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	c.mu.RLock()
	same := bytes.Equal(data, c.written)
	c.mu.RUnlock()
	if same {
		return false, nil
	}

	if err := c.Load(); err != nil {
		return false, err
	}
	return true, nil
}
