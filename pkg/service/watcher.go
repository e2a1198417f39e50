// Receiptd
// Copyright (c) 2026 The Kioskworks Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Receiptd.
//
// Receiptd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Receiptd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Receiptd.  If not, see <http://www.gnu.org/licenses/>.

package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const devDir = "/dev"

// DeviceWatcher nudges the engine when a printer-looking device node
// appears under /dev, so a replug is picked up without waiting out the
// reconnect backoff. Removal is not watched: the status probes notice a
// vanished device on their own.
type DeviceWatcher struct {
	watcher  *fsnotify.Watcher
	nudge    func()
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDeviceWatcher(nudge func()) *DeviceWatcher {
	return &DeviceWatcher{
		nudge:    nudge,
		stopChan: make(chan struct{}),
	}
}

func (w *DeviceWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(devDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", devDir, err)
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.loop()
	log.Debug().Str("dir", devDir).Msg("device watcher started")
	return nil
}

func (w *DeviceWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.wg.Wait()
	})
}

func (w *DeviceWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !printerNode(event.Name) {
				continue
			}
			log.Info().Str("device", event.Name).Msg("printer device node appeared")
			w.nudge()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("device watcher error")
		}
	}
}

// printerNode matches the device names USB printers and serial adapters
// show up as on Linux.
func printerNode(path string) bool {
	name := filepath.Base(path)
	for _, prefix := range []string{"ttyUSB", "ttyACM", "usblp", "lp"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Nudge asks the engine to retry a pending reconnect right away.
func (m *Manager) Nudge() {
	m.send(evNudge{})
}
