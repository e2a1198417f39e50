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
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/printers"
)

type reconnectState struct {
	timer   clockwork.Timer
	seq     uint64
	attempt int
	active  bool
	// awaitingManualSelect stalls auto-connect when the selected device
	// vanished and more than one candidate is attached; picking one
	// blind risks feeding receipts to the wrong printer.
	awaitingManualSelect bool
}

// Backoff returns the delay before reconnect attempt n: base doubled
// per attempt, clamped to ceil. Attempt 0 waits base.
func Backoff(base, ceil time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if ceil < base {
		ceil = base
	}
	if attempt < 0 {
		attempt = 0
	}
	// compare before shifting: base<<attempt can overflow and wrap
	if attempt > 62 || base > ceil>>uint(attempt) {
		return ceil
	}
	return base << uint(attempt)
}

// startReconnect arms the scheduler if it is not already working.
func (m *Manager) startReconnect() {
	if m.reconnect.active {
		return
	}
	m.reconnect.active = true
	m.reconnect.attempt = 0
	m.armReconnect()
}

func (m *Manager) armReconnect() {
	m.stopTimer(&m.reconnect.timer)
	m.reconnect.seq++
	seq := m.reconnect.seq
	delay := Backoff(m.cfg.ReconnectBase(), m.cfg.ReconnectCap(), m.reconnect.attempt)
	log.Debug().
		Int("attempt", m.reconnect.attempt).
		Dur("delay", delay).
		Msg("reconnect scheduled")
	m.reconnect.timer = m.clock.AfterFunc(delay, func() {
		m.deliver(evReconnectTick{seq: seq})
	})
}

// stopReconnect disarms the scheduler and resets the backoff ladder.
func (m *Manager) stopReconnect() {
	m.stopTimer(&m.reconnect.timer)
	m.reconnect.seq++
	m.reconnect.attempt = 0
	m.reconnect.active = false
	m.reconnect.awaitingManualSelect = false
}

func (m *Manager) handleReconnectTick(seq uint64) {
	if seq != m.reconnect.seq || !m.reconnect.active {
		return
	}
	m.reconnect.timer = nil
	m.attemptReconnect()
}

// fireReconnectNow skips the rest of the current backoff wait.
func (m *Manager) fireReconnectNow() {
	if !m.reconnect.active {
		return
	}
	m.stopTimer(&m.reconnect.timer)
	m.reconnect.seq++
	m.attemptReconnect()
}

// attemptReconnect is one pass of the loop: enumerate, pick a target,
// connect. Picking follows the selection rules: a configured selection
// is honored exactly, a vanished selection is replaced only when the
// replacement is unambiguous.
func (m *Manager) attemptReconnect() {
	if m.conn == printers.StateConnected || m.conn == printers.StateConnecting {
		return
	}

	devices := m.refreshDevices()
	if len(devices) == 0 {
		m.reconnectFailedTick()
		return
	}

	target := ""
	switch {
	case m.selectedPath == "":
		target = devices[0].Path
	case devicePresent(devices, m.selectedPath):
		target = m.selectedPath
		m.reconnect.awaitingManualSelect = false
	case len(devices) == 1:
		log.Info().
			Str("old", m.selectedPath).
			Str("new", devices[0].Path).
			Msg("selected printer gone, switching to the only attached device")
		target = devices[0].Path
	default:
		if !m.reconnect.awaitingManualSelect {
			m.reconnect.awaitingManualSelect = true
			m.st.SetError("multiple printers attached, select one manually")
			log.Warn().
				Str("selected", m.selectedPath).
				Int("candidates", len(devices)).
				Msg("selected printer gone with multiple candidates attached")
		}
		// keep enumerating on the backoff cadence so a returning device
		// or a manual selection is picked up, but never connect blind
		m.reconnectFailedTick()
		return
	}

	m.handleConnect(target)
}

func devicePresent(devices []printers.Device, path string) bool {
	for _, d := range devices {
		if d.Path == path {
			return true
		}
	}
	return false
}

// reconnectFailedTick advances the ladder after a failed attempt. With
// a bounded attempt budget the scheduler parks in Error once spent; a
// device-watcher nudge or a user operation restarts it.
func (m *Manager) reconnectFailedTick() {
	if !m.reconnect.active {
		return
	}
	m.reconnect.attempt++
	if maxAttempts := m.cfg.ReconnectMaxAttempts(); maxAttempts > 0 &&
		m.reconnect.attempt >= maxAttempts {
		log.Warn().Int("attempts", m.reconnect.attempt).Msg("reconnect attempts exhausted")
		m.stopTimer(&m.reconnect.timer)
		m.reconnect.seq++
		m.reconnect.active = false
		m.conn = printers.StateError
		m.st.SetConnectionState(printers.StateError, m.selectedPath,
			"reconnect attempts exhausted")
		return
	}
	m.armReconnect()
}

// handleNudge reacts to a device node appearing. It only revives a
// parked or waiting scheduler; after a deliberate user disconnect the
// engine stays put.
func (m *Manager) handleNudge() {
	switch {
	case m.conn == printers.StateConnected || m.conn == printers.StateConnecting:
		return
	case m.reconnect.active:
		m.reconnect.attempt = 0
		m.fireReconnectNow()
	case m.conn == printers.StateError:
		m.reconnect.active = true
		m.reconnect.attempt = 0
		m.attemptReconnect()
	}
}
