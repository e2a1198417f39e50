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

// monitorDebounce coalesces monitor start requests: connect completion,
// config reload and user requests can all land within a few hundred
// milliseconds and only the newest interval should win.
const monitorDebounce = 300 * time.Millisecond

type monitorState struct {
	timer         clockwork.Timer
	debounceTimer clockwork.Timer
	interval      time.Duration
	pending       time.Duration
	seq           uint64
	debounceSeq   uint64
	active        bool
	// probePending skips a tick whose predecessor has not come back yet,
	// so a slow device never piles probes up in the gate queue.
	probePending bool
}

// requestMonitorStart schedules monitoring activation after the
// debounce window. While the monitor is already running this is a
// no-op; starting is not restarting.
func (m *Manager) requestMonitorStart(interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.MonitorInterval()
	}
	if m.monitor.active {
		return
	}

	m.stopTimer(&m.monitor.debounceTimer)
	m.monitor.debounceSeq++
	m.monitor.pending = interval
	seq := m.monitor.debounceSeq
	m.monitor.debounceTimer = m.clock.AfterFunc(monitorDebounce, func() {
		m.deliver(evMonitorDebounce{seq: seq})
	})
}

func (m *Manager) handleMonitorDebounce(seq uint64) {
	if seq != m.monitor.debounceSeq {
		return
	}
	m.monitor.debounceTimer = nil
	if m.monitor.active {
		return
	}
	// the connection can die inside the debounce window
	if m.conn != printers.StateConnected {
		return
	}

	m.monitor.active = true
	m.monitor.interval = m.monitor.pending
	m.st.SetMonitoring(true, m.monitor.interval)
	log.Debug().Dur("interval", m.monitor.interval).Msg("status monitor started")

	m.monitor.probePending = true
	m.issueProbe(nil, true)
	m.armMonitorTick()
}

func (m *Manager) armMonitorTick() {
	m.stopTimer(&m.monitor.timer)
	m.monitor.seq++
	seq := m.monitor.seq
	m.monitor.timer = m.clock.AfterFunc(m.monitor.interval, func() {
		m.deliver(evMonitorTick{seq: seq})
	})
}

func (m *Manager) handleMonitorTick(seq uint64) {
	if seq != m.monitor.seq || !m.monitor.active {
		return
	}
	if m.conn != printers.StateConnected {
		m.stopMonitor()
		return
	}
	if !m.monitor.probePending {
		m.monitor.probePending = true
		m.issueProbe(nil, true)
	} else {
		log.Debug().Msg("previous status probe still in flight, skipping tick")
	}
	m.armMonitorTick()
}

// stopMonitor cancels both timers and invalidates any fire already in
// the event queue. Idempotent.
func (m *Manager) stopMonitor() {
	m.stopTimer(&m.monitor.timer)
	m.stopTimer(&m.monitor.debounceTimer)
	m.monitor.seq++
	m.monitor.debounceSeq++
	m.monitor.probePending = false
	if m.monitor.active {
		m.monitor.active = false
		m.st.SetMonitoring(false, 0)
		log.Debug().Msg("status monitor stopped")
	}
}
