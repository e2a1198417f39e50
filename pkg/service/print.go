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
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/printers"
)

// printResultHold is how long a terminal print state stays visible
// before the engine reverts to idle on its own.
const printResultHold = 3 * time.Second

type printJob struct {
	reply   chan error
	payload []byte
}

type printState struct {
	clearTimer clockwork.Timer
	job        *printJob
	clearSeq   uint64
}

func (m *Manager) setPrintState(ps printers.PrintState, msg string) {
	m.st.SetPrint(ps, msg)
}

// handlePrint runs a job through the gate: a fresh readiness probe
// first, the payload write only if the diagnosis came back ready. A job
// already in flight makes a new request a no-op rather than an error;
// the caller watches print state notifications either way.
func (m *Manager) handlePrint(e evPrint) {
	if m.print.job != nil {
		log.Debug().Msg("print requested while a job is in flight, ignoring")
		e.reply <- nil
		return
	}
	if m.conn != printers.StateConnected || m.sessionPath == "" {
		m.failPrint("printer not connected")
		e.reply <- ErrNotConnected
		return
	}
	if len(e.payload) == 0 {
		m.failPrint("empty print payload")
		e.reply <- fmt.Errorf("print: empty payload")
		return
	}

	m.stopTimer(&m.print.clearTimer)
	m.print.clearSeq++

	job := &printJob{payload: e.payload, reply: e.reply}
	m.print.job = job
	m.setPrintState(printers.PrintPrinting, "")

	session := m.session
	path := m.sessionPath
	go func() {
		snap := m.prober.Diagnose(m.runCtx, path)
		m.deliver(evValidated{job: job, snap: snap, session: session})
	}()
}

// handleValidate answers a standalone readiness check. A disconnected
// engine answers false immediately, no probe is issued.
func (m *Manager) handleValidate(e evValidate) {
	if m.conn != printers.StateConnected || m.sessionPath == "" || !m.gate.Connected() {
		e.reply <- false
		return
	}
	session := m.session
	path := m.sessionPath
	tag := e.tag
	go func() {
		snap := m.prober.Diagnose(m.runCtx, path)
		if !snap.Ready() {
			log.Info().
				Str("tag", tag).
				Str("kind", string(snap.ErrorKind)).
				Msg("printer not ready at critical point")
		}
		m.deliver(evValidated{reply: e.reply, snap: snap, session: session})
	}()
}

// handleValidated lands a readiness probe, for a queued job or a bare
// validate. The diagnosis flows through the same snapshot path as every
// other probe, so a fatal result here tears the connection down too.
func (m *Manager) handleValidated(e evValidated) {
	if e.session == m.session {
		m.applySnapshot(e.snap)
	}

	// re-check after applying: the snapshot itself may have dropped the
	// connection, and the device can detach between probe and print
	ready := e.session == m.session &&
		m.conn == printers.StateConnected &&
		m.gate.Connected() &&
		e.snap.Ready()

	if e.job == nil {
		e.reply <- ready
		return
	}

	if m.print.job != e.job {
		// a reset cancelled this job while its probe was in flight
		e.job.reply <- ErrNotReady
		return
	}

	if !ready {
		msg := e.snap.Message
		if msg == "" {
			msg = "printer not ready"
		}
		m.print.job = nil
		m.failPrint(msg)
		e.job.reply <- fmt.Errorf("%w: %s", ErrNotReady, msg)
		return
	}

	session := e.session
	job := e.job
	go func() {
		err := m.gate.Write(m.runCtx, job.payload)
		m.deliver(evPrintDone{err: err, job: job, session: session})
	}()
}

func (m *Manager) handlePrintDone(e evPrintDone) {
	if m.print.job != e.job {
		e.job.reply <- ErrNotReady
		return
	}
	m.print.job = nil

	if e.err != nil {
		log.Warn().Err(e.err).Msg("print write failed")
		m.failPrint("print failed: " + e.err.Error())
		e.job.reply <- fmt.Errorf("writing print payload: %w", e.err)
		return
	}

	log.Info().Int("bytes", len(e.job.payload)).Msg("print payload sent")
	m.setPrintState(printers.PrintSuccess, "")
	m.armPrintClear()
	e.job.reply <- nil
}

// failPrint parks the print state in error and arms the auto-revert.
func (m *Manager) failPrint(msg string) {
	m.setPrintState(printers.PrintError, msg)
	m.armPrintClear()
}

func (m *Manager) armPrintClear() {
	m.stopTimer(&m.print.clearTimer)
	m.print.clearSeq++
	seq := m.print.clearSeq
	m.print.clearTimer = m.clock.AfterFunc(printResultHold, func() {
		m.deliver(evPrintClear{seq: seq})
	})
}

func (m *Manager) handlePrintClear(seq uint64) {
	if seq != m.print.clearSeq {
		return
	}
	m.print.clearTimer = nil
	if m.print.job != nil {
		return
	}
	m.setPrintState(printers.PrintIdle, "")
}
