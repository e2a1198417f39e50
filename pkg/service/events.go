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

	"github.com/kioskworks/receiptd/pkg/printers"
)

// Every state transition in the engine happens inside the manager's run
// loop, one event at a time. User operations, timer fires and I/O
// completions are all events; handlers never block on the link, they
// launch gated I/O in a goroutine and resume when its completion event
// comes back around.

type event any

// user operations

type evStartup struct{}

type evLoadDevices struct {
	reply chan []printers.Device
}

type evSelectDevice struct {
	path string
}

type evConnect struct {
	path string
}

type evDisconnect struct {
	reply chan struct{}
}

type evStartMonitor struct {
	interval time.Duration
}

type evStopMonitor struct{}

type evCheckStatus struct {
	reply chan printers.StatusSnapshot
}

type evValidate struct {
	reply chan bool
	tag   string
}

type evPrint struct {
	reply   chan error
	payload []byte
}

type evClearError struct{}

type evReset struct {
	reply chan struct{}
}

// evNudge is sent by the device watcher when a printer-looking device
// node appears, so the reconnect loop does not sit out its backoff.
type evNudge struct{}

// timer fires; each carries the sequence number its timer was armed
// with, so a cancelled timer that already fired is ignored

type evMonitorDebounce struct {
	seq uint64
}

type evMonitorTick struct {
	seq uint64
}

type evReconnectTick struct {
	seq uint64
}

type evPrintClear struct {
	seq uint64
}

// I/O completions

// evOpenDone reports an open (plus best-effort model query) finishing.
// attempt ties it to the connect attempt that launched it.
type evOpenDone struct {
	err     error
	path    string
	model   string
	attempt uint64
}

// evSeedDone carries the seeding status probe of a connect attempt.
type evSeedDone struct {
	snap    printers.StatusSnapshot
	path    string
	attempt uint64
}

// evSnapshot carries a routine probe result. session is the generation
// the probe was issued under; a mismatch means the snapshot belongs to
// a superseded connection and must not touch engine state.
type evSnapshot struct {
	reply   chan printers.StatusSnapshot
	snap    printers.StatusSnapshot
	session uint64
	monitor bool
}

// evValidated carries a pre-print readiness probe result.
type evValidated struct {
	reply   chan bool
	job     *printJob
	snap    printers.StatusSnapshot
	session uint64
}

// evPrintDone reports the payload write finishing.
type evPrintDone struct {
	err     error
	job     *printJob
	session uint64
}
