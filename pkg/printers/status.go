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

package printers

import "time"

// ConnectionState is owned exclusively by the connection engine; everything
// else only reads it.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// PrintState tracks the lifecycle of the most recent print request.
type PrintState string

const (
	PrintIdle     PrintState = "idle"
	PrintPrinting PrintState = "printing"
	PrintSuccess  PrintState = "success"
	PrintError    PrintState = "error"
)

// ErrorKind classifies a status diagnosis. Free-text detail goes in the
// snapshot message, never in the kind.
type ErrorKind string

const (
	ErrorNone           ErrorKind = ""
	ErrorPaperOut       ErrorKind = "paper_out"
	ErrorCoverOpen      ErrorKind = "cover_open"
	ErrorOffline        ErrorKind = "offline"
	ErrorCommunication  ErrorKind = "communication_error"
	ErrorDeviceNotFound ErrorKind = "device_not_found"
	ErrorUnknown        ErrorKind = "unknown"
)

// Fatal reports whether a single snapshot of this kind must drop the
// connection. ErrorOffline is only fatal after consecutive hits, which the
// engine counts itself.
func (k ErrorKind) Fatal() bool {
	return k == ErrorDeviceNotFound || k == ErrorCommunication
}

// StatusSnapshot is one decoded status diagnosis. The pointer fields are
// tri-state: nil means the probe could not determine the value, and that
// unknown must never be coerced to a definite answer downstream.
type StatusSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	HasPaper  *bool     `json:"hasPaper"`
	CoverOpen *bool     `json:"coverOpen"`
	Message   string    `json:"message,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Online    bool      `json:"online"`
	HasError  bool      `json:"hasError"`
}

// Healthy returns the all-clear snapshot.
func Healthy(now time.Time) StatusSnapshot {
	return StatusSnapshot{
		Timestamp: now,
		Online:    true,
		HasPaper:  BoolPtr(true),
		CoverOpen: BoolPtr(false),
	}
}

// Ready reports whether it is safe to commit a print: online, paper
// confirmed present, cover confirmed closed, no error. Unknown paper or
// cover state counts as not ready.
func (s StatusSnapshot) Ready() bool {
	return s.Online && !s.HasError &&
		s.HasPaper != nil && *s.HasPaper &&
		s.CoverOpen != nil && !*s.CoverOpen
}

// NoResponse reports whether the snapshot came from a silent but still
// enumerated device. Two of these in a row are treated as a real loss.
func (s StatusSnapshot) NoResponse() bool {
	return s.ErrorKind == ErrorOffline
}
