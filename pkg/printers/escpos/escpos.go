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

// Package escpos holds the fixed ESC/POS command codes and the bit
// decoding for realtime status bytes. Pure byte math, no I/O.
package escpos

import "bytes"

// Realtime status queries (DLE EOT n). The printer answers each with a
// single status byte immediately, bypassing the print buffer.
var (
	// StatusOnline asks for the printer status; bit 3 is the
	// online/offline flag.
	StatusOnline = []byte{0x10, 0x04, 0x01}
	// StatusOfflineCause asks why the printer went offline: cover,
	// paper-end stop or an error condition.
	StatusOfflineCause = []byte{0x10, 0x04, 0x02}
	// StatusPaperSensor asks for the paper roll sensor state.
	StatusPaperSensor = []byte{0x10, 0x04, 0x04}
)

// Printer control commands.
var (
	// ModelName asks for the printer model string (GS I).
	ModelName = []byte{0x1D, 0x49, 0x43}
	// Init resets the print settings to power-on defaults (ESC @).
	Init = []byte{0x1B, 0x40}
	// FeedAndCut feeds a few lines and performs a partial cut (GS V).
	FeedAndCut = []byte{0x1D, 0x56, 0x41, 0x03}
)

// ValidStatusByte reports whether b carries realtime-status framing:
// bit 0 and bit 7 clear, bit 1 and bit 4 set. Anything else is noise,
// ASCII from an earlier reply, or print-buffered data.
func ValidStatusByte(b byte) bool {
	return b&0x93 == 0x12
}

// LatestValid scans a response from the last byte backward and returns
// the first byte passing the framing filter. Devices flush stale
// buffered bytes ahead of the fresh status byte, so the newest data
// wins over anything queued before it.
func LatestValid(resp []byte) (byte, bool) {
	for i := len(resp) - 1; i >= 0; i-- {
		if ValidStatusByte(resp[i]) {
			return resp[i], true
		}
	}
	return 0, false
}

// Offline reports the offline flag (bit 3) of a StatusOnline byte.
func Offline(b byte) bool {
	return b&0x08 != 0
}

// ErrorBit reports bit 6 of a StatusOnline byte. Some models raise it
// spuriously, so whether it is authoritative is a policy decision made
// by the caller, not here.
func ErrorBit(b byte) bool {
	return b&0x40 != 0
}

// CoverOpen reports the cover flag (bit 2) of a StatusOfflineCause byte.
func CoverOpen(b byte) bool {
	return b&0x04 != 0
}

// PaperEndStop reports bit 5 of a StatusOfflineCause byte: printing
// stopped because the paper ran out.
func PaperEndStop(b byte) bool {
	return b&0x20 != 0
}

// OfflineError reports bit 6 of a StatusOfflineCause byte: the printer
// is offline because an error occurred.
func OfflineError(b byte) bool {
	return b&0x40 != 0
}

// PaperOut reports whether a StatusPaperSensor byte has both roll-end
// bits (5 and 6) set. The sensor drives both bits together; a single
// set bit is not treated as paper-out.
func PaperOut(b byte) bool {
	return b&0x60 == 0x60
}

// ParseModelName decodes a ModelName reply: a 0x5F header byte, the
// model string, then NUL padding. Returns "" when the reply carries no
// usable name.
func ParseModelName(resp []byte) string {
	if len(resp) == 0 {
		return ""
	}
	if resp[0] == 0x5F {
		resp = resp[1:]
	}
	if i := bytes.IndexByte(resp, 0x00); i >= 0 {
		resp = resp[:i]
	}
	return string(bytes.TrimSpace(resp))
}
