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

// Package probe turns the three realtime status queries into one
// structured diagnosis. It owns the retry policy and the decision
// order; the raw byte semantics live in escpos.
package probe

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/helpers"
	"github.com/kioskworks/receiptd/pkg/printers"
	"github.com/kioskworks/receiptd/pkg/printers/escpos"
)

// Policy bounds a single diagnosis. Retries counts extra attempts after
// the first, so Retries=2 means three reads per query.
type Policy struct {
	Retries        int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	// OnlineErrorBitFatal treats the error bit in the online status
	// byte as authoritative. Off by default, some models raise the bit
	// spuriously.
	OnlineErrorBitFatal bool
}

func DefaultPolicy() Policy {
	return Policy{
		Retries:        2,
		AttemptTimeout: 700 * time.Millisecond,
		RetryDelay:     120 * time.Millisecond,
	}
}

// Prober issues status queries through the transport gate. It never
// returns an error: link failures are folded into the diagnosis via
// the presence check, so every caller gets a typed snapshot.
type Prober struct {
	gate   *printers.Gate
	clock  clockwork.Clock
	policy Policy
}

func New(gate *printers.Gate, clock clockwork.Clock, policy Policy) *Prober {
	return &Prober{
		gate:   gate,
		clock:  clock,
		policy: policy,
	}
}

// Diagnose runs the full decision tree against the device open on the
// gate. path is the enumeration path used for the presence check when
// the device stays silent.
func (p *Prober) Diagnose(ctx context.Context, path string) printers.StatusSnapshot {
	now := p.clock.Now()

	online, ok := p.query(ctx, escpos.StatusOnline, escpos.LatestValid)
	if !ok {
		return p.diagnoseSilent(ctx, path, now)
	}
	if escpos.Offline(online) {
		return p.diagnoseOffline(ctx, now)
	}
	return p.diagnoseOnline(ctx, online, now)
}

// query sends one status command with retries; pick extracts the usable
// byte from a raw response. Link errors count as failed attempts rather
// than aborting: whether the device is gone or just mute is decided
// later by the presence check, not by the shape of the I/O failure.
func (p *Prober) query(ctx context.Context, command []byte, pick func([]byte) (byte, bool)) (byte, bool) {
	attempts := p.policy.Retries + 1
	for i := range attempts {
		if i > 0 {
			select {
			case <-p.clock.After(p.policy.RetryDelay):
			case <-ctx.Done():
				return 0, false
			}
		}
		resp, err := p.gate.Read(ctx, command, p.policy.AttemptTimeout)
		if err != nil {
			log.Debug().
				Err(err).
				Str("command", helpers.HexBytes(command)).
				Msg("status read failed")
			continue
		}
		if b, ok := pick(resp); ok {
			return b, true
		}
	}
	return 0, false
}

// newestRaw takes the last byte of a response as-is. Paper sensor
// replies do not reliably carry the realtime framing bits across
// models, and the roll-end bits are meaningful either way.
func newestRaw(resp []byte) (byte, bool) {
	if len(resp) == 0 {
		return 0, false
	}
	return resp[len(resp)-1], true
}

// diagnoseSilent handles a device that never produced a valid online
// status byte: infer what we can from the other two queries, then let
// enumeration split "unplugged" from "present but mute".
func (p *Prober) diagnoseSilent(ctx context.Context, path string, now time.Time) printers.StatusSnapshot {
	cause, causeOK := p.query(ctx, escpos.StatusOfflineCause, escpos.LatestValid)
	if causeOK {
		switch {
		case escpos.CoverOpen(cause):
			s := offlineSnap(now, printers.ErrorCoverOpen, "printer cover is open")
			s.CoverOpen = printers.BoolPtr(true)
			return s
		case escpos.OfflineError(cause):
			s := offlineSnap(now, printers.ErrorCommunication, "printer offline with error condition")
			s.CoverOpen = printers.BoolPtr(false)
			return s
		case escpos.PaperEndStop(cause):
			s := offlineSnap(now, printers.ErrorPaperOut, "printing stopped at paper end")
			s.HasPaper = printers.BoolPtr(false)
			s.CoverOpen = printers.BoolPtr(false)
			return s
		}
	}

	sensor, sensorOK := p.query(ctx, escpos.StatusPaperSensor, newestRaw)
	if sensorOK && escpos.PaperOut(sensor) {
		s := offlineSnap(now, printers.ErrorPaperOut, "paper roll is out")
		s.HasPaper = printers.BoolPtr(false)
		if causeOK {
			s.CoverOpen = printers.BoolPtr(false)
		}
		return s
	}

	if !p.present(path) {
		return offlineSnap(now, printers.ErrorDeviceNotFound, "printer no longer present on the bus")
	}
	return offlineSnap(now, printers.ErrorOffline, "no response, device still present")
}

// diagnoseOffline handles a readable device that reports itself
// offline: the cause query decides between cover, error and paper.
func (p *Prober) diagnoseOffline(ctx context.Context, now time.Time) printers.StatusSnapshot {
	cause, ok := p.query(ctx, escpos.StatusOfflineCause, escpos.LatestValid)
	if !ok {
		// do not guess paper or cover state from half a read
		return offlineSnap(now, printers.ErrorOffline, "printer offline, cause read incomplete")
	}
	switch {
	case escpos.CoverOpen(cause):
		s := offlineSnap(now, printers.ErrorCoverOpen, "printer cover is open")
		s.CoverOpen = printers.BoolPtr(true)
		return s
	case escpos.OfflineError(cause):
		s := offlineSnap(now, printers.ErrorCommunication, "printer offline with error condition")
		s.CoverOpen = printers.BoolPtr(false)
		return s
	case escpos.PaperEndStop(cause):
		s := offlineSnap(now, printers.ErrorPaperOut, "printing stopped at paper end")
		s.HasPaper = printers.BoolPtr(false)
		s.CoverOpen = printers.BoolPtr(false)
		return s
	default:
		s := offlineSnap(now, printers.ErrorOffline, "printer reports offline")
		s.CoverOpen = printers.BoolPtr(false)
		return s
	}
}

// diagnoseOnline handles a device that reports itself online: only the
// paper sensor, and optionally the error bit, can spoil the result.
func (p *Prober) diagnoseOnline(ctx context.Context, online byte, now time.Time) printers.StatusSnapshot {
	sensor, ok := p.query(ctx, escpos.StatusPaperSensor, newestRaw)
	if !ok {
		// online but unreadable sensor: report the instability instead
		// of assuming paper is present
		return printers.StatusSnapshot{
			Timestamp: now,
			Online:    true,
			HasError:  true,
			ErrorKind: printers.ErrorCommunication,
			Message:   "unstable status read while online",
		}
	}
	if escpos.PaperOut(sensor) {
		return printers.StatusSnapshot{
			Timestamp: now,
			Online:    true,
			HasError:  true,
			ErrorKind: printers.ErrorPaperOut,
			Message:   "paper roll is out",
			HasPaper:  printers.BoolPtr(false),
			CoverOpen: printers.BoolPtr(false),
		}
	}
	if p.policy.OnlineErrorBitFatal && escpos.ErrorBit(online) {
		return printers.StatusSnapshot{
			Timestamp: now,
			Online:    true,
			HasError:  true,
			ErrorKind: printers.ErrorCommunication,
			Message:   "printer flags an error while online",
			HasPaper:  printers.BoolPtr(true),
			CoverOpen: printers.BoolPtr(false),
		}
	}
	return printers.Healthy(now)
}

// present re-enumerates and looks for path. An enumeration failure
// counts as absent, the reconnect loop will keep looking.
func (p *Prober) present(path string) bool {
	devices, err := p.gate.Enumerate()
	if err != nil {
		log.Debug().Err(err).Msg("presence check could not enumerate")
		return false
	}
	for _, d := range devices {
		if d.Path == path {
			return true
		}
	}
	return false
}

func offlineSnap(now time.Time, kind printers.ErrorKind, msg string) printers.StatusSnapshot {
	return printers.StatusSnapshot{
		Timestamp: now,
		HasError:  true,
		ErrorKind: kind,
		Message:   msg,
	}
}
