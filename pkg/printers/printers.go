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

// Package printers defines the domain model shared by the connection engine:
// enumerated devices, status snapshots and the transport seam to the
// physical printer link.
package printers

import (
	"errors"
	"time"
)

var (
	ErrNotOpen     = errors.New("transport not open")
	ErrAlreadyOpen = errors.New("transport already open")
	ErrGateClosed  = errors.New("transport gate closed")
)

// Device is one enumerated printer endpoint. Devices are ephemeral: the
// list is rebuilt on every enumeration and identity is the path alone.
type Device struct {
	Path        string `json:"path"`
	DisplayName string `json:"displayName"`
	Connected   bool   `json:"connected"`
}

// Transport is the narrow seam to a physical printer link. A transport
// holds at most one open device at a time; the engine owns open/close
// ordering and never drives a transport from two goroutines at once
// except through a Gate.
type Transport interface {
	// ID returns the driver name, e.g. "usbraw".
	ID() string
	// Enumerate lists candidate printer devices. It must not touch an
	// already open link, so it stays safe to call while I/O is pending.
	Enumerate() ([]Device, error)
	// Open claims the device at path.
	Open(path string) error
	// Close releases the open device. Closing a closed transport is a no-op.
	Close() error
	// Connected reports whether a device is currently open.
	Connected() bool
	// Write sends raw payload bytes down the open link.
	Write(data []byte) error
	// Read sends a command and collects whatever response arrives within
	// timeout. An empty response with nil error means the device stayed
	// silent; an error means the link itself failed.
	Read(command []byte, timeout time.Duration) ([]byte, error)
}

// BoolPtr returns a pointer to b, for the snapshot tri-state fields.
func BoolPtr(b bool) *bool {
	return &b
}
