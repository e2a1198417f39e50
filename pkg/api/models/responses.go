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

package models

import "github.com/kioskworks/receiptd/pkg/printers"

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

type DevicesResponse struct {
	Devices  []printers.Device `json:"devices"`
	Selected string            `json:"selected,omitempty"`
}

// ConnectionResponse is both the `connection.changed` notification payload
// and the result of connection-mutating methods.
type ConnectionResponse struct {
	State  string `json:"state"`
	Device string `json:"device,omitempty"`
	Error  string `json:"error,omitempty"`
}

type MonitorResponse struct {
	Interval string `json:"interval,omitempty"`
	Active   bool   `json:"active"`
}

type PrintResponse struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

type ValidateResponse struct {
	Ready bool `json:"ready"`
}

// StateResponse is the full observable state dump returned by `state`.
type StateResponse struct {
	LastSnapshot    *printers.StatusSnapshot `json:"lastSnapshot"`
	ConnectionState string                   `json:"connectionState"`
	SelectedDevice  string                   `json:"selectedDevice,omitempty"`
	ErrorMessage    string                   `json:"errorMessage,omitempty"`
	PrintState      string                   `json:"printState"`
	PrintMessage    string                   `json:"printMessage,omitempty"`
	Devices         []printers.Device        `json:"devices"`
	Monitoring      bool                     `json:"monitoring"`
	Loading         bool                     `json:"loading"`
}

type SettingsResponse struct {
	PrinterDriver   string `json:"printerDriver"`
	PrinterPath     string `json:"printerPath,omitempty"`
	MonitorInterval string `json:"monitorInterval"`
	DebugLogging    bool   `json:"debugLogging"`
}
