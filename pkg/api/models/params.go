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

type SelectDeviceParams struct {
	Path string `json:"path" validate:"required"`
}

type ConnectParams struct {
	Path *string `json:"path,omitempty"`
}

type MonitorStartParams struct {
	Interval *string `json:"interval,omitempty" validate:"omitempty,duration"`
}

type PrintParams struct {
	// Data is the raw print payload as hex, whitespace allowed.
	Data string `json:"data" validate:"required,hexdata"`
	Init bool   `json:"init,omitempty"`
	Cut  bool   `json:"cut,omitempty"`
}

type ValidateParams struct {
	Tag string `json:"tag,omitempty"`
}

type UpdateSettingsParams struct {
	PrinterPath     *string `json:"printerPath,omitempty"`
	MonitorInterval *string `json:"monitorInterval,omitempty" validate:"omitempty,duration"`
	DebugLogging    *bool   `json:"debugLogging,omitempty"`
}
