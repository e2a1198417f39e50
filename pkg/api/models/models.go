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

// Package models holds the JSON-RPC wire types shared by the API server,
// the local client and the notification publishers.
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Notification methods pushed to every connected session.
const (
	NotificationConnectionChanged = "connection.changed"
	NotificationStatusChanged     = "status.changed"
	NotificationDevicesChanged    = "devices.changed"
	NotificationPrintChanged      = "print.changed"
	NotificationMonitorChanged    = "monitor.changed"
)

// Request methods accepted by the API server.
const (
	MethodDevices        = "devices"
	MethodDevicesSelect  = "devices.select"
	MethodConnect        = "connect"
	MethodDisconnect     = "disconnect"
	MethodStatus         = "status"
	MethodStatusLast     = "status.last"
	MethodMonitorStart   = "monitor.start"
	MethodMonitorStop    = "monitor.stop"
	MethodPrint          = "print"
	MethodPrintValidate  = "print.validate"
	MethodErrorsClear    = "errors.clear"
	MethodReset          = "reset"
	MethodState          = "state"
	MethodSettings       = "settings"
	MethodSettingsUpdate = "settings.update"
	MethodSettingsReload = "settings.reload"
	MethodVersion        = "version"
)

type Notification struct {
	Params any
	Method string
}

type RequestObject struct {
	ID      *uuid.UUID      `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
}

// ResponseErrorObject exists for sending errors, so result can be omitted
// entirely, while nil results still serialize on the main ResponseObject.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	JSONRPC string       `json:"jsonrpc"`
	ID      uuid.UUID    `json:"id"`
}
