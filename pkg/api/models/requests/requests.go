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

package requests

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/printers"
	"github.com/kioskworks/receiptd/pkg/service/state"
)

// Controller is the surface the API methods drive on the connection
// engine. It exists so the api package does not import the engine
// directly.
type Controller interface {
	LoadDevices(ctx context.Context) ([]printers.Device, error)
	SelectDevice(path string) error
	Connect(path string) error
	Disconnect(ctx context.Context) error
	StartMonitoring(interval time.Duration) error
	StopMonitoring() error
	CheckStatus(ctx context.Context) (printers.StatusSnapshot, error)
	Print(ctx context.Context, payload []byte) error
	ValidateBeforeCriticalPoint(ctx context.Context, tag string) (bool, error)
	ClearError() error
	Reset(ctx context.Context) error
}

// RequestEnv is everything a method handler can reach.
type RequestEnv struct {
	Controller Controller
	Config     *config.Instance
	State      *state.State
	Params     json.RawMessage
	ID         uuid.UUID
	IsLocal    bool
}
