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

// Package methods implements the JSON-RPC method handlers. Every handler
// reads through the request environment and drives the connection engine
// via its controller interface, never the engine internals directly.
package methods

import (
	"fmt"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
)

// HandleDevices enumerates the attached printer devices.
func HandleDevices(env requests.RequestEnv) (any, error) {
	devices, err := env.Controller.LoadDevices(env.State.GetContext())
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	return models.DevicesResponse{
		Devices:  devices,
		Selected: env.State.SelectedDevice(),
	}, nil
}

// HandleDevicesSelect records which attached printer future connects
// should target.
func HandleDevicesSelect(env requests.RequestEnv) (any, error) {
	var params models.SelectDeviceParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	if err := env.Controller.SelectDevice(params.Path); err != nil {
		return nil, fmt.Errorf("selecting device: %w", err)
	}
	return models.DevicesResponse{
		Devices:  env.State.Devices(),
		Selected: params.Path,
	}, nil
}
