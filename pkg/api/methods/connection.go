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

package methods

import (
	"encoding/json"
	"fmt"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
)

func connectionResult(env requests.RequestEnv) models.ConnectionResponse {
	o := env.State.Overview()
	return models.ConnectionResponse{
		State:  string(o.ConnectionState),
		Device: o.SelectedDevice,
		Error:  o.ErrorMessage,
	}
}

// HandleConnect starts a connection attempt. With no path the engine
// targets the selected or first attached device; completion arrives via
// the connection.changed notification.
func HandleConnect(env requests.RequestEnv) (any, error) {
	path := ""
	if len(env.Params) > 0 {
		var params models.ConnectParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, validation.ErrInvalidParams
		}
		if params.Path != nil {
			path = *params.Path
		}
	}
	if err := env.Controller.Connect(path); err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return connectionResult(env), nil
}

// HandleDisconnect tears the link down and parks the engine until the
// next user operation.
func HandleDisconnect(env requests.RequestEnv) (any, error) {
	if err := env.Controller.Disconnect(env.State.GetContext()); err != nil {
		return nil, fmt.Errorf("disconnecting: %w", err)
	}
	return connectionResult(env), nil
}

// HandleReset drops every remembered device, selection and error and
// returns the engine to its just-started shape.
func HandleReset(env requests.RequestEnv) (any, error) {
	if err := env.Controller.Reset(env.State.GetContext()); err != nil {
		return nil, fmt.Errorf("resetting: %w", err)
	}
	return connectionResult(env), nil
}
