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
	"fmt"
	"time"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
)

// HandleStatus probes the printer and returns a fresh status snapshot.
func HandleStatus(env requests.RequestEnv) (any, error) {
	snap, err := env.Controller.CheckStatus(env.State.GetContext())
	if err != nil {
		return nil, fmt.Errorf("checking status: %w", err)
	}
	return snap, nil
}

// HandleStatusLast returns the most recent snapshot without touching the
// device. The result is null before the first probe.
func HandleStatusLast(env requests.RequestEnv) (any, error) {
	return env.State.LastSnapshot(), nil
}

// HandleMonitorStart enables periodic status probing. An omitted interval
// keeps the configured default.
func HandleMonitorStart(env requests.RequestEnv) (any, error) {
	var interval time.Duration
	if len(env.Params) > 0 {
		var params models.MonitorStartParams
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return nil, err
		}
		if params.Interval != nil {
			d, err := time.ParseDuration(*params.Interval)
			if err != nil {
				return nil, validation.ErrInvalidParams
			}
			interval = d
		}
	}
	if err := env.Controller.StartMonitoring(interval); err != nil {
		return nil, fmt.Errorf("starting monitor: %w", err)
	}
	return monitorResult(env), nil
}

// HandleMonitorStop disables periodic status probing.
func HandleMonitorStop(env requests.RequestEnv) (any, error) {
	if err := env.Controller.StopMonitoring(); err != nil {
		return nil, fmt.Errorf("stopping monitor: %w", err)
	}
	return monitorResult(env), nil
}

func monitorResult(env requests.RequestEnv) models.MonitorResponse {
	o := env.State.Overview()
	resp := models.MonitorResponse{Active: o.Monitoring}
	if o.Monitoring {
		resp.Interval = o.MonitorInterval.String()
	}
	return resp
}

// HandleState dumps the full observable service state in one call.
func HandleState(env requests.RequestEnv) (any, error) {
	o := env.State.Overview()
	return models.StateResponse{
		ConnectionState: string(o.ConnectionState),
		SelectedDevice:  o.SelectedDevice,
		ErrorMessage:    o.ErrorMessage,
		PrintState:      string(o.PrintState),
		PrintMessage:    o.PrintMessage,
		LastSnapshot:    o.LastSnapshot,
		Devices:         o.Devices,
		Monitoring:      o.Monitoring,
		Loading:         o.Loading,
	}, nil
}
