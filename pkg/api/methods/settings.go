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
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
	"github.com/kioskworks/receiptd/pkg/config"
)

// ErrNotAllowed rejects remote calls to local-only methods.
var ErrNotAllowed = errors.New("not allowed from remote clients")

func settingsResult(cfg *config.Instance) models.SettingsResponse {
	return models.SettingsResponse{
		PrinterDriver:   cfg.PrinterDriver(),
		PrinterPath:     cfg.PrinterPath(),
		MonitorInterval: cfg.MonitorInterval().String(),
		DebugLogging:    cfg.DebugLogging(),
	}
}

// HandleSettings returns the active service settings.
func HandleSettings(env requests.RequestEnv) (any, error) {
	return settingsResult(env.Config), nil
}

// HandleSettingsUpdate applies a partial settings update and persists the
// config file. Only loopback clients may change settings.
func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	if !env.IsLocal {
		return nil, ErrNotAllowed
	}

	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	if params.PrinterPath != nil {
		env.Config.SetPrinterPath(*params.PrinterPath)
	}
	if params.MonitorInterval != nil {
		d, err := time.ParseDuration(*params.MonitorInterval)
		if err != nil {
			return nil, validation.ErrInvalidParams
		}
		env.Config.SetMonitorInterval(d)
	}
	if params.DebugLogging != nil {
		env.Config.SetDebugLogging(*params.DebugLogging)
		if *params.DebugLogging {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}

	if err := env.Config.Save(); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	return settingsResult(env.Config), nil
}

// HandleSettingsReload re-reads the config file from disk.
func HandleSettingsReload(env requests.RequestEnv) (any, error) {
	if !env.IsLocal {
		return nil, ErrNotAllowed
	}
	if err := env.Config.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if env.Config.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Info().Msg("config reloaded")
	return settingsResult(env.Config), nil
}

// HandleVersion reports the daemon version and host platform.
func HandleVersion(_ requests.RequestEnv) (any, error) {
	return models.VersionResponse{
		Version:  config.AppVersion,
		Platform: runtime.GOOS,
	}, nil
}
