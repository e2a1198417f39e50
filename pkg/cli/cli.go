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

// Package cli implements the one-shot command line flags. Each flag
// talks to the running daemon over the local WebSocket client and
// prints the JSON result.
package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/kioskworks/receiptd/internal/telemetry"
	"github.com/kioskworks/receiptd/pkg/api/client"
	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/helpers"
)

type Flags struct {
	Connect *string
	Print   *string
	Monitor *string
	API     *string
	Version *bool
	Status  *bool
	Devices *bool
	Config  *bool
	Reload  *bool
}

// SetupFlags defines the common CLI flags. Add any custom flags before
// calling Pre.
func SetupFlags() *Flags {
	return &Flags{
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Status: flag.Bool(
			"status",
			false,
			"probe the printer and print the status snapshot",
		),
		Devices: flag.Bool(
			"devices",
			false,
			"list attached printer devices",
		),
		Connect: flag.String(
			"connect",
			"",
			"connect to a printer (optionally by device path)",
		),
		Print: flag.String(
			"print",
			"",
			"send the contents of a file to the printer",
		),
		Monitor: flag.String(
			"monitor",
			"",
			"start periodic status monitoring (interval, or 'stop')",
		),
		Config: flag.Bool(
			"config",
			false,
			"print the config file path and exit",
		),
		API: flag.String(
			"api",
			"",
			"send method and params to the API and print the response",
		),
		Reload: flag.Bool(
			"reload",
			false,
			"reload the daemon config from disk",
		),
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre runs flag parsing and actions immediate flags that need no
// environment setup.
func (f *Flags) Pre() {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("%s v%s (%s/%s)\n",
			config.AppName, config.AppVersion, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}
}

// callAndPrint runs one API call against the local daemon, prints the
// result and exits.
func callAndPrint(cfg *config.Instance, method, params string) {
	resp, err := client.LocalClient(context.Background(), cfg, method, params)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("API call failed")
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	_, _ = fmt.Println(resp)
	os.Exit(0)
}

// Post actions the remaining flags once config and logging exist.
func (f *Flags) Post(cfg *config.Instance) {
	switch {
	case *f.Config:
		_, _ = fmt.Println(filepath.Join(helpers.ConfigDir(), config.CfgFile))
		os.Exit(0)
	case *f.Status:
		callAndPrint(cfg, models.MethodStatus, "")
	case *f.Devices:
		callAndPrint(cfg, models.MethodDevices, "")
	case isFlagPassed("connect"):
		params := ""
		if *f.Connect != "" {
			data, err := json.Marshal(models.ConnectParams{Path: f.Connect})
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Error encoding params: %v\n", err)
				os.Exit(1)
			}
			params = string(data)
		}
		callAndPrint(cfg, models.MethodConnect, params)
	case isFlagPassed("print"):
		if *f.Print == "" {
			_, _ = fmt.Fprint(os.Stderr, "Error: print flag requires a file path\n")
			os.Exit(1)
		}
		payload, err := os.ReadFile(*f.Print) //nolint:gosec // user-supplied path is the point
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
			os.Exit(1)
		}
		data, err := json.Marshal(models.PrintParams{
			Data: hex.EncodeToString(payload),
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error encoding params: %v\n", err)
			os.Exit(1)
		}
		callAndPrint(cfg, models.MethodPrint, string(data))
	case isFlagPassed("monitor"):
		if strings.EqualFold(*f.Monitor, "stop") {
			callAndPrint(cfg, models.MethodMonitorStop, "")
		}
		params := ""
		if *f.Monitor != "" {
			data, err := json.Marshal(models.MonitorStartParams{Interval: f.Monitor})
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Error encoding params: %v\n", err)
				os.Exit(1)
			}
			params = string(data)
		}
		callAndPrint(cfg, models.MethodMonitorStart, params)
	case isFlagPassed("api"):
		if *f.API == "" {
			_, _ = fmt.Fprint(os.Stderr, "Error: api flag requires a value\n")
			os.Exit(1)
		}
		ps := strings.SplitN(*f.API, ":", 2)
		method := ps[0]
		params := ""
		if len(ps) > 1 {
			params = ps[1]
		}
		callAndPrint(cfg, method, params)
	case *f.Reload:
		callAndPrint(cfg, models.MethodSettingsReload, "")
	}
}

// Setup initializes directories, logging, the user config and
// telemetry. Returns the loaded config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(defaultConfig config.Values, writers []io.Writer) *config.Instance {
	if err := helpers.EnsureDirectories(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	if err := helpers.InitLogging(writers); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(afero.NewOsFs(), helpers.ConfigDir(), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := telemetry.Init(
		cfg.ErrorReporting(),
		cfg.TelemetryDsn(),
		cfg.DeviceID(),
		config.AppVersion,
		cfg.PrinterDriver(),
	); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg
}
