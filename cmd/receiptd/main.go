//go:build linux || darwin

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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/internal/telemetry"
	"github.com/kioskworks/receiptd/pkg/cli"
	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/service"
	"github.com/kioskworks/receiptd/pkg/service/daemon"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags()

	serviceCmd := flag.String(
		"service",
		"",
		"manage the daemon (start|stop|restart|status|exec)",
	)
	daemonMode := flag.Bool(
		"daemon",
		false,
		"run the service in the foreground",
	)

	flags.Pre()

	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg := cli.Setup(config.BaseDefaults, logWriters)
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			telemetry.Flush()
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	svc := daemon.NewService(daemon.ServiceArgs{
		Entry: func() (func() error, <-chan struct{}, error) {
			return service.Start(cfg)
		},
	})
	if err := svc.ServiceHandler(serviceCmd); err != nil {
		return err
	}

	flags.Post(cfg)

	if !*daemonMode {
		flag.Usage()
		return nil
	}

	log.Info().Msg("starting in foreground")
	stop, done, err := service.Start(cfg)
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		if err := stop(); err != nil {
			return fmt.Errorf("error stopping service: %w", err)
		}
	case <-done:
	}

	return nil
}
