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

// Package daemon manages the background service process: PID file,
// signal handling, and the start/stop/restart/status verbs exposed by
// the CLI.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/api/client"
	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/helpers"
)

// ServiceEntry starts the service and returns its stop function and a
// channel closed when the service has fully shut down.
type ServiceEntry func() (func() error, <-chan struct{}, error)

type Service struct {
	start  ServiceEntry
	stop   func() error
	done   <-chan struct{}
	daemon bool
}

type ServiceArgs struct {
	Entry    ServiceEntry
	NoDaemon bool
}

func NewService(args ServiceArgs) *Service {
	return &Service{
		daemon: !args.NoDaemon,
		start:  args.Entry,
	}
}

func (s *Service) createPidFile() error {
	pid := os.Getpid()
	if err := os.WriteFile(helpers.PidPath(), []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func (s *Service) removePidFile() error {
	if err := os.Remove(helpers.PidPath()); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Pid returns the process ID of the running daemon, or 0 if there is no
// PID file.
func (s *Service) Pid() (int, error) {
	pid := 0
	pidPath := helpers.PidPath()

	if _, err := os.Stat(pidPath); err == nil {
		pidFile, err := os.ReadFile(pidPath) //nolint:gosec // fixed path in temp dir
		if err != nil {
			return pid, fmt.Errorf("error reading pid file: %w", err)
		}

		pidInt, err := strconv.Atoi(strings.TrimSpace(string(pidFile)))
		if err != nil {
			return pid, fmt.Errorf("error parsing pid: %w", err)
		}

		pid = pidInt
	}

	return pid, nil
}

// Running returns true if the daemon process is alive.
func (s *Service) Running() bool {
	pid, err := s.Pid()
	if err != nil || pid == 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

func (s *Service) stopService() error {
	log.Info().Msg("stopping service")

	if err := s.stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return err
	}

	if err := s.removePidFile(); err != nil {
		log.Error().Err(err).Msg("error removing pid file")
		return err
	}

	return nil
}

// setupStopService installs the SIGINT/SIGTERM handler. Exits the
// process once the service has stopped.
func (s *Service) setupStopService() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs

		if err := s.stopService(); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

// startService runs the service in the current process and blocks until
// it stops.
func (s *Service) startService() {
	if s.Running() {
		log.Error().Msg("service already running")
		os.Exit(1)
	}

	log.Info().Msg("starting service")

	if err := s.createPidFile(); err != nil {
		log.Error().Err(err).Msg("error creating pid file")
		os.Exit(1)
	}

	stop, done, err := s.start()
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		if rmErr := s.removePidFile(); rmErr != nil {
			log.Error().Err(rmErr).Msg("error removing pid file")
		}
		os.Exit(1)
	}

	s.setupStopService()
	s.stop = stop
	s.done = done

	if !s.daemon {
		if stopErr := s.stopService(); stopErr != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	<-done
	log.Info().Msg("service shut down internally")

	if err := s.removePidFile(); err != nil {
		log.Error().Err(err).Msg("error removing pid file")
	}

	os.Exit(0)
}

// Start launches a new daemon process in the background, detached from
// the current session.
func (s *Service) Start() error {
	if s.Running() {
		return errors.New("service already running")
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error getting absolute binary path: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, exePath, "-service", "exec") //nolint:gosec // own binary
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// point the child at the same config file
	configPath := filepath.Join(helpers.ConfigDir(), config.CfgFile)
	if _, statErr := os.Stat(configPath); statErr == nil {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", config.CfgEnv, configPath))
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("error releasing service process: %w", err)
	}

	// give the child a moment to write its PID file
	time.Sleep(500 * time.Millisecond)

	pid, pidErr := s.Pid()
	if pidErr != nil {
		return fmt.Errorf("service started but PID file not found: %w", pidErr)
	}

	log.Info().Msgf("service process started with PID %d", pid)

	if !s.Running() {
		return fmt.Errorf("service process %d started but is no longer running", pid)
	}

	return nil
}

// Stop signals the running daemon to shut down.
func (s *Service) Stop() error {
	if !s.Running() {
		return errors.New("service not running")
	}

	pid, err := s.Pid()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}

	return nil
}

func (s *Service) Restart() error {
	if s.Running() {
		if err := s.Stop(); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for service to stop")
		}
		time.Sleep(500 * time.Millisecond)
	}

	return s.Start()
}

// WaitForAPI waits for the daemon API to answer, distinguishing a slow
// start from a crashed process.
func (s *Service) WaitForAPI(cfg *config.Instance, maxWait, checkInterval time.Duration) error {
	if client.WaitForAPI(cfg, maxWait, checkInterval) {
		log.Info().Msg("API is now available")
		return nil
	}

	if !s.Running() {
		return errors.New("service process crashed during startup")
	}

	return errors.New("API did not become available within timeout")
}

// ServiceHandler dispatches the -service CLI verb.
func (s *Service) ServiceHandler(cmd *string) error {
	switch *cmd {
	case "exec":
		s.startService()
		return nil
	case "start":
		if err := s.Start(); err != nil {
			log.Error().Err(err).Msg("error starting service")
			os.Exit(1)
		}
		os.Exit(0)
	case "stop":
		if err := s.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping service")
			os.Exit(1)
		}
		os.Exit(0)
	case "restart":
		if err := s.Restart(); err != nil {
			log.Error().Err(err).Msg("error restarting service")
			os.Exit(1)
		}
		os.Exit(0)
	case "status":
		if s.Running() {
			_, _ = fmt.Println("started")
			os.Exit(0)
		}
		_, _ = fmt.Println("stopped")
		os.Exit(1)
	case "":
		return nil
	default:
		return fmt.Errorf("unknown service argument: %s", *cmd)
	}
	return nil
}
