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

package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/kioskworks/receiptd/pkg/config"
)

// ConfigDir is where the config file lives unless overridden by env.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

// DataDir holds runtime files that survive reboots.
func DataDir() string {
	return filepath.Join(xdg.DataHome, config.AppName)
}

// LogDir holds the rotating log files.
func LogDir() string {
	return filepath.Join(xdg.StateHome, config.AppName)
}

func LogPath() string {
	return filepath.Join(LogDir(), config.LogFile)
}

// PidPath is the daemon PID file location. It lives in the system temp dir
// so a stale file never survives a reboot.
func PidPath() string {
	return filepath.Join(os.TempDir(), config.PidFile)
}

func EnsureDirectories() error {
	for _, dir := range []string{ConfigDir(), DataDir(), LogDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
