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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kioskworks/receiptd/pkg/config"
)

func TestAppDirectories(t *testing.T) {
	t.Parallel()

	assert.Equal(t, config.AppName, filepath.Base(ConfigDir()))
	assert.Equal(t, config.AppName, filepath.Base(DataDir()))
	assert.Equal(t, config.AppName, filepath.Base(LogDir()))

	// config and log trees must not collapse into the same directory
	assert.NotEqual(t, ConfigDir(), LogDir())
}

func TestLogPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join(LogDir(), config.LogFile), LogPath())
}

func TestPidPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join(os.TempDir(), config.PidFile), PidPath())
}
