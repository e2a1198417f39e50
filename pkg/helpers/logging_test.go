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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestLogWriter(t *testing.T) {
	t.Parallel()

	w := LogWriter()
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok, "log writer should rotate via lumberjack")
	assert.Equal(t, LogPath(), lj.Filename)
	assert.Equal(t, 1, lj.MaxSize)
	assert.Equal(t, 2, lj.MaxBackups)
}

func TestInitLogging(t *testing.T) {
	// InitLogging swaps the global logger, so no t.Parallel here.

	// Note: lumberjack creates the log file lazily on first write, so
	// success here only means the writer chain was assembled.
	require.NoError(t, InitLogging(nil))

	var extra testWriter
	require.NoError(t, InitLogging([]io.Writer{&extra}))
}

// testWriter is a no-op io.Writer.
type testWriter struct{}

func (*testWriter) Write(p []byte) (int, error) {
	return len(p), nil
}
