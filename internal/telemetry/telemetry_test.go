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

package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no username in path",
			input:    "/usr/local/bin/receiptd",
			expected: "/usr/local/bin/receiptd",
		},
		{
			name:     "linux home path",
			input:    "/home/sam/dev/receiptd/pkg/config/config.go",
			expected: "/home/<user>/dev/receiptd/pkg/config/config.go",
		},
		{
			name:     "macos users path",
			input:    "/Users/sam/Documents/receiptd/config.toml",
			expected: "/Users/<user>/Documents/receiptd/config.toml",
		},
		{
			name:     "windows path",
			input:    "C:\\Users\\sam\\AppData\\Local\\receiptd\\config.toml",
			expected: "C:\\Users\\<user>\\AppData\\Local\\receiptd\\config.toml",
		},
		{
			name:     "error message with path",
			input:    "failed to open file: /home/user123/config.toml: no such file",
			expected: "failed to open file: /home/<user>/config.toml: no such file",
		},
		{
			name:     "multiple paths in message",
			input:    "copying /home/alice/src to /home/bob/dst",
			expected: "copying /home/<user>/src to /home/<user>/dst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := sanitizePath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeEvent(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		ServerName: "kiosk-03.local",
		Message:    "open /home/sam/receipt.bin: permission denied",
		Exception: []sentry.Exception{{
			Stacktrace: &sentry.Stacktrace{
				Frames: []sentry.Frame{{
					AbsPath:  "/home/sam/dev/receiptd/pkg/service/manager.go",
					Filename: "/home/sam/dev/receiptd/pkg/service/manager.go",
				}},
			},
		}},
		Extra: map[string]any{
			"path":  "/Users/sam/receipts",
			"count": 3,
		},
	}

	got := sanitizeEvent(event)

	assert.Empty(t, got.ServerName)
	assert.Equal(t, "open /home/<user>/receipt.bin: permission denied", got.Message)
	require.Len(t, got.Exception, 1)
	frame := got.Exception[0].Stacktrace.Frames[0]
	assert.Equal(t, "/home/<user>/dev/receiptd/pkg/service/manager.go", frame.AbsPath)
	assert.Equal(t, "/Users/<user>/receipts", got.Extra["path"])
	assert.Equal(t, 3, got.Extra["count"])
}

func TestInitDisabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, Init(false, "", "dev-1", "1.0.0", "usbraw"))
	assert.False(t, Enabled())

	// enabled without a DSN stays off too
	require.NoError(t, Init(true, "", "dev-1", "1.0.0", "usbraw"))
	assert.False(t, Enabled())
}

func TestCloseWhenDisabled(t *testing.T) {
	t.Parallel()

	Close()
	Flush()
}
