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

package serialport

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/printers"
)

type mockPort struct {
	readErr   error
	reads     [][]byte
	writes    [][]byte
	timeouts  []time.Duration
	readIdx   int
	writeSize int
	closed    bool
}

func (m *mockPort) Read(p []byte) (int, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.readIdx >= len(m.reads) {
		// timed out with nothing buffered
		return 0, nil
	}
	n := copy(p, m.reads[m.readIdx])
	m.readIdx++
	return n, nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	n := len(p)
	if m.writeSize > 0 && n > m.writeSize {
		n = m.writeSize
	}
	m.writes = append(m.writes, append([]byte(nil), p[:n]...))
	return n, nil
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func (m *mockPort) SetReadTimeout(t time.Duration) error {
	m.timeouts = append(m.timeouts, t)
	return nil
}

func newTestTransport(t *testing.T, port *mockPort) (*Transport, string) {
	t.Helper()
	cfg, err := config.NewConfig(afero.NewMemMapFs(), t.TempDir(), config.BaseDefaults)
	require.NoError(t, err)

	transport := NewTransport(cfg)
	transport.factory = func(_ string, _ *serial.Mode) (Port, error) {
		return port, nil
	}

	// a path that passes the existence check
	path := filepath.Join(t.TempDir(), "ttyUSB0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return transport, path
}

func TestOpenCloseLifecycle(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	transport, path := newTestTransport(t, port)

	assert.False(t, transport.Connected())
	require.NoError(t, transport.Open(path))
	assert.True(t, transport.Connected())

	assert.ErrorIs(t, transport.Open(path), printers.ErrAlreadyOpen)

	require.NoError(t, transport.Close())
	assert.False(t, transport.Connected())
	assert.True(t, port.closed)

	// closing a closed transport is a no-op
	require.NoError(t, transport.Close())
}

func TestOpenMissingPath(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("path existence is not checked on windows")
	}

	transport, _ := newTestTransport(t, &mockPort{})
	err := transport.Open(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat device path")
}

func TestReadCollectsBufferedReply(t *testing.T) {
	t.Parallel()

	port := &mockPort{
		reads: [][]byte{{0x12, 0x16}, {0x1A}},
	}
	transport, path := newTestTransport(t, port)
	require.NoError(t, transport.Open(path))

	resp, err := transport.Read([]byte{0x10, 0x04, 0x01}, 700*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x16, 0x1A}, resp)

	// the command went out before any read
	require.NotEmpty(t, port.writes)
	assert.Equal(t, []byte{0x10, 0x04, 0x01}, port.writes[0])

	// full timeout for the first chunk, short drain afterwards
	require.GreaterOrEqual(t, len(port.timeouts), 2)
	assert.Equal(t, 700*time.Millisecond, port.timeouts[0])
	assert.Equal(t, 20*time.Millisecond, port.timeouts[1])
}

func TestReadSilentDevice(t *testing.T) {
	t.Parallel()

	port := &mockPort{}
	transport, path := newTestTransport(t, port)
	require.NoError(t, transport.Open(path))

	resp, err := transport.Read([]byte{0x10, 0x04, 0x01}, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestReadFailure(t *testing.T) {
	t.Parallel()

	port := &mockPort{readErr: errors.New("device unplugged")}
	transport, path := newTestTransport(t, port)
	require.NoError(t, transport.Open(path))

	_, err := transport.Read([]byte{0x10, 0x04, 0x01}, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read from serial port")
}

func TestWriteRetriesShortWrites(t *testing.T) {
	t.Parallel()

	port := &mockPort{writeSize: 2}
	transport, path := newTestTransport(t, port)
	require.NoError(t, transport.Open(path))

	require.NoError(t, transport.Write([]byte{1, 2, 3, 4, 5}))

	var total []byte
	for _, w := range port.writes {
		total = append(total, w...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, total)
}

func TestOperationsRequireOpenPort(t *testing.T) {
	t.Parallel()

	transport, _ := newTestTransport(t, &mockPort{})

	assert.ErrorIs(t, transport.Write([]byte{0x1B, 0x40}), printers.ErrNotOpen)
	_, err := transport.Read([]byte{0x10, 0x04, 0x01}, time.Second)
	assert.ErrorIs(t, err, printers.ErrNotOpen)
}
