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

// Package serialport drives printers attached through a serial or
// USB-to-serial link.
package serialport

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/helpers/syncutil"
	"github.com/kioskworks/receiptd/pkg/printers"
)

// responseCap bounds how much buffered data a status read will drain.
const responseCap = 256

// Port defines the serial port operations used here (for mocking in tests).
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// PortFactory creates a serial port connection.
type PortFactory func(path string, mode *serial.Mode) (Port, error)

// DefaultPortFactory is the default factory that opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// Transport implements printers.Transport over a serial link.
type Transport struct {
	factory  PortFactory
	port     Port
	path     string
	baudRate int
	mu       syncutil.Mutex
}

func NewTransport(cfg *config.Instance) *Transport {
	return &Transport{
		factory:  DefaultPortFactory,
		baudRate: cfg.BaudRate(),
	}
}

func (*Transport) ID() string {
	return config.DriverSerial
}

// Enumerate lists serial ports on the system. It scans device nodes
// only and never touches the open link.
func (t *Transport) Enumerate() ([]printers.Device, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	t.mu.Lock()
	openPath := t.path
	t.mu.Unlock()

	devices := make([]printers.Device, 0, len(ports))
	for _, path := range ports {
		devices = append(devices, printers.Device{
			Path:        path,
			DisplayName: filepath.Base(path),
			Connected:   path == openPath,
		})
	}
	return devices, nil
}

func (t *Transport) Open(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return printers.ErrAlreadyOpen
	}

	if runtime.GOOS != "windows" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("failed to stat device path %s: %w", path, err)
		}
	}

	port, err := t.factory(path, &serial.Mode{
		BaudRate: t.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	t.port = port
	t.path = path
	log.Debug().Str("path", path).Int("baud", t.baudRate).Msg("serial port opened")
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	port := t.port
	t.port = nil
	t.path = ""
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	log.Debug().Msg("serial port closed")
	return nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return printers.ErrNotOpen
	}
	return writeAll(t.port, data)
}

// Read sends a command and drains whatever reply shows up within
// timeout. Returning empty with no error means the device stayed
// silent, which the status layer treats as its own signal.
func (t *Transport) Read(command []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, printers.ErrNotOpen
	}
	if err := writeAll(t.port, command); err != nil {
		return nil, err
	}

	if err := t.port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	buf := make([]byte, 64)
	n, err := t.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	resp := append([]byte(nil), buf[:n]...)

	// pick up stale bytes queued behind the first chunk so the caller
	// can see the newest one
	if err := t.port.SetReadTimeout(20 * time.Millisecond); err != nil {
		return resp, nil //nolint:nilerr // the reply itself arrived fine
	}
	for len(resp) < responseCap {
		n, err := t.port.Read(buf)
		if err != nil || n == 0 {
			break
		}
		resp = append(resp, buf[:n]...)
	}
	return resp, nil
}

func writeAll(port Port, data []byte) error {
	for len(data) > 0 {
		n, err := port.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write to serial port: %w", err)
		}
		data = data[n:]
	}
	return nil
}
