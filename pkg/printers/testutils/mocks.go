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

// Package testutils provides a scriptable transport for engine tests.
package testutils

import (
	"sync/atomic"
	"time"

	"github.com/kioskworks/receiptd/pkg/helpers"
	"github.com/kioskworks/receiptd/pkg/helpers/syncutil"
	"github.com/kioskworks/receiptd/pkg/printers"
)

// MockTransport implements printers.Transport with scriptable behavior.
// Set the *Func fields for full control, or the canned fields for simple
// cases. All recording is safe for concurrent use.
type MockTransport struct {
	// scripted behavior, takes precedence when set
	EnumerateFunc func() ([]printers.Device, error)
	OpenFunc      func(path string) error
	CloseFunc     func() error
	WriteFunc     func(data []byte) error
	ReadFunc      func(command []byte, timeout time.Duration) ([]byte, error)

	// canned behavior used when the corresponding func is nil
	Devices   []printers.Device
	Responses map[string][]byte
	OpenErr   error
	CloseErr  error
	WriteErr  error
	ReadErr   error

	// Delay is applied inside every link operation, outside any lock, to
	// widen race windows in serialization tests.
	Delay time.Duration

	mu       syncutil.Mutex
	open     bool
	openPath string
	calls    []string
	writes   [][]byte

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Responses: make(map[string][]byte),
	}
}

func (m *MockTransport) ID() string {
	return "mock"
}

// track records link-op concurrency so tests can assert the gate admits
// one operation at a time.
func (m *MockTransport) track() func() {
	cur := m.inFlight.Add(1)
	for {
		maxSeen := m.maxInFlight.Load()
		if cur <= maxSeen || m.maxInFlight.CompareAndSwap(maxSeen, cur) {
			break
		}
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	return func() {
		m.inFlight.Add(-1)
	}
}

func (m *MockTransport) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockTransport) Enumerate() ([]printers.Device, error) {
	m.record("enumerate")
	if m.EnumerateFunc != nil {
		return m.EnumerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make([]printers.Device, len(m.Devices))
	copy(devices, m.Devices)
	return devices, nil
}

func (m *MockTransport) Open(path string) error {
	defer m.track()()
	m.record("open:" + path)
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	m.openPath = path
	return nil
}

func (m *MockTransport) Close() error {
	defer m.track()()
	m.record("close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	m.open = false
	m.openPath = ""
	m.mu.Unlock()
	return m.CloseErr
}

func (m *MockTransport) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MockTransport) Write(data []byte) error {
	defer m.track()()
	m.record("write:" + helpers.HexBytes(data))
	if m.WriteFunc != nil {
		return m.WriteFunc(data)
	}
	if !m.Connected() {
		return printers.ErrNotOpen
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.writes = append(m.writes, buf)
	return nil
}

func (m *MockTransport) Read(command []byte, timeout time.Duration) ([]byte, error) {
	defer m.track()()
	m.record("read:" + helpers.HexBytes(command))
	if m.ReadFunc != nil {
		return m.ReadFunc(command, timeout)
	}
	if !m.Connected() {
		return nil, printers.ErrNotOpen
	}
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.Responses[string(command)]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(resp))
	copy(buf, resp)
	return buf, nil
}

// SetOpen forces the link state without recording a call.
func (m *MockTransport) SetOpen(open bool, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = open
	m.openPath = path
}

func (m *MockTransport) OpenPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPath
}

// Calls returns a snapshot of every recorded link call, in order.
func (m *MockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Writes returns a snapshot of every payload written.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	writes := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		buf := make([]byte, len(w))
		copy(buf, w)
		writes[i] = buf
	}
	return writes
}

// MaxInFlight reports the highest number of link operations ever observed
// running at once.
func (m *MockTransport) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}
