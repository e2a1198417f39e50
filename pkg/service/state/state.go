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

package state

import (
	"context"
	"time"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/notifications"
	"github.com/kioskworks/receiptd/pkg/helpers/syncutil"
	"github.com/kioskworks/receiptd/pkg/printers"
)

// Overview is a copy of every observable field, safe to hand out.
type Overview struct {
	LastSnapshot    *printers.StatusSnapshot
	ConnectionState printers.ConnectionState
	SelectedDevice  string
	ErrorMessage    string
	PrintMessage    string
	PrintState      printers.PrintState
	Devices         []printers.Device
	Monitoring      bool
	MonitorInterval time.Duration
	Loading         bool
}

// State holds the observable runtime state of the printer service. The
// connection engine is the only writer; the API layer and publishers
// only read it or subscribe to its notifications.
//
// LOCKING RULES: mu protects all mutable fields. To prevent deadlocks:
//   - Never send to the notification channel while holding the lock
//   - Pattern: lock → modify → copy payload → unlock → notify
type State struct {
	ctx             context.Context
	ctxCancelFunc   context.CancelFunc
	lastSnapshot    *printers.StatusSnapshot
	Notifications   chan<- models.Notification
	connectionState printers.ConnectionState
	selectedDevice  string
	errorMessage    string
	printMessage    string
	printState      printers.PrintState
	devices         []printers.Device
	monitorInterval time.Duration
	mu              syncutil.RWMutex
	monitoring      bool
	loading         bool
}

// notificationBufferSize leaves headroom for a burst of status churn
// without ever blocking the engine's event loop.
const notificationBufferSize = 512

func NewState() (*State, <-chan models.Notification) {
	ns := make(chan models.Notification, notificationBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		connectionState: printers.StateDisconnected,
		printState:      printers.PrintIdle,
		Notifications:   ns,
		ctx:             ctx,
		ctxCancelFunc:   cancel,
	}, ns
}

// GetContext returns a context that is cancelled when the service stops.
func (s *State) GetContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Stop cancels the state context, which ends the notification consumers.
func (s *State) Stop() {
	s.mu.Lock()
	cancel := s.ctxCancelFunc
	s.mu.Unlock()
	cancel()
}

func (s *State) SetConnectionState(
	cs printers.ConnectionState,
	device string,
	errMsg string,
) {
	s.mu.Lock()
	s.connectionState = cs
	if errMsg != "" {
		s.errorMessage = errMsg
	} else if cs == printers.StateConnected {
		s.errorMessage = ""
	}
	payload := models.ConnectionResponse{
		State:  string(cs),
		Device: device,
		Error:  errMsg,
	}
	s.mu.Unlock()

	notifications.ConnectionChanged(s.Notifications, payload)
}

func (s *State) ConnectionState() printers.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionState
}

func (s *State) SetDevices(devices []printers.Device, selected string) {
	s.mu.Lock()
	s.devices = make([]printers.Device, len(devices))
	copy(s.devices, devices)
	s.selectedDevice = selected
	payload := models.DevicesResponse{
		Devices:  append([]printers.Device(nil), devices...),
		Selected: selected,
	}
	s.mu.Unlock()

	notifications.DevicesChanged(s.Notifications, payload)
}

func (s *State) Devices() []printers.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]printers.Device, len(s.devices))
	copy(devices, s.devices)
	return devices
}

func (s *State) SetSelectedDevice(path string) {
	s.mu.Lock()
	s.selectedDevice = path
	payload := models.DevicesResponse{
		Devices:  append([]printers.Device(nil), s.devices...),
		Selected: path,
	}
	s.mu.Unlock()

	notifications.DevicesChanged(s.Notifications, payload)
}

func (s *State) SelectedDevice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedDevice
}

func (s *State) SetSnapshot(snapshot printers.StatusSnapshot) {
	s.mu.Lock()
	snap := snapshot
	s.lastSnapshot = &snap
	s.mu.Unlock()

	notifications.StatusChanged(s.Notifications, snapshot)
}

func (s *State) LastSnapshot() *printers.StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSnapshot == nil {
		return nil
	}
	snap := *s.lastSnapshot
	return &snap
}

func (s *State) SetMonitoring(active bool, interval time.Duration) {
	s.mu.Lock()
	s.monitoring = active
	s.monitorInterval = interval
	payload := models.MonitorResponse{Active: active}
	if active {
		payload.Interval = interval.String()
	}
	s.mu.Unlock()

	notifications.MonitorChanged(s.Notifications, payload)
}

func (s *State) Monitoring() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitoring
}

func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *State) SetError(msg string) {
	s.mu.Lock()
	s.errorMessage = msg
	s.mu.Unlock()
}

func (s *State) ClearError() {
	s.mu.Lock()
	s.errorMessage = ""
	s.mu.Unlock()
}

func (s *State) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorMessage
}

func (s *State) SetPrint(ps printers.PrintState, msg string) {
	s.mu.Lock()
	s.printState = ps
	s.printMessage = msg
	payload := models.PrintResponse{
		State:   string(ps),
		Message: msg,
	}
	s.mu.Unlock()

	notifications.PrintChanged(s.Notifications, payload)
}

func (s *State) PrintState() (printers.PrintState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.printState, s.printMessage
}

// Overview copies out every observable field in one lock acquisition.
func (s *State) Overview() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := Overview{
		ConnectionState: s.connectionState,
		SelectedDevice:  s.selectedDevice,
		ErrorMessage:    s.errorMessage,
		PrintState:      s.printState,
		PrintMessage:    s.printMessage,
		Monitoring:      s.monitoring,
		MonitorInterval: s.monitorInterval,
		Loading:         s.loading,
		Devices:         make([]printers.Device, len(s.devices)),
	}
	copy(o.Devices, s.devices)
	if s.lastSnapshot != nil {
		snap := *s.lastSnapshot
		o.LastSnapshot = &snap
	}
	return o
}
