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

// Package mocks holds testify mocks shared across test packages.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kioskworks/receiptd/pkg/printers"
)

// MockController is a mock connection-engine controller for API tests.
type MockController struct {
	mock.Mock
}

func NewMockController() *MockController {
	return &MockController{}
}

func (m *MockController) LoadDevices(ctx context.Context) ([]printers.Device, error) {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]printers.Device)
	return devices, args.Error(1)
}

func (m *MockController) SelectDevice(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockController) Connect(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockController) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockController) StartMonitoring(interval time.Duration) error {
	args := m.Called(interval)
	return args.Error(0)
}

func (m *MockController) StopMonitoring() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) CheckStatus(ctx context.Context) (printers.StatusSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(printers.StatusSnapshot)
	return snap, args.Error(1)
}

func (m *MockController) Print(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockController) ValidateBeforeCriticalPoint(
	ctx context.Context,
	tag string,
) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *MockController) ClearError() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockController) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
