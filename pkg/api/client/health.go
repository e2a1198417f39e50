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

package client

import (
	"context"
	"time"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/config"
)

// healthCheckTimeout bounds a single liveness probe; the version call
// does no device I/O so a healthy daemon answers immediately.
const healthCheckTimeout = 2 * time.Second

// IsServiceRunning reports whether a daemon is answering on the local
// API port.
func IsServiceRunning(cfg *config.Instance) bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	_, err := call(ctx, localWSURL(cfg), models.MethodVersion, "", healthCheckTimeout)
	return err == nil
}

// WaitForAPI polls the local API until it answers or maxWait elapses.
func WaitForAPI(cfg *config.Instance, maxWait, checkInterval time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		if IsServiceRunning(cfg) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(checkInterval)
	}
}
