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

package notifications

import (
	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/printers"
)

func ConnectionChanged(ns chan<- models.Notification, payload models.ConnectionResponse) {
	ns <- models.Notification{
		Method: models.NotificationConnectionChanged,
		Params: payload,
	}
}

func StatusChanged(ns chan<- models.Notification, snapshot printers.StatusSnapshot) {
	ns <- models.Notification{
		Method: models.NotificationStatusChanged,
		Params: snapshot,
	}
}

func DevicesChanged(ns chan<- models.Notification, payload models.DevicesResponse) {
	ns <- models.Notification{
		Method: models.NotificationDevicesChanged,
		Params: payload,
	}
}

func PrintChanged(ns chan<- models.Notification, payload models.PrintResponse) {
	ns <- models.Notification{
		Method: models.NotificationPrintChanged,
		Params: payload,
	}
}

func MonitorChanged(ns chan<- models.Notification, payload models.MonitorResponse) {
	ns <- models.Notification{
		Method: models.NotificationMonitorChanged,
		Params: payload,
	}
}
