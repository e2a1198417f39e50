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

package publishers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskworks/receiptd/pkg/api/models"
)

func TestNewMQTTPublisher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		broker string
		topic  string
		filter []string
	}{
		{
			name:   "with filter",
			broker: "localhost:1883",
			topic:  "receiptd/events",
			filter: []string{models.NotificationStatusChanged, models.NotificationConnectionChanged},
		},
		{
			name:   "without filter",
			broker: "broker.example.com:8883",
			topic:  "notifications",
			filter: nil,
		},
		{
			name:   "empty filter",
			broker: "test:1883",
			topic:  "kiosk/printer",
			filter: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			publisher := NewMQTTPublisher(tt.broker, tt.topic, tt.filter)

			assert.NotNil(t, publisher)
			assert.Equal(t, tt.broker, publisher.broker)
			assert.Equal(t, tt.topic, publisher.topic)
			assert.Equal(t, tt.filter, publisher.filter)
			assert.NotNil(t, publisher.stopCh)
		})
	}
}

func TestMatchesFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		filter []string
		want   bool
	}{
		{
			name:   "empty filter matches all",
			filter: []string{},
			method: models.NotificationStatusChanged,
			want:   true,
		},
		{
			name:   "nil filter matches all",
			filter: nil,
			method: models.NotificationConnectionChanged,
			want:   true,
		},
		{
			name:   "method in filter",
			filter: []string{models.NotificationStatusChanged, models.NotificationPrintChanged},
			method: models.NotificationPrintChanged,
			want:   true,
		},
		{
			name:   "method not in filter",
			filter: []string{models.NotificationStatusChanged, models.NotificationPrintChanged},
			method: models.NotificationDevicesChanged,
			want:   false,
		},
		{
			name:   "case sensitive",
			filter: []string{models.NotificationStatusChanged},
			method: "Status.Changed",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			publisher := &MQTTPublisher{filter: tt.filter}
			assert.Equal(t, tt.want, publisher.matchesFilter(tt.method))
		})
	}
}

func TestStop(t *testing.T) {
	t.Parallel()

	publisher := NewMQTTPublisher("localhost:1883", "test", nil)

	publisher.Stop()

	_, ok := <-publisher.stopCh
	assert.False(t, ok, "stopCh should be closed after Stop()")
}

func TestPublishNotifications(t *testing.T) {
	t.Parallel()

	mockClient := newMockMQTTClient()
	mockClient.connected = true

	publisher := NewMQTTPublisher("localhost:1883", "kiosk/printer", nil)
	publisher.client = mockClient

	notifChan := make(chan models.Notification, 10)
	go publisher.publishNotifications(notifChan)

	notifChan <- models.Notification{
		Method: models.NotificationStatusChanged,
		Params: map[string]any{"online": true, "paperOut": false},
	}

	require.Eventually(t, func() bool {
		return mockClient.getPublishedCount() == 1
	}, time.Second, 10*time.Millisecond)

	mockClient.mu.Lock()
	assert.Equal(t, "kiosk/printer/status.changed", mockClient.publishedMsgs[0].topic)
	mockClient.mu.Unlock()

	publisher.Stop()
}

func TestPublishNotificationsFilteredOut(t *testing.T) {
	t.Parallel()

	mockClient := newMockMQTTClient()
	mockClient.connected = true

	publisher := NewMQTTPublisher(
		"localhost:1883", "kiosk/printer",
		[]string{models.NotificationConnectionChanged},
	)
	publisher.client = mockClient

	notifChan := make(chan models.Notification, 10)
	go publisher.publishNotifications(notifChan)

	notifChan <- models.Notification{
		Method: models.NotificationStatusChanged,
		Params: map[string]any{"online": true},
	}
	notifChan <- models.Notification{
		Method: models.NotificationConnectionChanged,
		Params: map[string]any{"state": "connected"},
	}

	// only the connection.changed event passes the filter
	require.Eventually(t, func() bool {
		return mockClient.getPublishedCount() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mockClient.getPublishedCount())

	publisher.Stop()
}

func TestPublishNotificationsPublishError(t *testing.T) {
	t.Parallel()

	mockClient := newMockMQTTClient()
	mockClient.connected = true
	mockClient.publishError = assert.AnError

	publisher := NewMQTTPublisher("localhost:1883", "kiosk/printer", nil)
	publisher.client = mockClient

	notifChan := make(chan models.Notification, 10)
	go publisher.publishNotifications(notifChan)

	// a failed publish is logged and skipped, not fatal
	notifChan <- models.Notification{
		Method: models.NotificationPrintChanged,
		Params: map[string]any{"printing": false},
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, mockClient.getPublishedCount())

	publisher.Stop()
}

func TestPublishNotificationsChannelClosed(t *testing.T) {
	t.Parallel()

	mockClient := newMockMQTTClient()
	mockClient.connected = true

	publisher := NewMQTTPublisher("localhost:1883", "kiosk/printer", nil)
	publisher.client = mockClient

	notifChan := make(chan models.Notification)
	done := make(chan struct{})
	go func() {
		publisher.publishNotifications(notifChan)
		close(done)
	}()

	close(notifChan)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher goroutine did not exit on channel close")
	}
}

func TestStopWithConnectedClient(t *testing.T) {
	t.Parallel()

	mockClient := newMockMQTTClient()
	mockClient.connected = true

	publisher := NewMQTTPublisher("localhost:1883", "test", nil)
	publisher.client = mockClient

	publisher.Stop()

	assert.Equal(t, 1, mockClient.disconnectCall)
	assert.False(t, mockClient.IsConnected())

	_, ok := <-publisher.stopCh
	assert.False(t, ok, "stopCh should be closed after Stop()")
}
