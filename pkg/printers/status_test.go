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

package printers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindFatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind  ErrorKind
		fatal bool
	}{
		{ErrorNone, false},
		{ErrorPaperOut, false},
		{ErrorCoverOpen, false},
		{ErrorOffline, false},
		{ErrorUnknown, false},
		{ErrorCommunication, true},
		{ErrorDeviceNotFound, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.fatal, tt.kind.Fatal())
		})
	}
}

func TestSnapshotReady(t *testing.T) {
	t.Parallel()
	now := time.Now()

	assert.True(t, Healthy(now).Ready())

	tests := []struct {
		name string
		snap StatusSnapshot
	}{
		{"offline", StatusSnapshot{Online: false, HasPaper: BoolPtr(true), CoverOpen: BoolPtr(false)}},
		{"flagged error", StatusSnapshot{Online: true, HasError: true, HasPaper: BoolPtr(true), CoverOpen: BoolPtr(false)}},
		{"paper out", StatusSnapshot{Online: true, HasPaper: BoolPtr(false), CoverOpen: BoolPtr(false)}},
		{"paper unknown", StatusSnapshot{Online: true, HasPaper: nil, CoverOpen: BoolPtr(false)}},
		{"cover open", StatusSnapshot{Online: true, HasPaper: BoolPtr(true), CoverOpen: BoolPtr(true)}},
		{"cover unknown", StatusSnapshot{Online: true, HasPaper: BoolPtr(true), CoverOpen: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.False(t, tt.snap.Ready(), "unknown or bad state must not count as ready")
		})
	}
}

func TestSnapshotNoResponse(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusSnapshot{ErrorKind: ErrorOffline, HasError: true}.NoResponse())
	assert.False(t, StatusSnapshot{ErrorKind: ErrorPaperOut, HasError: true}.NoResponse())
	assert.False(t, Healthy(time.Now()).NoResponse())
}

// The tri-state fields must survive serialization as explicit nulls so
// clients can tell "unknown" from "no".
func TestSnapshotJSONKeepsUnknownFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(StatusSnapshot{
		Timestamp: time.Now(),
		Online:    true,
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hasPaper":null`)
	assert.Contains(t, string(data), `"coverOpen":null`)

	var snap StatusSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Nil(t, snap.HasPaper)
	assert.Nil(t, snap.CoverOpen)
}
