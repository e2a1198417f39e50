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

package usbraw

import (
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		path    string
		wantVid gousb.ID
		wantPid gousb.ID
		wantErr bool
	}{
		{"epson tm-t20", "04b8:0e15", 0x04b8, 0x0e15, false},
		{"uppercase hex", "04B8:0202", 0x04b8, 0x0202, false},
		{"missing colon", "04b80e15", 0, 0, true},
		{"garbage vendor", "zzzz:0e15", 0, 0, true},
		{"garbage product", "04b8:zzzz", 0, 0, true},
		{"too many parts", "04b8:0e15:1", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vid, pid, err := parsePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVid, vid)
			assert.Equal(t, tt.wantPid, pid)
		})
	}
}

func TestPrinterClass(t *testing.T) {
	t.Parallel()

	assert.True(t, printerClass(&gousb.DeviceDesc{Class: gousb.ClassPrinter}))
	assert.False(t, printerClass(&gousb.DeviceDesc{Class: gousb.ClassHID}))

	// composite device carrying a printer interface
	composite := &gousb.DeviceDesc{
		Class: gousb.ClassPerInterface,
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Interfaces: []gousb.InterfaceDesc{
					{
						AltSettings: []gousb.InterfaceSetting{
							{Class: gousb.ClassVendorSpec},
							{Class: gousb.ClassPrinter},
						},
					},
				},
			},
		},
	}
	assert.True(t, printerClass(composite))

	assert.False(t, printerClass(&gousb.DeviceDesc{Class: gousb.ClassPerInterface}))
}
