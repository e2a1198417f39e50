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

package probe_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskworks/receiptd/pkg/printers"
	"github.com/kioskworks/receiptd/pkg/printers/escpos"
	"github.com/kioskworks/receiptd/pkg/printers/probe"
	"github.com/kioskworks/receiptd/pkg/printers/testutils"
)

const devPath = "/dev/usb/lp0"

func fastPolicy() probe.Policy {
	return probe.Policy{
		Retries:        2,
		AttemptTimeout: 50 * time.Millisecond,
		RetryDelay:     time.Millisecond,
	}
}

func newProber(t *testing.T, transport *testutils.MockTransport, policy probe.Policy) *probe.Prober {
	t.Helper()
	gate := printers.NewGate(transport)
	t.Cleanup(gate.Shutdown)
	return probe.New(gate, clockwork.NewRealClock(), policy)
}

func openTransport() *testutils.MockTransport {
	transport := testutils.NewMockTransport()
	transport.SetOpen(true, devPath)
	transport.Devices = []printers.Device{{Path: devPath, DisplayName: "TM-T88V"}}
	return transport
}

func TestDiagnoseHealthy(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x12}
	transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x00}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.False(t, snap.HasError)
	assert.Equal(t, printers.ErrorNone, snap.ErrorKind)
	assert.True(t, snap.Online)
	require.NotNil(t, snap.HasPaper)
	assert.True(t, *snap.HasPaper)
	require.NotNil(t, snap.CoverOpen)
	assert.False(t, *snap.CoverOpen)
	assert.True(t, snap.Ready())
}

// A stale buffered byte ahead of the fresh one must not flip the
// diagnosis: the scan works from the newest byte backward.
func TestDiagnosePrefersNewestStatusByte(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x1A, 0x12}
	transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x00}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.False(t, snap.HasError)
	assert.True(t, snap.Online)
}

func TestDiagnoseCoverOpenSkipsPaperSensor(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x1A}
	transport.Responses[string(escpos.StatusOfflineCause)] = []byte{0x16}
	// a paper sensor value that would scream paper-out if consulted
	transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x72}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.Equal(t, printers.ErrorCoverOpen, snap.ErrorKind)
	assert.False(t, snap.Online)
	require.NotNil(t, snap.CoverOpen)
	assert.True(t, *snap.CoverOpen)
	for _, call := range transport.Calls() {
		assert.NotEqual(t, "read:10 04 04", call,
			"cover-open diagnosis must not depend on the paper sensor")
	}
}

func TestDiagnosePaperOutWhileOnline(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x12}
	// the sensor byte is read raw, roll-end bits 5 and 6 set
	transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x60}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.Equal(t, printers.ErrorPaperOut, snap.ErrorKind)
	assert.True(t, snap.Online)
	require.NotNil(t, snap.HasPaper)
	assert.False(t, *snap.HasPaper)
	assert.False(t, snap.Ready())
}

func TestDiagnoseOfflineCauses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cause    []byte
		wantKind printers.ErrorKind
	}{
		{"error bit", []byte{0x52}, printers.ErrorCommunication},
		{"paper end stop", []byte{0x32}, printers.ErrorPaperOut},
		{"no recognized cause", []byte{0x12}, printers.ErrorOffline},
		{"cover wins over error bit", []byte{0x56}, printers.ErrorCoverOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := openTransport()
			transport.Responses[string(escpos.StatusOnline)] = []byte{0x1A}
			transport.Responses[string(escpos.StatusOfflineCause)] = tt.cause
			p := newProber(t, transport, fastPolicy())

			snap := p.Diagnose(context.Background(), devPath)

			assert.Equal(t, tt.wantKind, snap.ErrorKind)
			assert.False(t, snap.Online)
		})
	}
}

// Offline with an unreadable cause byte must not guess: the paper and
// cover fields stay unknown.
func TestDiagnoseOfflineIncompleteReadKeepsUnknowns(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x1A}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.Equal(t, printers.ErrorOffline, snap.ErrorKind)
	assert.Nil(t, snap.HasPaper)
	assert.Nil(t, snap.CoverOpen)
	assert.Contains(t, snap.Message, "incomplete")
}

func TestDiagnoseOnlineUnstableSensorRead(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusOnline)] = []byte{0x12}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.Equal(t, printers.ErrorCommunication, snap.ErrorKind)
	assert.True(t, snap.Online)
	assert.Nil(t, snap.HasPaper, "unknown paper state must not be coerced")
}

func TestDiagnoseSilentDeviceFallbacks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		cause     []byte
		sensor    []byte
		wantKind  printers.ErrorKind
		wantPaper *bool
	}{
		{"cover open", []byte{0x16}, nil, printers.ErrorCoverOpen, nil},
		{"offline error", []byte{0x52}, nil, printers.ErrorCommunication, nil},
		{"paper end stop", []byte{0x32}, nil, printers.ErrorPaperOut, printers.BoolPtr(false)},
		{"paper sensor only", nil, []byte{0x72}, printers.ErrorPaperOut, printers.BoolPtr(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := openTransport()
			if tt.cause != nil {
				transport.Responses[string(escpos.StatusOfflineCause)] = tt.cause
			}
			if tt.sensor != nil {
				transport.Responses[string(escpos.StatusPaperSensor)] = tt.sensor
			}
			p := newProber(t, transport, fastPolicy())

			snap := p.Diagnose(context.Background(), devPath)

			assert.Equal(t, tt.wantKind, snap.ErrorKind)
			assert.False(t, snap.Online)
			if tt.wantPaper != nil {
				require.NotNil(t, snap.HasPaper)
				assert.Equal(t, *tt.wantPaper, *snap.HasPaper)
			}
		})
	}
}

func TestDiagnoseSilentButPresentIsOffline(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.Equal(t, printers.ErrorOffline, snap.ErrorKind)
	assert.True(t, snap.NoResponse())
	assert.Contains(t, snap.Message, "still present")
}

// A link that throws instead of going quiet must still resolve through
// enumeration: unplugged means DeviceNotFound, not a raw I/O error.
func TestDiagnoseReadErrorsResolveByPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		devices  []printers.Device
		wantKind printers.ErrorKind
	}{
		{"unplugged", nil, printers.ErrorDeviceNotFound},
		{"still enumerated", []printers.Device{{Path: devPath}}, printers.ErrorOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := testutils.NewMockTransport()
			transport.SetOpen(true, devPath)
			transport.Devices = tt.devices
			transport.ReadFunc = func(_ []byte, _ time.Duration) ([]byte, error) {
				return nil, errors.New("endpoint stalled")
			}
			p := newProber(t, transport, fastPolicy())

			snap := p.Diagnose(context.Background(), devPath)

			assert.Equal(t, tt.wantKind, snap.ErrorKind)
			assert.Nil(t, snap.HasPaper)
			assert.Nil(t, snap.CoverOpen)
		})
	}
}

func TestDiagnoseRetriesEachQuery(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	var reads atomic.Int32
	transport.ReadFunc = func(command []byte, _ time.Duration) ([]byte, error) {
		reads.Add(1)
		if string(command) == string(escpos.StatusPaperSensor) {
			return nil, nil
		}
		// garbage that never passes the framing filter
		return []byte{0xFF}, nil
	}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	// three queries, three attempts each
	assert.Equal(t, int32(9), reads.Load())
	assert.Equal(t, printers.ErrorOffline, snap.ErrorKind)
}

func TestDiagnoseRecoversOnRetry(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x00}
	var onlineReads atomic.Int32
	transport.ReadFunc = func(command []byte, _ time.Duration) ([]byte, error) {
		if string(command) == string(escpos.StatusOnline) {
			if onlineReads.Add(1) < 3 {
				return nil, nil
			}
			return []byte{0x12}, nil
		}
		return transport.Responses[string(command)], nil
	}
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(context.Background(), devPath)

	assert.False(t, snap.HasError, "third attempt answered, diagnosis must be healthy")
	assert.Equal(t, int32(3), onlineReads.Load())
}

func TestDiagnoseOnlineErrorBitPolicy(t *testing.T) {
	t.Parallel()

	for _, fatal := range []bool{false, true} {
		transport := openTransport()
		transport.Responses[string(escpos.StatusOnline)] = []byte{0x52}
		transport.Responses[string(escpos.StatusPaperSensor)] = []byte{0x00}
		policy := fastPolicy()
		policy.OnlineErrorBitFatal = fatal
		p := newProber(t, transport, policy)

		snap := p.Diagnose(context.Background(), devPath)

		if fatal {
			assert.Equal(t, printers.ErrorCommunication, snap.ErrorKind)
			assert.True(t, snap.Online)
		} else {
			assert.False(t, snap.HasError,
				"error bit is advisory unless the policy says otherwise")
		}
	}
}

func TestDiagnoseCancelledContext(t *testing.T) {
	t.Parallel()

	transport := openTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newProber(t, transport, fastPolicy())

	snap := p.Diagnose(ctx, devPath)

	// a cancelled diagnosis falls through to the presence check, the
	// device is still enumerated so this is a plain no-response
	assert.Equal(t, printers.ErrorOffline, snap.ErrorKind)
	assert.True(t, strings.Contains(snap.Message, "still present"))
}
