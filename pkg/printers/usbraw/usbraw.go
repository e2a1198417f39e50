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

// Package usbraw drives printers over their bulk USB endpoints, the
// usual attachment for a kiosk receipt printer. Device paths are
// "vid:pid" in hex, e.g. "04b8:0e15".
package usbraw

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/helpers/syncutil"
	"github.com/kioskworks/receiptd/pkg/printers"
)

// Transport implements printers.Transport over libusb bulk transfers.
// Each open claims its own usb context so a wedged device can be fully
// torn down and re-initialized on reconnect.
type Transport struct {
	usbCtx   *gousb.Context
	dev      *gousb.Device
	intf     *gousb.Interface
	intfDone func()
	out      *gousb.OutEndpoint
	in       *gousb.InEndpoint
	path     string
	mu       syncutil.Mutex
}

func NewTransport(_ *config.Instance) *Transport {
	return &Transport{}
}

func (*Transport) ID() string {
	return config.DriverUSBRaw
}

// Enumerate walks descriptors without opening anything, so it is safe
// while I/O is pending on the open device.
func (t *Transport) Enumerate() ([]printers.Device, error) {
	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close usb context after enumeration")
		}
	}()

	t.mu.Lock()
	openPath := t.path
	t.mu.Unlock()

	seen := make(map[string]printers.Device)
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if !printerClass(desc) {
			return false
		}
		path := fmt.Sprintf("%s:%s", desc.Vendor, desc.Product)
		seen[path] = printers.Device{
			Path:        path,
			DisplayName: fmt.Sprintf("USB printer %s", path),
			Connected:   path == openPath,
		}
		// enumeration only, never open
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate usb devices: %w", err)
	}

	devices := make([]printers.Device, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Path < devices[j].Path
	})
	return devices, nil
}

// printerClass matches the USB printer class either on the device or,
// for composite devices, on any interface alt setting.
func printerClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func parsePath(path string) (gousb.ID, gousb.ID, error) {
	parts := strings.Split(path, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid usb path %q, want vid:pid", path)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id in %q: %w", path, err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id in %q: %w", path, err)
	}
	return gousb.ID(vid), gousb.ID(pid), nil
}

func (t *Transport) Open(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev != nil {
		return printers.ErrAlreadyOpen
	}
	vid, pid, err := parsePath(path)
	if err != nil {
		return err
	}

	usbCtx := gousb.NewContext()
	dev, err := usbCtx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		_ = usbCtx.Close()
		return fmt.Errorf("failed to open usb device %s: %w", path, err)
	}
	if dev == nil {
		_ = usbCtx.Close()
		return fmt.Errorf("usb device %s not found", path)
	}

	// take the device back from usblp if the kernel grabbed it
	if err := dev.SetAutoDetach(true); err != nil {
		log.Debug().Err(err).Msg("auto-detach not supported on this platform")
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		_ = dev.Close()
		_ = usbCtx.Close()
		return fmt.Errorf("failed to claim usb interface on %s: %w", path, err)
	}

	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && out == nil:
			out, err = intf.OutEndpoint(ep.Number)
			if err != nil {
				log.Debug().Err(err).Int("endpoint", ep.Number).Msg("failed to open OUT endpoint")
			}
		case ep.Direction == gousb.EndpointDirectionIn && in == nil:
			in, err = intf.InEndpoint(ep.Number)
			if err != nil {
				log.Debug().Err(err).Int("endpoint", ep.Number).Msg("failed to open IN endpoint")
			}
		}
	}
	if out == nil {
		done()
		_ = dev.Close()
		_ = usbCtx.Close()
		return fmt.Errorf("usb device %s has no usable bulk OUT endpoint", path)
	}

	t.usbCtx = usbCtx
	t.dev = dev
	t.intf = intf
	t.intfDone = done
	t.out = out
	t.in = in
	t.path = path
	log.Debug().Str("path", path).Bool("canRead", in != nil).Msg("usb device opened")
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil
	}
	t.intfDone()
	devErr := t.dev.Close()
	ctxErr := t.usbCtx.Close()

	t.usbCtx = nil
	t.dev = nil
	t.intf = nil
	t.intfDone = nil
	t.out = nil
	t.in = nil
	t.path = ""

	if devErr != nil {
		return fmt.Errorf("failed to close usb device: %w", devErr)
	}
	if ctxErr != nil {
		return fmt.Errorf("failed to close usb context: %w", ctxErr)
	}
	log.Debug().Msg("usb device closed")
	return nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return printers.ErrNotOpen
	}
	for len(data) > 0 {
		n, err := t.out.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write to usb endpoint: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Read sends a command and waits up to timeout for a bulk-IN reply.
// Devices without an IN endpoint, and timeouts, both count as silence.
func (t *Transport) Read(command []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, printers.ErrNotOpen
	}
	if _, err := t.out.Write(command); err != nil {
		return nil, fmt.Errorf("failed to send status query: %w", err)
	}
	if t.in == nil {
		return nil, nil
	}

	readCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, t.in.Desc.MaxPacketSize)
	n, err := t.in.ReadContext(readCtx, buf)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, gousb.ErrorTimeout) ||
			errors.Is(err, gousb.TransferTimedOut) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status reply: %w", err)
	}
	return buf[:n], nil
}
