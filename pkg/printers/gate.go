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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Gate funnels every link operation through a strict FIFO queue. A request
// only issues once the previous one has completed, success or failure, no
// matter which component or timer submitted it, so a response can always be
// correlated with its own request. A plain mutex is not enough here: it
// serializes but does not preserve submission order under contention.
//
// Enumeration never goes through the gate, it does not touch the open link.
type Gate struct {
	transport Transport
	reqs      chan *gateReq
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type gateReq struct {
	ctx     context.Context
	run     func()
	done    chan struct{}
	aborted bool
}

const gateQueueSize = 8

func NewGate(transport Transport) *Gate {
	g := &Gate{
		transport: transport,
		reqs:      make(chan *gateReq, gateQueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go g.loop()
	return g
}

func (g *Gate) loop() {
	defer close(g.done)
	for {
		// check quit first so nothing queued slips through once a
		// shutdown has started
		select {
		case <-g.quit:
			g.drain()
			return
		default:
		}
		select {
		case req := <-g.reqs:
			if req.ctx.Err() != nil {
				// submitter gave up while queued
				req.aborted = true
				close(req.done)
				continue
			}
			req.run()
			close(req.done)
		case <-g.quit:
			g.drain()
			return
		}
	}
}

// drain fails every request still queued so submitters unblock.
func (g *Gate) drain() {
	for {
		select {
		case req := <-g.reqs:
			req.aborted = true
			close(req.done)
		default:
			return
		}
	}
}

func (g *Gate) submit(ctx context.Context, run func()) error {
	req := &gateReq{
		ctx:  ctx,
		run:  run,
		done: make(chan struct{}),
	}

	select {
	case g.reqs <- req:
	case <-g.quit:
		return ErrGateClosed
	case <-ctx.Done():
		return fmt.Errorf("queueing link operation: %w", ctx.Err())
	}

	select {
	case <-req.done:
	case <-g.done:
		// the worker can exit between our enqueue and its drain, leaving
		// the request stranded in the buffer
		select {
		case <-req.done:
		default:
			return ErrGateClosed
		}
	}
	if req.aborted {
		if ctx.Err() != nil {
			return fmt.Errorf("link operation dropped: %w", ctx.Err())
		}
		return ErrGateClosed
	}
	return nil
}

// Open claims the device at path, in queue order.
func (g *Gate) Open(ctx context.Context, path string) error {
	var err error
	serr := g.submit(ctx, func() {
		err = g.transport.Open(path)
	})
	if serr != nil {
		return serr
	}
	return err
}

// Close releases the open device, in queue order.
func (g *Gate) Close(ctx context.Context) error {
	var err error
	serr := g.submit(ctx, func() {
		err = g.transport.Close()
	})
	if serr != nil {
		return serr
	}
	return err
}

// Read sends a command and collects the response, in queue order.
func (g *Gate) Read(ctx context.Context, command []byte, timeout time.Duration) ([]byte, error) {
	var (
		resp []byte
		err  error
	)
	serr := g.submit(ctx, func() {
		resp, err = g.transport.Read(command, timeout)
	})
	if serr != nil {
		return nil, serr
	}
	return resp, err
}

// Write sends payload bytes, in queue order.
func (g *Gate) Write(ctx context.Context, data []byte) error {
	var err error
	serr := g.submit(ctx, func() {
		err = g.transport.Write(data)
	})
	if serr != nil {
		return serr
	}
	return err
}

// Connected reports the transport's link state without queueing.
func (g *Gate) Connected() bool {
	return g.transport.Connected()
}

// Enumerate bypasses the queue, see the type comment.
func (g *Gate) Enumerate() ([]Device, error) {
	devices, err := g.transport.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	return devices, nil
}

// Shutdown stops the worker after the in-flight operation finishes and
// fails everything still queued. Safe to call more than once.
func (g *Gate) Shutdown() {
	g.closeOnce.Do(func() {
		close(g.quit)
	})
	<-g.done
	log.Debug().Msg("transport gate shut down")
}
