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

// Package service implements the printer connection engine: a single
// actor goroutine owning the connection state machine, the monitor and
// reconnect loops and the print gate, plus the daemon wiring around it.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/printers"
	"github.com/kioskworks/receiptd/pkg/printers/escpos"
	"github.com/kioskworks/receiptd/pkg/printers/probe"
	"github.com/kioskworks/receiptd/pkg/service/state"
)

var (
	ErrEngineStopped    = errors.New("engine stopped")
	ErrNoDeviceSelected = errors.New("no printer selected")
	ErrNotConnected     = errors.New("printer not connected")
	ErrNotReady         = errors.New("printer not ready")
	ErrPrintBusy        = errors.New("print already in progress")
)

const eventQueueSize = 64

// Manager is the connection engine actor. All fields below the events
// channel are owned by the run loop and never touched from outside it.
type Manager struct {
	cfg       *config.Instance
	st        *state.State
	transport printers.Transport
	gate      *printers.Gate
	prober    *probe.Prober
	clock     clockwork.Clock

	events  chan event
	quit    chan struct{}
	stopped chan struct{}
	runCtx  context.Context
	cancel  context.CancelFunc

	conn         printers.ConnectionState
	session      uint64
	sessionPath  string
	sessionModel string
	selectedPath string
	connectSeq   uint64
	// offlineMisses counts consecutive no-response snapshots while
	// connected; one is forgiven, two mean the link is really gone.
	offlineMisses int

	monitor   monitorState
	reconnect reconnectState
	print     printState
}

func NewManager(
	cfg *config.Instance,
	st *state.State,
	transport printers.Transport,
	clock clockwork.Clock,
) *Manager {
	gate := printers.NewGate(transport)
	policy := probe.Policy{
		Retries:             cfg.ProbeRetries(),
		AttemptTimeout:      cfg.ProbeTimeout(),
		RetryDelay:          cfg.ProbeRetryDelay(),
		OnlineErrorBitFatal: cfg.OnlineErrorBitFatal(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:          cfg,
		st:           st,
		transport:    transport,
		gate:         gate,
		prober:       probe.New(gate, clock, policy),
		clock:        clock,
		events:       make(chan event, eventQueueSize),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
		runCtx:       ctx,
		cancel:       cancel,
		conn:         printers.StateDisconnected,
		selectedPath: cfg.PrinterPath(),
	}
}

// Start launches the run loop, seeds the device list and arms the
// reconnect scheduler so an attached printer is picked up on boot.
func (m *Manager) Start() {
	go m.run()
	m.send(evStartup{})
}

// Stop shuts the engine down: every timer is cancelled first, then the
// transport is released, in that order.
func (m *Manager) Stop() {
	close(m.quit)
	<-m.stopped
	m.cancel()
	m.gate.Shutdown()
	if err := m.transport.Close(); err != nil {
		log.Debug().Err(err).Msg("closing transport on shutdown")
	}
}

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case <-m.quit:
			m.cancelAllTimers()
			return
		case e := <-m.events:
			m.handle(e)
		}
	}
}

func (m *Manager) handle(e event) {
	switch e := e.(type) {
	case evStartup:
		m.handleStartup()
	case evLoadDevices:
		e.reply <- m.refreshDevices()
	case evSelectDevice:
		m.handleSelectDevice(e.path)
	case evConnect:
		m.handleConnect(e.path)
	case evOpenDone:
		m.handleOpenDone(e)
	case evSeedDone:
		m.handleSeedDone(e)
	case evDisconnect:
		m.handleDisconnect()
		e.reply <- struct{}{}
	case evStartMonitor:
		m.requestMonitorStart(e.interval)
	case evStopMonitor:
		m.stopMonitor()
	case evMonitorDebounce:
		m.handleMonitorDebounce(e.seq)
	case evMonitorTick:
		m.handleMonitorTick(e.seq)
	case evCheckStatus:
		m.handleCheckStatus(e.reply)
	case evSnapshot:
		m.handleSnapshot(e)
	case evReconnectTick:
		m.handleReconnectTick(e.seq)
	case evNudge:
		m.handleNudge()
	case evPrint:
		m.handlePrint(e)
	case evValidate:
		m.handleValidate(e)
	case evValidated:
		m.handleValidated(e)
	case evPrintDone:
		m.handlePrintDone(e)
	case evPrintClear:
		m.handlePrintClear(e.seq)
	case evClearError:
		m.handleClearError()
	case evReset:
		m.handleReset()
		e.reply <- struct{}{}
	default:
		log.Error().Msgf("unhandled engine event: %T", e)
	}
}

func (m *Manager) cancelAllTimers() {
	m.stopTimer(&m.monitor.timer)
	m.stopTimer(&m.monitor.debounceTimer)
	m.stopTimer(&m.reconnect.timer)
	m.stopTimer(&m.print.clearTimer)
}

func (m *Manager) stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// send queues an event for the run loop, giving up on shutdown. The
// quit check runs first so a stopped engine never accepts an event into
// the buffer nobody will read.
func (m *Manager) send(e event) bool {
	select {
	case <-m.quit:
		return false
	default:
	}
	select {
	case m.events <- e:
		return true
	case <-m.quit:
		return false
	}
}

// deliver is send for I/O goroutines: identical, named separately so
// call sites read as completions re-entering the queue.
func (m *Manager) deliver(e event) {
	select {
	case m.events <- e:
	case <-m.quit:
	}
}

func (m *Manager) handleStartup() {
	m.refreshDevices()
	m.startReconnect()
}

// refreshDevices re-enumerates and publishes the device list. The
// engine never trusts a previous enumeration: devices are ephemeral and
// identity is the path alone.
func (m *Manager) refreshDevices() []printers.Device {
	m.st.SetLoading(true)
	devices, err := m.gate.Enumerate()
	m.st.SetLoading(false)
	if err != nil {
		log.Warn().Err(err).Msg("device enumeration failed")
		devices = nil
	}
	for i := range devices {
		devices[i].Connected = m.conn == printers.StateConnected &&
			devices[i].Path == m.sessionPath
		if devices[i].Path == m.sessionPath && m.sessionModel != "" {
			devices[i].DisplayName = m.sessionModel
		}
	}
	m.st.SetDevices(devices, m.selectedPath)
	return devices
}

func (m *Manager) handleSelectDevice(path string) {
	m.selectedPath = path
	m.st.ClearError()
	m.st.SetSelectedDevice(path)
	// a manual selection resolves the multiple-printers stall and, like
	// a device-watcher nudge, revives a scheduler parked after a spent
	// attempt budget
	m.reconnect.awaitingManualSelect = false
	m.handleNudge()
}

// handleConnect drives Disconnected/Connected --Connect--> Connecting.
// The open and the seeding probe run in a goroutine; their completions
// re-enter the queue tagged with this attempt's sequence.
func (m *Manager) handleConnect(path string) {
	if path == "" {
		path = m.selectedPath
	}
	if path == "" {
		m.st.SetError("no printer selected")
		return
	}

	m.stopMonitor()
	m.offlineMisses = 0
	m.sessionPath = ""
	m.sessionModel = ""
	m.selectedPath = path
	m.connectSeq++
	attempt := m.connectSeq

	m.conn = printers.StateConnecting
	m.st.SetConnectionState(printers.StateConnecting, path, "")

	timeout := m.cfg.ProbeTimeout()
	go func() {
		// best-effort close of whatever was open before; errors are
		// uninteresting, the open below will surface real trouble
		_ = m.gate.Close(m.runCtx)

		err := m.gate.Open(m.runCtx, path)
		model := ""
		if err == nil {
			// best-effort model probe, failure must not fail the connect
			if resp, rerr := m.gate.Read(m.runCtx, escpos.ModelName, timeout); rerr == nil {
				model = escpos.ParseModelName(resp)
			}
		}
		m.deliver(evOpenDone{attempt: attempt, path: path, model: model, err: err})
	}()
}

func (m *Manager) handleOpenDone(e evOpenDone) {
	if e.attempt != m.connectSeq || m.conn != printers.StateConnecting {
		// a disconnect or a newer attempt superseded this open; if it
		// succeeded the port is dangling, close it
		if e.err == nil {
			go func() { _ = m.gate.Close(m.runCtx) }()
		}
		log.Debug().Str("path", e.path).Msg("discarding open result from superseded attempt")
		return
	}

	if e.err != nil {
		log.Warn().Err(e.err).Str("path", e.path).Msg("opening printer failed")
		m.connectFailed(e.path, "failed to open printer")
		return
	}

	m.sessionModel = e.model
	attempt := e.attempt
	path := e.path
	go func() {
		snap := m.prober.Diagnose(m.runCtx, path)
		m.deliver(evSeedDone{attempt: attempt, path: path, snap: snap})
	}()
}

func (m *Manager) handleSeedDone(e evSeedDone) {
	if e.attempt != m.connectSeq || m.conn != printers.StateConnecting {
		log.Debug().Str("path", e.path).Msg("discarding seed probe from superseded attempt")
		return
	}

	m.st.SetSnapshot(e.snap)

	// a device that cannot produce a first diagnosis is not connected;
	// non-fatal conditions like paper-out still count as a responsive
	// printer and complete the connect
	if e.snap.ErrorKind.Fatal() || e.snap.NoResponse() {
		go func() { _ = m.gate.Close(m.runCtx) }()
		m.connectFailed(e.path, e.snap.Message)
		return
	}

	m.session++
	m.sessionPath = e.path
	m.offlineMisses = 0
	m.conn = printers.StateConnected
	m.st.ClearError()
	m.st.SetConnectionState(printers.StateConnected, e.path, "")
	m.refreshDevices()
	m.stopReconnect()
	m.requestMonitorStart(m.cfg.MonitorInterval())
	log.Info().
		Str("path", e.path).
		Str("model", m.sessionModel).
		Uint64("session", m.session).
		Msg("printer connected")
}

// connectFailed lands a failed attempt in Error and makes sure the
// reconnect loop is working on it.
func (m *Manager) connectFailed(path, msg string) {
	if msg == "" {
		msg = "could not connect to printer"
	}
	m.conn = printers.StateError
	m.st.SetError(msg)
	m.st.SetConnectionState(printers.StateError, path, msg)
	if m.reconnect.active {
		m.reconnectFailedTick()
	} else {
		m.startReconnect()
	}
}

// handleDisconnect is the user-initiated transition: deterministic,
// idempotent, cancels both loops and leaves the engine at rest.
func (m *Manager) handleDisconnect() {
	m.connectSeq++
	m.session++
	m.stopMonitor()
	m.stopReconnect()
	m.closeSession()
	m.conn = printers.StateDisconnected
	m.st.SetConnectionState(printers.StateDisconnected, "", "")
	m.refreshDevices()
}

func (m *Manager) closeSession() {
	if m.sessionPath != "" || m.gate.Connected() {
		go func() { _ = m.gate.Close(m.runCtx) }()
	}
	m.sessionPath = ""
	m.sessionModel = ""
}

func (m *Manager) handleCheckStatus(reply chan printers.StatusSnapshot) {
	if m.conn != printers.StateConnected || m.sessionPath == "" {
		reply <- printers.StatusSnapshot{
			Timestamp: m.clock.Now(),
			HasError:  true,
			ErrorKind: printers.ErrorDeviceNotFound,
			Message:   "no printer connected",
		}
		return
	}
	m.issueProbe(reply, false)
}

// issueProbe launches a gated status probe under the current session.
func (m *Manager) issueProbe(reply chan printers.StatusSnapshot, monitor bool) {
	session := m.session
	path := m.sessionPath
	go func() {
		snap := m.prober.Diagnose(m.runCtx, path)
		m.deliver(evSnapshot{session: session, snap: snap, reply: reply, monitor: monitor})
	}()
}

func (m *Manager) handleSnapshot(e evSnapshot) {
	if e.reply != nil {
		e.reply <- e.snap
	}
	if e.monitor {
		m.monitor.probePending = false
	}
	if e.session != m.session {
		log.Debug().
			Uint64("session", e.session).
			Uint64("current", m.session).
			Msg("discarding snapshot from superseded session")
		return
	}
	m.applySnapshot(e.snap)
}

// applySnapshot is the single path every current-session diagnosis goes
// through: it publishes the snapshot and decides whether the connection
// survives it. Non-fatal conditions (paper out, cover open) surface to
// observers but leave the connection alone.
func (m *Manager) applySnapshot(snap printers.StatusSnapshot) {
	m.st.SetSnapshot(snap)

	if m.conn != printers.StateConnected {
		return
	}

	fatal := snap.ErrorKind.Fatal()
	if snap.NoResponse() {
		m.offlineMisses++
		if m.offlineMisses >= 2 {
			fatal = true
		}
	} else {
		m.offlineMisses = 0
	}
	if !fatal {
		return
	}

	log.Warn().
		Str("kind", string(snap.ErrorKind)).
		Str("message", snap.Message).
		Msg("connection lost")
	m.dropConnection(snap.Message)
}

// dropConnection handles Connected --fatal snapshot--> Disconnected:
// the port is closed, the session cleared and the reconnect loop takes
// over. The selected path survives so the loop can find the same
// printer again.
func (m *Manager) dropConnection(msg string) {
	m.connectSeq++
	m.session++
	m.stopMonitor()
	m.closeSession()
	m.offlineMisses = 0
	m.conn = printers.StateDisconnected
	if msg == "" {
		msg = "printer connection lost"
	}
	m.st.SetError(msg)
	m.st.SetConnectionState(printers.StateDisconnected, "", msg)
	m.refreshDevices()
	m.startReconnect()
}

func (m *Manager) handleClearError() {
	m.st.ClearError()
	if ps, _ := m.st.PrintState(); ps == printers.PrintError {
		m.stopTimer(&m.print.clearTimer)
		m.print.clearSeq++
		m.setPrintState(printers.PrintIdle, "")
	}
}

// handleReset rebuilds the engine to its boot state: everything
// cancelled, all ephemeral state dropped, then a fresh enumeration and
// an armed reconnect loop.
func (m *Manager) handleReset() {
	m.connectSeq++
	m.session++
	m.stopMonitor()
	m.stopReconnect()
	m.closeSession()
	m.offlineMisses = 0
	m.selectedPath = m.cfg.PrinterPath()
	m.stopTimer(&m.print.clearTimer)
	m.print.clearSeq++
	m.print.job = nil
	m.conn = printers.StateDisconnected
	m.st.ClearError()
	m.setPrintState(printers.PrintIdle, "")
	m.st.SetConnectionState(printers.StateDisconnected, "", "")
	m.refreshDevices()
	m.startReconnect()
}

// Controller surface. Each method queues an event for the run loop;
// the ones that need an answer wait for the reply or the caller's
// context, whichever comes first.

func (m *Manager) LoadDevices(ctx context.Context) ([]printers.Device, error) {
	reply := make(chan []printers.Device, 1)
	if err := m.sendCtx(ctx, evLoadDevices{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case devices := <-reply:
		return devices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.quit:
		return nil, ErrEngineStopped
	}
}

func (m *Manager) SelectDevice(path string) error {
	if !m.send(evSelectDevice{path: path}) {
		return ErrEngineStopped
	}
	return nil
}

func (m *Manager) Connect(path string) error {
	if !m.send(evConnect{path: path}) {
		return ErrEngineStopped
	}
	return nil
}

func (m *Manager) Disconnect(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := m.sendCtx(ctx, evDisconnect{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrEngineStopped
	}
}

func (m *Manager) StartMonitoring(interval time.Duration) error {
	if !m.send(evStartMonitor{interval: interval}) {
		return ErrEngineStopped
	}
	return nil
}

func (m *Manager) StopMonitoring() error {
	if !m.send(evStopMonitor{}) {
		return ErrEngineStopped
	}
	return nil
}

func (m *Manager) CheckStatus(ctx context.Context) (printers.StatusSnapshot, error) {
	reply := make(chan printers.StatusSnapshot, 1)
	if err := m.sendCtx(ctx, evCheckStatus{reply: reply}); err != nil {
		return printers.StatusSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return printers.StatusSnapshot{}, ctx.Err()
	case <-m.quit:
		return printers.StatusSnapshot{}, ErrEngineStopped
	}
}

func (m *Manager) Print(ctx context.Context, payload []byte) error {
	reply := make(chan error, 1)
	if err := m.sendCtx(ctx, evPrint{payload: payload, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrEngineStopped
	}
}

func (m *Manager) ValidateBeforeCriticalPoint(ctx context.Context, tag string) (bool, error) {
	reply := make(chan bool, 1)
	if err := m.sendCtx(ctx, evValidate{tag: tag, reply: reply}); err != nil {
		return false, err
	}
	select {
	case ready := <-reply:
		return ready, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-m.quit:
		return false, ErrEngineStopped
	}
}

func (m *Manager) ClearError() error {
	if !m.send(evClearError{}) {
		return ErrEngineStopped
	}
	return nil
}

func (m *Manager) Reset(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := m.sendCtx(ctx, evReset{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrEngineStopped
	}
}

func (m *Manager) sendCtx(ctx context.Context, e event) error {
	select {
	case <-m.quit:
		return ErrEngineStopped
	default:
	}
	select {
	case m.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return ErrEngineStopped
	}
}
