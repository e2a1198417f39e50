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

// Package client is a small WebSocket JSON-RPC client for the local
// daemon, used by the CLI and by anything that wants one-shot calls
// without holding a connection open.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/config"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api/v0"

func localWSURL(cfg *config.Instance) string {
	u := url.URL{
		Scheme: "ws",
		Host:   "localhost:" + strconv.Itoa(cfg.APIPort()),
		Path:   APIPath,
	}
	return u.String()
}

// LocalClient sends a single method with params to the local running
// daemon, waits for the response until timeout, then disconnects.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	return call(ctx, localWSURL(cfg), method, params, config.ApiRequestTimeout)
}

// call runs one request/response exchange against a WebSocket endpoint.
func call(
	ctx context.Context,
	wsURL string,
	method string,
	params string,
	timeout time.Duration,
) (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("generating request id: %w", err)
	}

	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if len(params) > 0 {
		if !json.Valid([]byte(params)) {
			return "", ErrInvalidParams
		}
		req.Params = []byte(params)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("closing websocket")
		}
	}()

	done := make(chan struct{})
	var resp *models.ResponseObject

	go func() {
		defer close(done)
		for {
			_, message, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}

			var m models.ResponseObject
			if unmarshalErr := json.Unmarshal(message, &m); unmarshalErr != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != id {
				// notifications and other sessions' replies pass through here
				continue
			}

			resp = &m
			return
		}
	}()

	if err := conn.WriteJSON(req); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		_ = conn.Close()
		<-done
		return "", ErrRequestTimeout
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return "", ErrRequestCancelled
	}

	if resp == nil {
		return "", ErrRequestTimeout
	}
	if resp.Error != nil {
		return "", errors.New(resp.Error.Message)
	}

	b, err := json.Marshal(resp.Result)
	if err != nil {
		return "", fmt.Errorf("marshalling result: %w", err)
	}
	return string(b), nil
}

// WaitNotification blocks until the daemon pushes a notification with
// the given method, or timeout. A zero timeout uses the default request
// timeout; a negative timeout waits forever.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, localWSURL(cfg), nil)
	if err != nil {
		return "", fmt.Errorf("connecting: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("closing websocket")
		}
	}()

	done := make(chan struct{})
	var notif *models.RequestObject

	go func() {
		defer close(done)
		for {
			_, message, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}

			var m models.RequestObject
			if unmarshalErr := json.Unmarshal(message, &m); unmarshalErr != nil {
				continue
			}
			// a notification has a method and no ID
			if m.JSONRPC != "2.0" || m.ID != nil || m.Method != method {
				continue
			}

			notif = &m
			return
		}
	}()

	var timerChan <-chan time.Time
	switch {
	case timeout == 0:
		timer := time.NewTimer(config.ApiRequestTimeout)
		defer timer.Stop()
		timerChan = timer.C
	case timeout > 0:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerChan = timer.C
	}
	// a nil channel never receives, so a negative timeout waits forever

	select {
	case <-done:
	case <-timerChan:
		_ = conn.Close()
		<-done
		return "", ErrRequestTimeout
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return "", ErrRequestCancelled
	}

	if notif == nil {
		return "", ErrRequestTimeout
	}

	b, err := json.Marshal(notif.Params)
	if err != nil {
		return "", fmt.Errorf("marshalling params: %w", err)
	}
	return string(b), nil
}
