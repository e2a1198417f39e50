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

// Package api serves the JSON-RPC 2.0 API over WebSocket and HTTP POST.
// It is a thin shell: parsing, validation and transport live here, all
// behavior lives behind the controller interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"

	"github.com/kioskworks/receiptd/pkg/api/methods"
	"github.com/kioskworks/receiptd/pkg/api/middleware"
	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/service/state"
)

// JSON-RPC 2.0 protocol errors.
var (
	JSONRPCErrorParseError     = models.ErrorObject{Code: -32700, Message: "Parse error"}
	JSONRPCErrorInvalidRequest = models.ErrorObject{Code: -32600, Message: "Invalid Request"}
	JSONRPCErrorMethodNotFound = models.ErrorObject{Code: -32601, Message: "Method not found"}
	JSONRPCErrorInvalidParams  = models.ErrorObject{Code: -32602, Message: "Invalid params"}
	JSONRPCErrorServerError    = models.ErrorObject{Code: -32000, Message: "Server error"}
)

// maxRequestBody caps POSTed request objects; a print payload is hex
// text, so even a full receipt stays well under this.
const maxRequestBody = 1 << 20

var methodMap = map[string]func(requests.RequestEnv) (any, error){
	// devices
	models.MethodDevices:       methods.HandleDevices,
	models.MethodDevicesSelect: methods.HandleDevicesSelect,
	// connection
	models.MethodConnect:    methods.HandleConnect,
	models.MethodDisconnect: methods.HandleDisconnect,
	models.MethodReset:      methods.HandleReset,
	// status
	models.MethodStatus:       methods.HandleStatus,
	models.MethodStatusLast:   methods.HandleStatusLast,
	models.MethodMonitorStart: methods.HandleMonitorStart,
	models.MethodMonitorStop:  methods.HandleMonitorStop,
	models.MethodState:        methods.HandleState,
	// printing
	models.MethodPrint:         methods.HandlePrint,
	models.MethodPrintValidate: methods.HandlePrintValidate,
	models.MethodErrorsClear:   methods.HandleErrorsClear,
	// settings
	models.MethodSettings:       methods.HandleSettings,
	models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
	models.MethodSettingsReload: methods.HandleSettingsReload,
	models.MethodVersion:        methods.HandleVersion,
}

func maybeUUID(req models.RequestObject) uuid.UUID {
	if req.ID == nil {
		return uuid.Nil
	}
	return *req.ID
}

// methodError translates a handler error into the JSON-RPC error object
// sent to the client. Parameter problems keep their field messages;
// everything else is surfaced verbatim as a server error.
func methodError(err error) models.ErrorObject {
	var ve *validation.Error
	switch {
	case errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams),
		errors.As(err, &ve):
		return models.ErrorObject{
			Code:    JSONRPCErrorInvalidParams.Code,
			Message: err.Error(),
		}
	default:
		return models.ErrorObject{
			Code:    JSONRPCErrorServerError.Code,
			Message: err.Error(),
		}
	}
}

func handleRequest(env requests.RequestEnv, req models.RequestObject) (any, *models.ErrorObject) {
	log.Debug().Str("method", req.Method).Bool("local", env.IsLocal).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, &JSONRPCErrorMethodNotFound
	}

	env.ID = *req.ID
	env.Params = req.Params

	result, err := fn(env)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("method returned error")
		errObj := methodError(err)
		return nil, &errObj
	}
	return result, nil
}

func sendResponse(session *melody.Session, id uuid.UUID, result any) error {
	resp := models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling response: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

func sendError(session *melody.Session, id uuid.UUID, errObj models.ErrorObject) error {
	log.Debug().Int("code", errObj.Code).Str("message", errObj.Message).Msg("sending error")

	resp := models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling error response: %w", err)
	}
	if err := session.Write(data); err != nil {
		return fmt.Errorf("writing error response: %w", err)
	}
	return nil
}

// broadcastNotifications pushes every state-change notification to all
// connected WebSocket sessions as JSON-RPC notification objects.
func broadcastNotifications(
	st *state.State,
	session *melody.Melody,
	notifications <-chan models.Notification,
) {
	for {
		select {
		case <-st.GetContext().Done():
			log.Debug().Msg("notification broadcaster: stopping")
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("notification broadcaster: channel closed")
				return
			}

			params, err := json.Marshal(notif.Params)
			if err != nil {
				log.Error().Err(err).Str("method", notif.Method).
					Msg("marshalling notification params")
				continue
			}
			req := models.RequestObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  params,
			}
			data, err := json.Marshal(req)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := session.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

func handleWSMessage(
	cfg *config.Instance,
	st *state.State,
	ctrl requests.Controller,
) func(session *melody.Session, msg []byte) {
	return func(session *melody.Session, msg []byte) {
		// bare ping keeps client heartbeats off the JSON path
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		if !json.Valid(msg) {
			if err := sendError(session, uuid.Nil, JSONRPCErrorParseError); err != nil {
				log.Error().Err(err).Msg("sending parse error")
			}
			return
		}

		var req models.RequestObject
		if err := json.Unmarshal(msg, &req); err != nil || req.Method == "" {
			if err := sendError(session, maybeUUID(req), JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("sending invalid request error")
			}
			return
		}

		if req.JSONRPC != "2.0" {
			log.Error().Str("jsonrpc", req.JSONRPC).Msg("unsupported payload version")
			if err := sendError(session, maybeUUID(req), JSONRPCErrorInvalidRequest); err != nil {
				log.Error().Err(err).Msg("sending invalid request error")
			}
			return
		}

		if req.ID == nil {
			// a request without an ID is a notification; nothing expects
			// a reply, and this server does not accept client notifications
			log.Info().Str("method", req.Method).Msg("received notification, ignoring")
			return
		}

		env := requests.RequestEnv{
			Controller: ctrl,
			Config:     cfg,
			State:      st,
			IsLocal:    middleware.IsLoopbackAddr(session.Request.RemoteAddr),
		}
		result, errObj := handleRequest(env, req)
		if errObj != nil {
			if err := sendError(session, *req.ID, *errObj); err != nil {
				log.Error().Err(err).Msg("sending error response")
			}
			return
		}
		if err := sendResponse(session, *req.ID, result); err != nil {
			log.Error().Err(err).Msg("sending response")
		}
	}
}

// handlePostRequest serves one-shot JSON-RPC over plain HTTP POST, for
// callers that do not want to hold a WebSocket open.
func handlePostRequest(
	cfg *config.Instance,
	st *state.State,
	ctrl requests.Controller,
) http.HandlerFunc {
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Error().Err(err).Msg("writing POST response")
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}

		var req models.RequestObject
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, models.ResponseErrorObject{
				JSONRPC: "2.0",
				ID:      uuid.Nil,
				Error:   &JSONRPCErrorParseError,
			})
			return
		}
		if req.JSONRPC != "2.0" || req.Method == "" || req.ID == nil {
			writeJSON(w, models.ResponseErrorObject{
				JSONRPC: "2.0",
				ID:      maybeUUID(req),
				Error:   &JSONRPCErrorInvalidRequest,
			})
			return
		}

		env := requests.RequestEnv{
			Controller: ctrl,
			Config:     cfg,
			State:      st,
			IsLocal:    middleware.IsLoopbackAddr(r.RemoteAddr),
		}
		result, errObj := handleRequest(env, req)
		if errObj != nil {
			writeJSON(w, models.ResponseErrorObject{
				JSONRPC: "2.0",
				ID:      *req.ID,
				Error:   errObj,
			})
			return
		}
		writeJSON(w, models.ResponseObject{
			JSONRPC: "2.0",
			ID:      *req.ID,
			Result:  result,
		})
	}
}

// Start runs the API server until the service context is cancelled. It
// is meant to be called in its own goroutine.
func Start(
	cfg *config.Instance,
	st *state.State,
	ctrl requests.Controller,
	notifications <-chan models.Notification,
) {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(chimiddleware.Timeout(config.ApiRequestTimeout))

	allowedOrigins := cfg.AllowedOrigins()
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	ipFilter := middleware.NewIPFilter(cfg.AllowedIPs())
	r.Use(middleware.HTTPIPFilterMiddleware(ipFilter))

	rateLimiter := middleware.NewIPRateLimiter()
	rateLimiter.StartCleanup(st.GetContext())
	r.Use(middleware.HTTPRateLimitMiddleware(rateLimiter))

	session := melody.New()
	session.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }
	session.HandleMessage(middleware.WebSocketRateLimitHandler(
		rateLimiter, handleWSMessage(cfg, st, ctrl)))

	go broadcastNotifications(st, session, notifications)

	wsHandler := func(w http.ResponseWriter, r *http.Request) {
		if err := session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	}
	r.Get("/api", wsHandler)
	r.Get("/api/v0", wsHandler)
	r.Post("/api/v0", handlePostRequest(cfg, st, ctrl))
	r.Get("/api/v0/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := models.VersionResponse{Version: config.AppVersion, Platform: runtime.GOOS}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("writing version response")
		}
	})

	srv := &http.Server{
		Addr:              cfg.APIListen(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-st.GetContext().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := session.CloseWithMsg(melody.FormatCloseMessage(1001, "server shutting down")); err != nil {
			log.Debug().Err(err).Msg("closing websocket sessions")
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutting down API server")
		}
	}()

	log.Info().Str("listen", srv.Addr).Msg("API server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("API server failed")
	}
}
