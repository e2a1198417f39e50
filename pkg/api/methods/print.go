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

package methods

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/api/models/requests"
	"github.com/kioskworks/receiptd/pkg/api/validation"
	"github.com/kioskworks/receiptd/pkg/printers/escpos"
)

// HandlePrint decodes the hex payload, optionally frames it with an
// initialize prefix and a feed-and-cut suffix, and hands it to the
// engine. The engine revalidates printer readiness before any byte is
// written, so a stale snapshot cannot smuggle a job onto a printer that
// just ran out of paper.
func HandlePrint(env requests.RequestEnv) (any, error) {
	var params models.PrintParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	data, err := hex.DecodeString(strings.ReplaceAll(params.Data, " ", ""))
	if err != nil {
		return nil, validation.ErrInvalidParams
	}

	payload := make([]byte, 0, len(escpos.Init)+len(data)+len(escpos.FeedAndCut))
	if params.Init {
		payload = append(payload, escpos.Init...)
	}
	payload = append(payload, data...)
	if params.Cut {
		payload = append(payload, escpos.FeedAndCut...)
	}

	if err := env.Controller.Print(env.State.GetContext(), payload); err != nil {
		return nil, fmt.Errorf("printing: %w", err)
	}
	return printResult(env), nil
}

// HandlePrintValidate runs the pre-print readiness probe without sending
// a payload, so callers can gate their own critical sections on it.
func HandlePrintValidate(env requests.RequestEnv) (any, error) {
	tag := ""
	if len(env.Params) > 0 {
		var params models.ValidateParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, validation.ErrInvalidParams
		}
		tag = params.Tag
	}
	ready, err := env.Controller.ValidateBeforeCriticalPoint(env.State.GetContext(), tag)
	if err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}
	return models.ValidateResponse{Ready: ready}, nil
}

// HandleErrorsClear acknowledges the current error and returns the print
// state machine to idle.
func HandleErrorsClear(env requests.RequestEnv) (any, error) {
	if err := env.Controller.ClearError(); err != nil {
		return nil, fmt.Errorf("clearing error: %w", err)
	}
	return printResult(env), nil
}

func printResult(env requests.RequestEnv) models.PrintResponse {
	ps, msg := env.State.PrintState()
	return models.PrintResponse{
		State:   string(ps),
		Message: msg,
	}
}
