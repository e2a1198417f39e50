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

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBackoffLadder(t *testing.T) {
	t.Parallel()

	base := 500 * time.Millisecond
	ceil := 10 * time.Second
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, Backoff(base, ceil, attempt),
			"attempt %d", attempt)
	}
}

func TestBackoffDegenerateInputs(t *testing.T) {
	t.Parallel()

	// zero base falls back to the default rather than a hot loop
	assert.Equal(t, 500*time.Millisecond, Backoff(0, 10*time.Second, 0))
	// cap below base clamps to base
	assert.Equal(t, time.Second, Backoff(time.Second, time.Millisecond, 0))
	// negative attempt behaves like the first
	assert.Equal(t, time.Second, Backoff(time.Second, time.Minute, -3))
	// absurd attempt counts must not overflow into negatives
	assert.Equal(t, 10*time.Second, Backoff(500*time.Millisecond, 10*time.Second, 200))
}

func TestBackoffProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		base := time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "base"))
		ceil := time.Duration(rapid.Int64Range(1, int64(time.Hour)).Draw(t, "cap"))
		attempt := rapid.IntRange(0, 500).Draw(t, "attempt")

		d := Backoff(base, ceil, attempt)

		lo, hi := base, ceil
		if hi < lo {
			hi = lo
		}
		if d < lo || d > hi {
			t.Fatalf("Backoff(%v, %v, %d) = %v, outside [%v, %v]",
				base, ceil, attempt, d, lo, hi)
		}
		if next := Backoff(base, ceil, attempt+1); next < d {
			t.Fatalf("backoff decreased from %v to %v at attempt %d", d, next, attempt)
		}
	})
}
