/*
 * stream-gate is a token-gated streaming gateway for IPTV aggregation.
 * Copyright (C) 2026  The stream-gate authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestGetErrorDetailLevel(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		expectedLevel ErrorDetailLevel
	}{
		{
			name:          "none detail level",
			envValue:      "none",
			expectedLevel: ErrorDetailNone,
		},
		{
			name:          "full detail level",
			envValue:      "full",
			expectedLevel: ErrorDetailFull,
		},
		{
			name:          "simple detail level (default)",
			envValue:      "simple",
			expectedLevel: ErrorDetailSimple,
		},
		{
			name:          "empty env defaults to simple",
			envValue:      "",
			expectedLevel: ErrorDetailSimple,
		},
		{
			name:          "invalid value defaults to simple",
			envValue:      "invalid",
			expectedLevel: ErrorDetailSimple,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ERROR_DETAIL_LEVEL", tt.envValue)
			if got := getErrorDetailLevel(); got != tt.expectedLevel {
				t.Errorf("getErrorDetailLevel() = %v, want %v", got, tt.expectedLevel)
			}
		})
	}
}

func TestErrorWithLocation(t *testing.T) {
	t.Setenv("ERROR_DETAIL_LEVEL", "simple")

	if got := ErrorWithLocation(nil); got != nil {
		t.Errorf("ErrorWithLocation(nil) = %v, want nil", got)
	}

	err := errors.New("boom")
	wrapped := ErrorWithLocation(err)
	if wrapped == nil {
		t.Fatal("ErrorWithLocation() returned nil for non-nil error")
	}
	if !strings.Contains(wrapped.Error(), "boom") {
		t.Errorf("wrapped error %q does not contain original message", wrapped.Error())
	}
	if !strings.Contains(wrapped.Error(), "error_utils_test.go") {
		t.Errorf("wrapped error %q does not contain caller file", wrapped.Error())
	}
}

func TestPrintErrorAndReturnNil(t *testing.T) {
	if got := PrintErrorAndReturn(nil); got != nil {
		t.Errorf("PrintErrorAndReturn(nil) = %v, want nil", got)
	}
}
