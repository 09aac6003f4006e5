// Roomkit - Real-Time Collaboration Backend
// Copyright 2026 Driftlabs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftlabs/roomkit

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestInitAndLog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	Info().Str("room", "r1").Msg("session joined")

	out := buf.String()
	if !strings.Contains(out, `"room":"r1"`) {
		t.Errorf("expected room field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"session joined"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestCtxCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	ctx := ContextWithCorrelationID(context.Background(), "abcd1234")
	Ctx(ctx).Info().Msg("dispatch")

	if !strings.Contains(buf.String(), `"correlation_id":"abcd1234"`) {
		t.Errorf("expected correlation_id in output, got %q", buf.String())
	}
}

func TestCorrelationIDFromContextMissing(t *testing.T) {
	if id := CorrelationIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty correlation id, got %q", id)
	}
}

func TestGenerateCorrelationIDLength(t *testing.T) {
	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Errorf("expected 8-char correlation id, got %q (len %d)", id, len(id))
	}
}

func TestSlogAdapterWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	slogger := slog.New(NewSlogHandler())
	slogger.Info("supervisor event", slog.String("service", "room-hub"))

	out := buf.String()
	if !strings.Contains(out, `"service":"room-hub"`) {
		t.Errorf("expected slog attr in zerolog output, got %q", out)
	}
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestSlogAdapterGroups(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(Config{Level: "info", Format: "json"})

	slogger := slog.New(NewSlogHandler()).WithGroup("suture")
	slogger.Warn("service failed", slog.String("name", "bridge"))

	if !strings.Contains(buf.String(), `"suture.name":"bridge"`) {
		t.Errorf("expected grouped attr, got %q", buf.String())
	}
}
