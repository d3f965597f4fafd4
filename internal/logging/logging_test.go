package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_DefaultLevel(t *testing.T) {
	logger := New("", "text")
	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected debug to be disabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_JSONCarriesService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Info("scored", "tier", "A+")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["service"] != ServiceName {
		t.Errorf("Expected service=%s, got %v", ServiceName, rec["service"])
	}
	if rec["tier"] != "A+" {
		t.Errorf("Expected tier attribute, got %v", rec["tier"])
	}
}

func TestNewWithWriter_ErrorLevelSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "error", "text")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected no output at error level, got %q", buf.String())
	}
}

func TestWithRequestID_And_RequestID(t *testing.T) {
	ctx := context.Background()

	if id := RequestID(ctx); id != "" {
		t.Errorf("Expected empty request ID, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("Expected req-123, got %q", id)
	}
}

func TestWithLogger_And_FromContext(t *testing.T) {
	ctx := context.Background()

	if FromContext(ctx) == nil {
		t.Fatal("Expected default logger")
	}

	custom := New("debug", "json")
	ctx = WithLogger(ctx, custom)

	if FromContext(ctx) != custom {
		t.Error("Expected custom logger from context")
	}
}

func TestL_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewWithWriter(&buf, "info", "text"))
	ctx = WithRequestID(ctx, "req-456")

	L(ctx).Info("hello")

	if !strings.Contains(buf.String(), "request_id=req-456") {
		t.Errorf("Expected request_id in output, got %q", buf.String())
	}
}

func TestAccount_ShortensAddress(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewWithWriter(&buf, "info", "text"))
	addr := strings.Repeat("A", 52) + "BCDEFG"

	Account(ctx, addr).Info("analyzing")

	if !strings.Contains(buf.String(), "account=AAAAAA...BCDEFG") {
		t.Errorf("Expected shortened account, got %q", buf.String())
	}
}

func TestShortAddress(t *testing.T) {
	if got := ShortAddress("SHORT"); got != "SHORT" {
		t.Errorf("Expected short input unchanged, got %q", got)
	}
	if got := ShortAddress("ABCDEFGHIJKLMNOP"); got != "ABCDEF...KLMNOP" {
		t.Errorf("Unexpected abbreviation %q", got)
	}
}
