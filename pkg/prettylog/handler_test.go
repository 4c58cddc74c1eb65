package prettylog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerRendersMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandlerWithOutput(slog.LevelDebug, &buf))

	logger.Info("request sent", "action", "ping")

	out := buf.String()
	if !strings.Contains(out, "request sent") {
		t.Fatalf("message missing from output: %q", out)
	}
	if !strings.Contains(out, `"action":"ping"`) {
		t.Fatalf("attribute missing from output: %q", out)
	}
}

func TestHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandlerWithOutput(slog.LevelInfo, &buf))

	logger.Debug("invisible")
	if buf.Len() != 0 {
		t.Fatalf("debug record leaked: %q", buf.String())
	}
}

func TestHandlerCarriesWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandlerWithOutput(slog.LevelDebug, &buf)).With("flow", "login")

	logger.Info("setup done")
	if !strings.Contains(buf.String(), `"flow":"login"`) {
		t.Fatalf("inherited attribute missing: %q", buf.String())
	}
}
