package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel, false)

	log.Info().Str("user_id", "u1").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "hello" || entry["user_id"] != "u1" {
		t.Errorf("Unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected a timestamp")
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.WarnLevel, false)

	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
	log.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("Expected warn entry, got %q", buf.String())
	}
}

func TestNew_DevConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.DebugLevel, true)

	log.Debug().Msg("readable")
	if json.Valid(buf.Bytes()) {
		t.Errorf("Expected console output, got JSON %q", buf.String())
	}
	if !strings.Contains(buf.String(), "readable") {
		t.Errorf("Missing message in %q", buf.String())
	}
}
