package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_Log(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "test message",
			fields:  Fields{"key": "value"},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "debug message",
			want:    false, // won't log (below INFO)
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "error occurred",
			err:     errors.New("test error"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(LevelInfo, &buf)

			logger.log(tt.level, tt.message, tt.fields, tt.err)

			if logged := buf.Len() > 0; logged != tt.want {
				t.Fatalf("log() logged = %v, want %v", logged, tt.want)
			}
			if !tt.want {
				return
			}

			entries := decodeLines(t, &buf)
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry["message"] != tt.message {
				t.Errorf("message = %v, want %q", entry["message"], tt.message)
			}
			if entry["timestamp"] == nil {
				t.Error("expected timestamp field")
			}
			for k, v := range tt.fields {
				if entry[k] != v {
					t.Errorf("field %s = %v, want %v", k, entry[k], v)
				}
			}
			if tt.err != nil && entry["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", entry["error"], tt.err.Error())
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf).With(Fields{"stage": "augment"})

	logger.Debug("attempt", Fields{"attempt": 2})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["stage"] != "augment" {
		t.Errorf("stage = %v, want augment", entries[0]["stage"])
	}
	if entries[0]["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entries[0]["attempt"])
	}
	if entries[0]["level"] != "debug" {
		t.Errorf("level = %v, want debug", entries[0]["level"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSetDefault(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(New(LevelWarn, &buf))

	Info("hidden", nil)
	WarnErr("shown", Fields{"outcome": "exhausted"}, errors.New("invalid patches"))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected only the warning to be logged, got %d entries", len(entries))
	}
	if entries[0]["outcome"] != "exhausted" || entries[0]["error"] != "invalid patches" {
		t.Errorf("unexpected entry: %v", entries[0])
	}
}
