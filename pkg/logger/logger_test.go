package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TMG-TheMoneyGame/AShareData/pkg/config"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	return logEntry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := NewWithWriter(&buf)

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { logger.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { logger.Info("info message") }, "info message", "info"},
		{"warn", func() { logger.Warn("warn message") }, "warn message", "warn"},
		{"error", func() { logger.Error("error message") }, "error message", "error"},
		{"infof", func() { logger.Infof("rows: %d", 42) }, "rows: 42", "info"},
		{"warnf", func() { logger.Warnf("gap for %s", "510050.SH") }, "gap for 510050.SH", "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			logEntry := decodeEntry(t, &buf)
			if logEntry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, logEntry["level"])
			}
			if logEntry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, logEntry["message"])
			}
		})
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := NewWithWriter(&buf)

	logger.WithFields(map[string]interface{}{
		"entity": "000001.SZ",
		"rows":   3,
	}).WithField("table", "adj_factor").Info("batch written")

	logEntry := decodeEntry(t, &buf)
	if logEntry["entity"] != "000001.SZ" {
		t.Errorf("Expected entity 000001.SZ, got %v", logEntry["entity"])
	}
	if logEntry["rows"] != float64(3) {
		t.Errorf("Expected rows 3, got %v", logEntry["rows"])
	}
	if logEntry["table"] != "adj_factor" {
		t.Errorf("Expected table adj_factor, got %v", logEntry["table"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	logger.WithError(errors.New("store unavailable")).Error("run aborted")

	logEntry := decodeEntry(t, &buf)
	if logEntry["error"] != "store unavailable" {
		t.Errorf("Expected error field, got %v", logEntry["error"])
	}
}

func TestForCompositorAndProgress(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := NewWithWriter(&buf).ForCompositor("limit_board", "const_limit")

	logger.Progress(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 1, 4, 7)

	logEntry := decodeEntry(t, &buf)
	if logEntry["compositor"] != "limit_board" || logEntry["table"] != "const_limit" {
		t.Errorf("Expected compositor scope, got %v", logEntry)
	}
	if logEntry["date"] != "2024-03-05" {
		t.Errorf("Expected date 2024-03-05, got %v", logEntry["date"])
	}
	if logEntry["pct"] != float64(25) {
		t.Errorf("Expected pct 25, got %v", logEntry["pct"])
	}
	if logEntry["rows"] != float64(7) {
		t.Errorf("Expected rows 7, got %v", logEntry["rows"])
	}
}

func TestProgressWithoutTotal(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	NewWithWriter(&buf).Progress(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 3, 0, 0)

	logEntry := decodeEntry(t, &buf)
	if _, ok := logEntry["pct"]; ok {
		t.Errorf("Expected no pct field without total, got %v", logEntry)
	}
}

func TestProgressWithoutPeriod(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	NewWithWriter(&buf).WithField("entity", "000001.OF").Progress(time.Time{}, 1, 2, 3)

	logEntry := decodeEntry(t, &buf)
	if _, ok := logEntry["date"]; ok {
		t.Errorf("Expected no date field for a zero period, got %v", logEntry)
	}
	if logEntry["entity"] != "000001.OF" {
		t.Errorf("Expected entity field, got %v", logEntry)
	}
}

func TestLogFormats(t *testing.T) {
	for _, format := range []string{"json", "console", "pretty"} {
		t.Run(format, func(t *testing.T) {
			oldStdout := os.Stdout
			r, w, _ := os.Pipe()
			os.Stdout = w

			logger := New(&config.Config{Env: "development", LogLevel: "info", LogFormat: format})
			logger.Info("test message")

			w.Close()
			os.Stdout = oldStdout

			var buf bytes.Buffer
			_, _ = io.Copy(&buf, r)

			if !strings.Contains(buf.String(), "test message") {
				t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
			}
		})
	}
}
