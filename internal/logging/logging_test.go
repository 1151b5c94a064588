package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// captureLogOutput reinitializes the global logger to write into a buffer
// and restores the defaults afterwards.
func captureLogOutput(t *testing.T, level Level, format Format, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	InitLogger(level, format)
	defer func() {
		SetOutput(nil)
		InitLogger(LevelInfo, FormatText)
	}()
	f()
	return buf.String()
}

func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = (%v, %v), want (FormatJSON, nil)", f, err)
	}
	if f, err := ParseFormat("Text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(Text) = (%v, %v), want (FormatText, nil)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) error = nil, want error")
	}
}

func TestInitLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", LevelDebug, true, true, true},
		{"info", LevelInfo, false, true, true},
		{"warn", LevelWarn, false, false, true},
		{"error", LevelError, false, false, false},
		{"invalid falls back to info", Level(999), false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLogOutput(t, tt.level, FormatJSON, func() {
				Debug("debug message")
				Info("info message")
				Warn("warn message")
			})
			if got := strings.Contains(out, "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info message"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "warn message"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	out := captureLogOutput(t, LevelInfo, FormatJSON, func() {
		Info("tick")
	})
	m := decodeLine(t, out)
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("time attribute missing in %v", m)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestTextFormat(t *testing.T) {
	out := captureLogOutput(t, LevelInfo, FormatText, func() {
		Info("hello", "key", "value")
	})
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "key=value") {
		t.Errorf("text output = %q", out)
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRunID(ctx); got != "" {
		t.Errorf("GetRunID(empty) = %q, want empty", got)
	}

	ctx = WithRunID(ctx, "run-123")
	if got := GetRunID(ctx); got != "run-123" {
		t.Errorf("GetRunID() = %q, want %q", got, "run-123")
	}

	out := captureLogOutput(t, LevelDebug, FormatJSON, func() {
		InfoContext(ctx, "with run")
	})
	m := decodeLine(t, out)
	if m["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want %q", m["run_id"], "run-123")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRunID(context.Background(), "r")
	out := captureLogOutput(t, LevelDebug, FormatJSON, func() {
		DebugContext(ctx, "d")
		WarnContext(ctx, "w")
		ErrorContext(ctx, "e")
	})
	for _, want := range []string{`"msg":"d"`, `"msg":"w"`, `"msg":"e"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s", want)
		}
	}
}

func TestPairEvents(t *testing.T) {
	ctx := WithRunID(context.Background(), "r1")

	tests := []struct {
		name    string
		log     func()
		msg     string
		level   string
		wantKey string
		wantVal any
	}{
		{
			name:    "started",
			log:     func() { PairStarted(ctx, "English-Cebuano") },
			msg:     "pair_started",
			level:   "DEBUG",
			wantKey: "pair",
			wantVal: "English-Cebuano",
		},
		{
			name:    "skipped",
			log:     func() { PairSkipped(ctx, "English-Ilocano", []string{"Ilocano"}) },
			msg:     "pair_skipped",
			level:   "WARN",
			wantKey: "missing",
			wantVal: "Ilocano",
		},
		{
			name:    "failed",
			log:     func() { PairFailed(ctx, "English-Tagalog", errors.New("boom")) },
			msg:     "pair_failed",
			level:   "ERROR",
			wantKey: "error",
			wantVal: "boom",
		},
		{
			name:    "written",
			log:     func() { PairWritten(ctx, "English-Cebuano", "out.tsv", 42, time.Second) },
			msg:     "pair_written",
			level:   "INFO",
			wantKey: "rows",
			wantVal: float64(42),
		},
		{
			name:    "language loaded",
			log:     func() { LanguageLoaded(ctx, "English", "Bible_English.tsv", 7, time.Millisecond, "format", "tsv") },
			msg:     "language_loaded",
			level:   "INFO",
			wantKey: "format",
			wantVal: "tsv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureLogOutput(t, LevelDebug, FormatJSON, tt.log)
			m := decodeLine(t, out)
			if m["msg"] != tt.msg {
				t.Errorf("msg = %v, want %q", m["msg"], tt.msg)
			}
			if m["level"] != tt.level {
				t.Errorf("level = %v, want %q", m["level"], tt.level)
			}
			if m[tt.wantKey] != tt.wantVal {
				t.Errorf("%s = %v, want %v", tt.wantKey, m[tt.wantKey], tt.wantVal)
			}
			if m["run_id"] != "r1" {
				t.Errorf("run_id = %v, want r1", m["run_id"])
			}
		})
	}
}

func TestGetLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}
}
