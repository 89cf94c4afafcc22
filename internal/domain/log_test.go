package domain

import (
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	for _, l := range Levels {
		got, ok := ParseLevel(string(l))
		if !ok || got != l {
			t.Errorf("ParseLevel(%q) = %q, %v", l, got, ok)
		}
	}

	if got, ok := ParseLevel("WARNING"); !ok || got != LevelWarning {
		t.Errorf("expected case-insensitive match, got %q, %v", got, ok)
	}
	if got, ok := ParseLevel("verbose"); ok || got != LevelInfo {
		t.Errorf("unknown level should fall back to info, got %q, %v", got, ok)
	}
}

func TestLevelTitle(t *testing.T) {
	tests := map[Level]string{
		LevelDebug:   "Debug",
		LevelInfo:    "Info",
		LevelNotice:  "Notice",
		LevelWarning: "Warning",
		LevelError:   "Error",
		LevelFault:   "Fault",
	}
	for l, want := range tests {
		if got := l.Title(); got != want {
			t.Errorf("%q.Title() = %q, want %q", l, got, want)
		}
	}
}

func TestLogRecordFormat(t *testing.T) {
	record := LogRecord{
		Timestamp: time.Date(2026, 2, 5, 19, 53, 0, 7*int(time.Millisecond), time.UTC),
		Level:     LevelInfo,
		Category:  DefaultCategory,
		Message:   "Hello from test client!",
	}

	want := "2026-02-05 19:53:00.007 V4MinimalApp <Info> [Default] Hello from test client!"
	if got := record.Format("V4MinimalApp"); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}
