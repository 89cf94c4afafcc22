package parser

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/log-relay/internal/domain"
)

func TestParse(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 500*int(time.Millisecond), time.UTC)

	tests := []struct {
		name         string
		line         string
		wantLevel    domain.Level
		wantCategory string
		wantMessage  string
	}{
		{
			name:         "Level and category",
			line:         "[ERROR] [GeminiService] API error: 429 Too Many Requests",
			wantLevel:    domain.LevelError,
			wantCategory: "GeminiService",
			wantMessage:  "API error: 429 Too Many Requests",
		},
		{
			name:         "Bare message",
			line:         "Hello from test client!",
			wantLevel:    domain.LevelInfo,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "Hello from test client!",
		},
		{
			name:         "Level only",
			line:         "[warning] disk almost full",
			wantLevel:    domain.LevelWarning,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "disk almost full",
		},
		{
			name:         "Mixed case level",
			line:         "[Fault] [Camera] session died",
			wantLevel:    domain.LevelFault,
			wantCategory: "Camera",
			wantMessage:  "session died",
		},
		{
			name:         "Unknown token becomes category",
			line:         "[CameraManager] Frame captured: 1920x1080",
			wantLevel:    domain.LevelInfo,
			wantCategory: "CameraManager",
			wantMessage:  "Frame captured: 1920x1080",
		},
		{
			name:         "Category without message",
			line:         "[DEBUG] [App]",
			wantLevel:    domain.LevelDebug,
			wantCategory: "App",
			wantMessage:  "",
		},
		{
			name:         "Category glued to message",
			line:         "[NOTICE] [App]started",
			wantLevel:    domain.LevelNotice,
			wantCategory: "App",
			wantMessage:  "started",
		},
		{
			name:         "Unclosed category bracket",
			line:         "[INFO] [App oops",
			wantLevel:    domain.LevelInfo,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "[App oops",
		},
		{
			name:         "Unmatched opening bracket",
			line:         "[ERROR no close",
			wantLevel:    domain.LevelInfo,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "[ERROR no close",
		},
		{
			name:         "Bracket without trailing space",
			line:         "[ERROR]tight",
			wantLevel:    domain.LevelInfo,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "[ERROR]tight",
		},
		{
			name:         "Empty first token",
			line:         "[] message",
			wantLevel:    domain.LevelInfo,
			wantCategory: domain.DefaultCategory,
			wantMessage:  "message",
		},
		{
			name:         "Later separators stay in the message",
			line:         "[INFO] [Net] got [x] and [y] back",
			wantLevel:    domain.LevelInfo,
			wantCategory: "Net",
			wantMessage:  "got [x] and [y] back",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Parse(tt.line, now)

			if record.Level != tt.wantLevel {
				t.Errorf("level: got %q, want %q", record.Level, tt.wantLevel)
			}
			if record.Category != tt.wantCategory {
				t.Errorf("category: got %q, want %q", record.Category, tt.wantCategory)
			}
			if record.Message != tt.wantMessage {
				t.Errorf("message: got %q, want %q", record.Message, tt.wantMessage)
			}
			if !record.Timestamp.Equal(now) {
				t.Errorf("timestamp: got %v, want %v", record.Timestamp, now)
			}
		})
	}
}

func TestParse_Render(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 500*int(time.Millisecond), time.Local)
	record := Parse("[ERROR] [GeminiService] API error: 429 Too Many Requests", now)

	got := record.Format("V4MinimalApp")
	want := "2024-01-01 12:00:00.500 V4MinimalApp <Error> [GeminiService] API error: 429 Too Many Requests"
	if got != want {
		t.Errorf("rendered line mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestParse_AlwaysYieldsValidRecord(t *testing.T) {
	alphabet := []string{"[", "]", " ", "] ", "ERROR", "info", "x", "Cat", "\t", "é", "[WARNING] "}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		var b strings.Builder
		n := rng.Intn(12)
		for j := 0; j < n; j++ {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		line := b.String()

		record := Parse(line, time.Now())
		if !record.Level.Valid() {
			t.Fatalf("line %q produced invalid level %q", line, record.Level)
		}
		if record.Category == "" {
			t.Fatalf("line %q produced empty category", line)
		}
	}
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{
		"[ERROR] [GeminiService] API error: 429 Too Many Requests",
		"Hello from test client!",
		"[] ] [",
		"[DEBUG] [",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, line string) {
		record := Parse(line, time.Now())
		if !record.Level.Valid() {
			t.Fatalf("invalid level %q for %q", record.Level, line)
		}
		if record.Category == "" {
			t.Fatalf("empty category for %q", line)
		}
	})
}
