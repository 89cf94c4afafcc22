package domain

import (
	"strings"
	"time"
)

// Level is the severity attached to a relayed log line.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelNotice  Level = "notice"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFault   Level = "fault"
)

// DefaultCategory is used when a line carries no category token.
const DefaultCategory = "Default"

// Levels lists every recognized level, lowest severity first.
var Levels = []Level{LevelDebug, LevelInfo, LevelNotice, LevelWarning, LevelError, LevelFault}

// ParseLevel matches s case-insensitively against the known levels.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Levels {
		if l == known {
			return l, true
		}
	}
	return LevelInfo, false
}

// Valid reports whether l is one of the recognized levels.
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// Title renders the level with an initial capital, e.g. "Warning".
func (l Level) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// TimestampLayout is the millisecond-precision layout used in rendered lines.
const TimestampLayout = "2006-01-02 15:04:05.000"

// LogRecord is a single parsed line. Timestamp is the instant the relay received it.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}

// Format renders the record as "YYYY-MM-DD HH:MM:SS.mmm <Service> <Level> [Category] Message".
func (r LogRecord) Format(service string) string {
	var b strings.Builder
	b.Grow(len(TimestampLayout) + len(service) + len(r.Category) + len(r.Message) + 16)
	b.WriteString(r.Timestamp.Format(TimestampLayout))
	b.WriteString(" ")
	b.WriteString(service)
	b.WriteString(" <")
	b.WriteString(r.Level.Title())
	b.WriteString("> [")
	b.WriteString(r.Category)
	b.WriteString("] ")
	b.WriteString(r.Message)
	return b.String()
}
