package parser

import (
	"strings"
	"time"

	"github.com/V4T54L/log-relay/internal/domain"
)

const tokenSeparator = "] "

// Parse turns a raw line into a LogRecord stamped with receivedAt.
//
// Accepted shapes are "[LEVEL] [Category] message", "[LEVEL] message",
// "[Category] message" and a bare message. Anything that does not fit
// falls back to level info, category Default and the whole line as message.
func Parse(line string, receivedAt time.Time) domain.LogRecord {
	record := domain.LogRecord{
		Timestamp: receivedAt,
		Level:     domain.LevelInfo,
		Category:  domain.DefaultCategory,
		Message:   line,
	}

	if !strings.HasPrefix(line, "[") {
		return record
	}
	head, rest, found := strings.Cut(line[1:], tokenSeparator)
	if !found {
		return record
	}

	level, ok := domain.ParseLevel(head)
	if !ok {
		// First token is not a level, treat it as the category.
		record.Category = categoryOrDefault(head)
		record.Message = rest
		return record
	}

	record.Level = level
	record.Message = rest
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			record.Category = categoryOrDefault(rest[1:end])
			record.Message = strings.TrimPrefix(rest[end+1:], " ")
		}
	}
	return record
}

func categoryOrDefault(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.DefaultCategory
	}
	return s
}
