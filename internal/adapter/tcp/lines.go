package tcp

import (
	"bytes"
	"strings"
)

// lineBuffer reassembles newline-terminated lines from arbitrary read chunks.
type lineBuffer struct {
	buf     []byte
	maxLine int
}

func newLineBuffer(maxLine int) *lineBuffer {
	return &lineBuffer{maxLine: maxLine}
}

// Feed appends data and returns every complete, non-empty line in arrival order.
// A pending segment longer than maxLine is returned as a line of its own.
func (b *lineBuffer) Feed(data []byte) []string {
	b.buf = append(b.buf, data...)

	var lines []string
	start := 0
	for {
		idx := bytes.IndexByte(b.buf[start:], '\n')
		if idx < 0 {
			break
		}
		if line := decodeLine(b.buf[start : start+idx]); line != "" {
			lines = append(lines, line)
		}
		start += idx + 1
	}

	if b.maxLine > 0 && len(b.buf)-start > b.maxLine {
		if line := decodeLine(b.buf[start:]); line != "" {
			lines = append(lines, line)
		}
		start = len(b.buf)
	}

	n := copy(b.buf, b.buf[start:])
	b.buf = b.buf[:n]
	return lines
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (b *lineBuffer) Pending() int {
	return len(b.buf)
}

func decodeLine(segment []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(segment), "\uFFFD"))
}
