package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/V4T54L/log-relay/internal/domain"
)

// Level colors follow Apple's unified logging palette.
var levelColors = map[domain.Level]text.Colors{
	domain.LevelDebug:   {text.FgHiBlack},
	domain.LevelInfo:    {text.Reset},
	domain.LevelNotice:  {text.FgHiCyan},
	domain.LevelWarning: {text.FgHiYellow},
	domain.LevelError:   {text.FgHiRed},
	domain.LevelFault:   {text.FgHiRed, text.Bold},
}

var (
	noticeColors     = text.Colors{text.FgHiCyan}
	screenshotColors = text.Colors{text.FgHiMagenta}
)

// Console echoes records to a terminal, one whole line per write.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

var _ domain.LogObserver = (*Console)(nil)

// NewStdout writes to os.Stdout, colored only when stdout is a terminal.
func NewStdout() *Console {
	return New(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

// New returns a Console writing to out.
func New(out io.Writer, color bool) *Console {
	return &Console{out: out, color: color}
}

// Observe prints the rendered line in its level color.
func (c *Console) Observe(record domain.LogRecord, line string) {
	c.println(Colorize(line, record.Level, c.color))
}

// Notice prints an operator message such as the current log path.
func (c *Console) Notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.color {
		msg = noticeColors.Sprint(msg)
	}
	c.println(msg)
}

// ScreenshotSaved announces a stored frame.
func (c *Console) ScreenshotSaved(saved domain.SavedScreenshot) {
	msg := fmt.Sprintf("[Screenshot #%d] %s (%.1f KB)", saved.Sequence, filepath.Base(saved.Path), float64(saved.Size)/1024)
	if c.color {
		msg = screenshotColors.Sprint(msg)
	}
	c.println(msg)
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Colorize wraps line in the level's color; the escape sequence is reset at the end.
func Colorize(line string, level domain.Level, enabled bool) string {
	if !enabled {
		return line
	}
	colors, ok := levelColors[level]
	if !ok {
		colors = levelColors[domain.LevelInfo]
	}
	return colors.Sprint(line)
}
