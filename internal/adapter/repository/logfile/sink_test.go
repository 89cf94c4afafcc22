package logfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/domain"
)

// stepClock advances one second on every call so rotated names are predictable.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func setupTestSink(t *testing.T, rotate time.Duration, compress bool) (*Sink, string, *metrics.RelayMetrics) {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "app_logs.txt")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewRelayMetrics()
	clock := &stepClock{t: time.Date(2026, 2, 5, 19, 53, 0, 0, time.Local)}

	sink, err := NewSink(Options{
		Path:            base,
		ServiceName:     "TestApp",
		RotateInterval:  rotate,
		CompressRotated: compress,
		Now:             clock.Now,
	}, logger, m)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	return sink, base, m
}

func record(msg string) domain.LogRecord {
	return domain.LogRecord{
		Timestamp: time.Now(),
		Level:     domain.LevelInfo,
		Category:  "Test",
		Message:   msg,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestSink_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink, err := NewSink(Options{}, logger, metrics.NewRelayMetrics())
	require.NoError(t, err)

	assert.False(t, sink.Enabled())
	assert.NoError(t, sink.Write(context.Background(), record("ignored")))
	assert.NoError(t, sink.Rotate(context.Background()))
	assert.Equal(t, "", sink.CurrentPath())
	assert.NoError(t, sink.Close())
}

func TestSink_NoRotationAppends(t *testing.T) {
	sink, base, _ := setupTestSink(t, 0, false)
	assert.Equal(t, base, sink.CurrentPath())
	assert.False(t, sink.RotationEnabled())

	require.NoError(t, sink.Write(context.Background(), record("first")))
	require.NoError(t, sink.Rotate(context.Background())) // no-op
	assert.Equal(t, base, sink.CurrentPath())
	require.NoError(t, sink.Close())

	// Reopening appends to the same fixed file.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	again, err := NewSink(Options{Path: base, ServiceName: "TestApp"}, logger, metrics.NewRelayMetrics())
	require.NoError(t, err)
	require.NoError(t, again.Write(context.Background(), record("second")))
	require.NoError(t, again.Close())

	lines := readLines(t, base)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "TestApp <Info> [Test] first"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "TestApp <Info> [Test] second"), lines[1])

	info, err := os.Lstat(base)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink, "fixed file must not be a symlink")
}

func TestSink_RotationAtomicity(t *testing.T) {
	sink, base, m := setupTestSink(t, 15*time.Minute, false)
	ctx := context.Background()

	first := sink.CurrentPath()
	assert.NotEqual(t, base, first)
	assert.Regexp(t, regexp.MustCompile(`app_logs_\d{8}_\d{6}\.txt$`), first)

	const n, mLines = 7, 5
	for i := 0; i < n; i++ {
		require.NoError(t, sink.Write(ctx, record(fmt.Sprintf("before-%d", i))))
	}
	require.NoError(t, sink.Rotate(ctx))
	second := sink.CurrentPath()
	require.NotEqual(t, first, second)

	for i := 0; i < mLines; i++ {
		require.NoError(t, sink.Write(ctx, record(fmt.Sprintf("after-%d", i))))
	}
	require.NoError(t, sink.Close())

	firstLines := readLines(t, first)
	secondLines := readLines(t, second)
	assert.Len(t, firstLines, n)
	assert.Len(t, secondLines, mLines)

	seen := map[string]bool{}
	for _, l := range append(firstLines, secondLines...) {
		assert.False(t, seen[l], "duplicated line %q", l)
		seen[l] = true
	}

	resolved, err := filepath.EvalSymlinks(base)
	require.NoError(t, err)
	wantResolved, err := filepath.EvalSymlinks(second)
	require.NoError(t, err)
	assert.Equal(t, wantResolved, resolved, "pointer should resolve to the newest file")

	var dtoCount float64
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "log_relay_logfile_rotations_total" {
			dtoCount = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), dtoCount)
}

func TestSink_RotationNameCollision(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app.log")
	fixed := time.Date(2026, 2, 5, 19, 53, 0, 0, time.Local)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink, err := NewSink(Options{
		Path:           base,
		RotateInterval: time.Minute,
		Now:            func() time.Time { return fixed },
	}, logger, metrics.NewRelayMetrics())
	require.NoError(t, err)
	defer sink.Close()

	first := sink.CurrentPath()
	require.NoError(t, sink.Rotate(context.Background()))
	second := sink.CurrentPath()

	assert.Equal(t, filepath.Join(dir, "app_20260205_195300.log"), first)
	assert.Equal(t, filepath.Join(dir, "app_20260205_195300-1.log"), second)
}

func TestSink_ConcurrentWritesDuringRotation(t *testing.T) {
	sink, base, _ := setupTestSink(t, time.Minute, false)
	ctx := context.Background()

	const writers, perWriter = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := fmt.Sprintf("writer-%d-line-%d-%s", id, i, strings.Repeat("x", 64))
				if err := sink.Write(ctx, record(msg)); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
			}
		}(w)
	}

	stop := make(chan struct{})
	rotated := make(chan int)
	go func() {
		count := 0
		for {
			select {
			case <-stop:
				rotated <- count
				return
			default:
				if err := sink.Rotate(ctx); err != nil {
					t.Errorf("rotate failed: %v", err)
				}
				count++
				time.Sleep(time.Millisecond)
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-rotated
	require.NoError(t, sink.Close())

	files, err := filepath.Glob(filepath.Join(filepath.Dir(base), "app_logs_*.txt"))
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} TestApp <Info> \[Test\] writer-\d+-line-\d+-x{64}$`)
	total := 0
	for _, f := range files {
		for _, line := range readLines(t, f) {
			assert.Regexp(t, pattern, line)
			total++
		}
	}
	assert.Equal(t, writers*perWriter, total)
}

func TestSink_PointerFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "logs")
	// A non-empty directory at the pointer path cannot be replaced by a symlink.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "keep"), 0755))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewRelayMetrics()
	sink, err := NewSink(Options{Path: base, RotateInterval: time.Minute}, logger, m)
	require.NoError(t, err, "startup must survive a pointer failure")
	defer sink.Close()

	require.NoError(t, sink.Write(context.Background(), record("still written")))
	require.NoError(t, sink.Rotate(context.Background()))
	require.NoError(t, sink.Write(context.Background(), record("after rotate")))

	assert.Len(t, readLines(t, sink.CurrentPath()), 1)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var failures float64
	for _, f := range families {
		if f.GetName() == "log_relay_logfile_pointer_failures_total" {
			failures = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), failures)
}

func TestSink_CompressRotated(t *testing.T) {
	sink, _, _ := setupTestSink(t, time.Minute, true)
	ctx := context.Background()

	first := sink.CurrentPath()
	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Write(ctx, record(fmt.Sprintf("line-%d", i))))
	}
	require.NoError(t, sink.Rotate(ctx))
	require.NoError(t, sink.Close()) // waits for compression

	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err), "plaintext should be removed after compression")

	f, err := os.Open(first + compressedExt)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	data, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "line-2")
}

func TestSink_WriteAfterClose(t *testing.T) {
	sink, _, _ := setupTestSink(t, 0, false)
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Write(context.Background(), record("late")), ErrClosed)
}

func TestSink_OnRotate(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &stepClock{t: time.Date(2026, 2, 5, 19, 53, 0, 0, time.Local)}

	var got [][2]string
	sink, err := NewSink(Options{
		Path:           filepath.Join(dir, "app.log"),
		RotateInterval: time.Minute,
		Now:            clock.Now,
		OnRotate:       func(from, to string) { got = append(got, [2]string{from, to}) },
	}, logger, metrics.NewRelayMetrics())
	require.NoError(t, err)
	defer sink.Close()

	first := sink.CurrentPath()
	require.NoError(t, sink.Rotate(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, [2]string{first, sink.CurrentPath()}, got[0])
}

func TestSink_CloseWaitsForRacingCompressions(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		mu      sync.Mutex
		rotated []string
	)
	sink, err := NewSink(Options{
		Path:            filepath.Join(dir, "app.log"),
		RotateInterval:  time.Minute,
		CompressRotated: true,
		OnRotate: func(from, _ string) {
			mu.Lock()
			rotated = append(rotated, from)
			mu.Unlock()
		},
	}, logger, metrics.NewRelayMetrics())
	require.NoError(t, err)
	require.NoError(t, sink.Rotate(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if err := sink.Rotate(context.Background()); err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, sink.Close())
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, rotated)
	for _, path := range rotated {
		_, err := os.Stat(path + compressedExt)
		assert.NoError(t, err, "rotation of %s finished before Close but was not compressed", path)
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), "plaintext %s left behind", path)
	}
}
