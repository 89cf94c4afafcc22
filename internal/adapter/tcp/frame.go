package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strings"
	"time"
)

const (
	// frameHeaderSize is the width of each big-endian length prefix.
	frameHeaderSize = 8
	readGrowStep    = 64 * 1024
)

var (
	// ErrStopped is returned when a read is abandoned because the server is stopping.
	ErrStopped = errors.New("connection stopped")
	// ErrFrameTooLarge is returned when a declared length exceeds the configured limit.
	ErrFrameTooLarge = errors.New("frame length exceeds limit")
)

// DeadlineReader is the subset of net.Conn the frame reader needs.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// FrameLimits bounds the lengths a peer may declare. A zero field disables that check.
type FrameLimits struct {
	MaxTimestampBytes uint64
	MaxPayloadBytes   uint64
}

// ReadExact reads exactly n bytes from r. Each read is bounded by poll; a deadline
// timeout only re-checks stop and resumes. It returns io.EOF if the peer closed before
// sending anything and io.ErrUnexpectedEOF if it closed part way through.
// The buffer grows as data arrives, at most readGrowStep bytes ahead of what was read.
func ReadExact(r DeadlineReader, n uint64, poll time.Duration, stop <-chan struct{}) ([]byte, error) {
	buf := make([]byte, 0, min(n, readGrowStep))
	for uint64(len(buf)) < n {
		select {
		case <-stop:
			return nil, ErrStopped
		default:
		}

		want := int(min(n-uint64(len(buf)), readGrowStep))
		buf = slices.Grow(buf, want)

		if err := r.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		k, err := r.Read(buf[len(buf) : len(buf)+want])
		buf = buf[:len(buf)+k]
		if err == nil {
			continue
		}
		if isTimeout(err) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if uint64(len(buf)) == n {
				break
			}
			if len(buf) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// ReadFrame reads one screenshot frame: u64be L1, L1 timestamp bytes, u64be L2, L2
// payload bytes. Invalid UTF-8 in the timestamp is replaced with U+FFFD. io.EOF means
// the peer closed cleanly between frames; any other error leaves the frame incomplete.
func ReadFrame(r DeadlineReader, limits FrameLimits, poll time.Duration, stop <-chan struct{}) (string, []byte, error) {
	header, err := ReadExact(r, frameHeaderSize, poll, stop)
	if err != nil {
		return "", nil, err
	}
	tsLen := binary.BigEndian.Uint64(header)
	if limits.MaxTimestampBytes > 0 && tsLen > limits.MaxTimestampBytes {
		return "", nil, fmt.Errorf("%w: timestamp length %d > %d", ErrFrameTooLarge, tsLen, limits.MaxTimestampBytes)
	}

	tsBytes, err := ReadExact(r, tsLen, poll, stop)
	if err != nil {
		return "", nil, midFrame(err)
	}

	header, err = ReadExact(r, frameHeaderSize, poll, stop)
	if err != nil {
		return "", nil, midFrame(err)
	}
	payloadLen := binary.BigEndian.Uint64(header)
	if limits.MaxPayloadBytes > 0 && payloadLen > limits.MaxPayloadBytes {
		return "", nil, fmt.Errorf("%w: payload length %d > %d", ErrFrameTooLarge, payloadLen, limits.MaxPayloadBytes)
	}

	payload, err := ReadExact(r, payloadLen, poll, stop)
	if err != nil {
		return "", nil, midFrame(err)
	}

	return strings.ToValidUTF8(string(tsBytes), "\uFFFD"), payload, nil
}

// WriteFrame encodes one screenshot frame onto w.
func WriteFrame(w io.Writer, capturedAt string, payload []byte) error {
	buf := make([]byte, 0, 2*frameHeaderSize+len(capturedAt)+len(payload))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(capturedAt)))
	buf = append(buf, capturedAt...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// midFrame turns a clean EOF into ErrUnexpectedEOF once part of a frame was consumed.
func midFrame(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
