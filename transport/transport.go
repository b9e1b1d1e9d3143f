package transport

import (
	"bytes"
	"fmt"
	"time"
)

// Transport is a byte-stream link to a device in boot-recovery mode.
//
// All reads are bounded by an explicit timeout; there is no unbounded
// blocking read. Implementations retain bytes received after a pattern
// match so the next ReadUntil call sees them, but perform no other
// buffering across calls.
type Transport interface {
	// ReadUntil accumulates device output until pattern appears as a
	// substring or the timeout elapses. On success it returns everything
	// received up to and including the match. On timeout it returns the
	// bytes received so far along with a *TimeoutError.
	ReadUntil(pattern []byte, timeout time.Duration) ([]byte, error)

	// ReadUntilAny waits for the first of several patterns. It returns the
	// index of the pattern that matched and the accumulated output.
	ReadUntilAny(patterns [][]byte, timeout time.Duration) (int, []byte, error)

	// Write sends bytes to the device.
	Write(p []byte) error

	// SetBaud changes the local line rate immediately. Any renegotiation
	// handshake with the device is the caller's job.
	SetBaud(baud int) error

	// Baud reports the current local line rate.
	Baud() int

	// DrainInput discards any pending unread device output.
	DrainInput()

	// Close releases the underlying endpoint. Safe to call more than once.
	Close() error
}

// TimeoutError indicates a bounded read elapsed without the expected
// pattern appearing in the device output.
type TimeoutError struct {
	Pattern []byte
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q", e.Timeout, e.Pattern)
}

// ConnectionError indicates the physical endpoint could not be opened or
// failed mid-session. Always fatal to a recovery session.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed on %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// indexAny reports the earliest match among patterns in buf.
// Returns the pattern index and the position just past the match,
// or (-1, -1) when nothing matches.
func indexAny(buf []byte, patterns [][]byte) (int, int) {
	bestIdx, bestEnd := -1, -1
	for i, p := range patterns {
		if len(p) == 0 {
			continue
		}
		if at := bytes.Index(buf, p); at >= 0 {
			end := at + len(p)
			if bestEnd == -1 || end < bestEnd {
				bestIdx, bestEnd = i, end
			}
		}
	}
	return bestIdx, bestEnd
}
