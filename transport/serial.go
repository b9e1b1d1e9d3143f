package transport

import (
	"time"

	"go.bug.st/serial"
)

// pollInterval is how long a single port read may block before the
// accumulated buffer is re-checked against the deadline.
const pollInterval = 100 * time.Millisecond

// Serial is a Transport over a local serial port (8N1, no flow control),
// the line discipline boot-recovery ROMs expect.
type Serial struct {
	endpoint string
	port     serial.Port
	baud     int
	pending  []byte
	closed   bool
}

// Open claims the serial endpoint at the given baud rate.
// The endpoint is exclusively owned until Close.
func Open(endpoint string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(endpoint, mode)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		_ = port.Close()
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	return &Serial{endpoint: endpoint, port: port, baud: baud}, nil
}

// ReadUntil implements Transport.
func (s *Serial) ReadUntil(pattern []byte, timeout time.Duration) ([]byte, error) {
	_, buf, err := s.ReadUntilAny([][]byte{pattern}, timeout)
	return buf, err
}

// ReadUntilAny implements Transport.
func (s *Serial) ReadUntilAny(patterns [][]byte, timeout time.Duration) (int, []byte, error) {
	deadline := time.Now().Add(timeout)
	buf := s.pending
	s.pending = nil

	for {
		if idx, end := indexAny(buf, patterns); idx >= 0 {
			s.pending = append(s.pending, buf[end:]...)
			return idx, buf[:end], nil
		}
		if time.Now().After(deadline) {
			return -1, buf, &TimeoutError{Pattern: firstPattern(patterns), Timeout: timeout}
		}

		chunk := make([]byte, 512)
		n, err := s.port.Read(chunk)
		if err != nil {
			return -1, buf, &ConnectionError{Endpoint: s.endpoint, Err: err}
		}
		buf = append(buf, chunk[:n]...)
	}
}

// Write implements Transport.
func (s *Serial) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return &ConnectionError{Endpoint: s.endpoint, Err: err}
		}
		p = p[n:]
	}
	return s.port.Drain()
}

// SetBaud implements Transport. The local rate changes immediately.
func (s *Serial) SetBaud(baud int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := s.port.SetMode(mode); err != nil {
		return &ConnectionError{Endpoint: s.endpoint, Err: err}
	}
	s.baud = baud
	return nil
}

// Baud implements Transport.
func (s *Serial) Baud() int { return s.baud }

// DrainInput implements Transport.
func (s *Serial) DrainInput() {
	s.pending = nil
	_ = s.port.ResetInputBuffer()
}

// Close implements Transport.
func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

func firstPattern(patterns [][]byte) []byte {
	if len(patterns) == 0 {
		return nil
	}
	return patterns[0]
}
