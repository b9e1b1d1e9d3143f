package transport

import (
	"bytes"
	"sync"
	"time"
)

// Scripted is a deterministic in-memory Transport used by tests and by
// simulated-agent examples. Device behavior is described as write-triggered
// responses: when the host writes bytes containing a rule's trigger, the
// rule's response is appended to the pending device output.
//
// Reads that never match sleep out their full timeout, mirroring the
// polling behavior of a real serial link.
type Scripted struct {
	mu     sync.Mutex
	baud   int
	rx     []byte
	rules  []scriptRule
	writes []byte
	closed bool
}

type scriptRule struct {
	trigger []byte
	respond []byte
	baud    int // 0 matches any rate
	once    bool
	spent   bool
}

// NewScripted returns a Scripted transport at the given initial baud rate.
func NewScripted(baud int) *Scripted {
	return &Scripted{baud: baud}
}

// QueueOutput makes out immediately available as device output.
func (s *Scripted) QueueOutput(out string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = append(s.rx, out...)
}

// OnWrite responds with respond every time the host writes trigger.
func (s *Scripted) OnWrite(trigger, respond string) {
	s.addRule(trigger, respond, 0, false)
}

// OnWriteOnce responds with respond the first time the host writes trigger.
func (s *Scripted) OnWriteOnce(trigger, respond string) {
	s.addRule(trigger, respond, 0, true)
}

// OnWriteAtBaud responds only while the local rate equals baud.
func (s *Scripted) OnWriteAtBaud(baud int, trigger, respond string) {
	s.addRule(trigger, respond, baud, false)
}

func (s *Scripted) addRule(trigger, respond string, baud int, once bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, scriptRule{
		trigger: []byte(trigger),
		respond: []byte(respond),
		baud:    baud,
		once:    once,
	})
}

// Written returns everything the host has written so far.
func (s *Scripted) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// ReadUntil implements Transport.
func (s *Scripted) ReadUntil(pattern []byte, timeout time.Duration) ([]byte, error) {
	_, buf, err := s.ReadUntilAny([][]byte{pattern}, timeout)
	return buf, err
}

// ReadUntilAny implements Transport.
func (s *Scripted) ReadUntilAny(patterns [][]byte, timeout time.Duration) (int, []byte, error) {
	s.mu.Lock()
	if idx, end := indexAny(s.rx, patterns); idx >= 0 {
		buf := s.rx[:end]
		s.rx = append([]byte(nil), s.rx[end:]...)
		s.mu.Unlock()
		return idx, buf, nil
	}
	buf := s.rx
	s.rx = nil
	s.mu.Unlock()

	// Nothing scripted will arrive without another write, so the read
	// runs out its full deadline.
	time.Sleep(timeout)
	return -1, buf, &TimeoutError{Pattern: firstPattern(patterns), Timeout: timeout}
}

// Write implements Transport.
func (s *Scripted) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, p...)
	for i := range s.rules {
		r := &s.rules[i]
		if r.spent || len(r.trigger) == 0 || (r.baud != 0 && r.baud != s.baud) {
			continue
		}
		if bytes.Contains(p, r.trigger) {
			s.rx = append(s.rx, r.respond...)
			if r.once {
				r.spent = true
			}
		}
	}
	return nil
}

// SetBaud implements Transport.
func (s *Scripted) SetBaud(baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baud = baud
	return nil
}

// Baud implements Transport.
func (s *Scripted) Baud() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// DrainInput implements Transport.
func (s *Scripted) DrainInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = nil
}

// Close implements Transport.
func (s *Scripted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Scripted) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
