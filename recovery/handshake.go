package recovery

import (
	"errors"
	"time"

	"github.com/openbrick/socrescue/transport"
)

// waitForBootSignal reads device output until the family's boot-recovery
// announcement appears or the window elapses. A timeout is returned as a
// *DetectionTimeoutError: the caller may prompt the operator to power-cycle
// the board and invoke the session again.
func waitForBootSignal(t transport.Transport, signal string, timeout time.Duration) error {
	_, err := t.ReadUntil([]byte(signal), timeout)
	if err == nil {
		return nil
	}
	var te *transport.TimeoutError
	if errors.As(err, &te) {
		return &DetectionTimeoutError{Signal: signal, Timeout: timeout}
	}
	return err
}
