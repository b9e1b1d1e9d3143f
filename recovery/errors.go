package recovery

import (
	"fmt"
	"strings"
	"time"
)

// DetectionTimeoutError indicates the boot-recovery announcement was not
// observed within the handshake window. Recoverable: the operator can
// power-cycle the board and re-invoke Run.
type DetectionTimeoutError struct {
	Signal  string
	Timeout time.Duration
}

func (e *DetectionTimeoutError) Error() string {
	return fmt.Sprintf("boot signal %q not detected within %s (check boot mode, cabling, and port)",
		e.Signal, e.Timeout)
}

// TransferError indicates the stage-2 load failed or the loaded agent never
// answered. Fatal to the session: a silently dead agent would make every
// later flash command fail confusingly.
type TransferError struct {
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage-2 transfer failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("stage-2 transfer failed: %s", e.Reason)
}

func (e *TransferError) Unwrap() error { return e.Err }

// SpeedNegotiationError reports a failed speed-up exchange. Never fatal:
// the negotiator reverts the local baud and the session continues at the
// original rate.
type SpeedNegotiationError struct {
	TargetBaud int
	Reason     string
}

func (e *SpeedNegotiationError) Error() string {
	return fmt.Sprintf("speed negotiation to %d bps failed: %s", e.TargetBaud, e.Reason)
}

// PartialFlashError reports a session in which some firmware images failed
// while others succeeded. Per-image detail lives in the Report.
type PartialFlashError struct {
	Failed []string
	Total  int
}

func (e *PartialFlashError) Error() string {
	return fmt.Sprintf("%d of %d images failed to flash: %s",
		len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}
