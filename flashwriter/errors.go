package flashwriter

import "fmt"

// WriteError reports a failed flash command. It names the image and the
// state-machine stage that failed, and carries the raw agent text that
// triggered the failure so the operator sees the device's own diagnostics.
type WriteError struct {
	// Image is the firmware image name.
	Image string

	// Stage is the command phase that failed.
	Stage string

	// Reason is the matched agent failure line, when one was recognized.
	Reason string

	// Diagnostic is the raw agent output captured for this command.
	Diagnostic string

	// Err is the underlying transport or timeout error, if any.
	Err error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("flash write failed for %s during %s", e.Image, e.Stage)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *WriteError) Unwrap() error { return e.Err }
