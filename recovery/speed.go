package recovery

import (
	"time"

	"github.com/openbrick/socrescue/soc"
	"github.com/openbrick/socrescue/transport"
)

// negotiateSpeed runs the agent's optional speed-up exchange and returns
// the achieved baud. The change is committed only after a probe at the new
// rate is answered; on any uncertainty the local baud is reverted and a
// *SpeedNegotiationError is returned. Callers treat that error as a
// recoverable outcome, never as session-fatal.
func negotiateSpeed(t transport.Transport, desc *soc.Descriptor, targetBaud int, cfg *Config) (int, error) {
	original := t.Baud()
	if targetBaud == original {
		return original, nil
	}

	if err := t.Write([]byte(desc.SpeedUpCommand + "\r\n")); err != nil {
		return original, &SpeedNegotiationError{TargetBaud: targetBaud, Reason: err.Error()}
	}
	if _, err := t.ReadUntil([]byte(desc.SpeedUpAck), cfg.PromptTimeout); err != nil {
		// The agent never acknowledged; the local rate was never touched.
		return original, &SpeedNegotiationError{TargetBaud: targetBaud, Reason: "agent did not acknowledge speed-up"}
	}

	// The device needs a moment to reprogram its UART divider.
	time.Sleep(cfg.SettleDelay)

	if err := t.SetBaud(targetBaud); err != nil {
		return original, &SpeedNegotiationError{TargetBaud: targetBaud, Reason: err.Error()}
	}
	time.Sleep(cfg.SettleDelay / 4)

	// Verify the link actually works at the new rate before committing.
	probeOK := t.Write([]byte(desc.ProbeCommand+"\r\n")) == nil
	if probeOK {
		if _, err := t.ReadUntil([]byte(desc.Prompt), cfg.PromptTimeout); err != nil {
			probeOK = false
		}
	}
	if !probeOK {
		if err := t.SetBaud(original); err != nil {
			return original, &SpeedNegotiationError{TargetBaud: targetBaud, Reason: "probe failed and baud revert failed: " + err.Error()}
		}
		time.Sleep(cfg.SettleDelay / 4)
		t.DrainInput()
		return original, &SpeedNegotiationError{TargetBaud: targetBaud, Reason: "probe not answered at new rate"}
	}

	return targetBaud, nil
}
