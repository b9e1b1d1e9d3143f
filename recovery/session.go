package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/flashwriter"
	"github.com/openbrick/socrescue/soc"
)

// Target identifies the device a session recovers: its family descriptor,
// the serial endpoint, and the initial line rate (0 = descriptor default).
type Target struct {
	Family   string
	Endpoint string
	Baud     int
}

// Session runs one boot-recovery sequence against one device. A Session is
// single-use per Run call but holds no state between calls; independent
// sessions on distinct ports may run concurrently.
type Session struct {
	cfg Config
}

// New creates a Session with the given options.
func New(opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{cfg: cfg}
}

// Run performs the full recovery sequence: detect the boot signal, load
// the stage-2 agent, optionally negotiate a higher line rate, then flash
// each image in order. The returned Report is populated on every path,
// success or failure. The transport is closed on every exit path.
//
// There is no internal retry: a detection or load failure terminates the
// session and the operator re-invokes Run after power-cycling the board.
func (s *Session) Run(ctx context.Context, target Target, stage2 *firmware.Image, images []*firmware.Image) (*Report, error) {
	report := &Report{FinalState: StateInit}
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	desc, err := soc.Lookup(target.Family)
	if err != nil {
		return report, err
	}

	// Cross-field invariants and command selection are checked before any
	// I/O so configuration mistakes never reach the device.
	if stage2 == nil {
		return report, &soc.ConfigError{Family: desc.Family, Reason: "stage-2 image is required"}
	}
	for _, img := range images {
		if err := img.Validate(); err != nil {
			return report, err
		}
		if _, err := desc.CommandFor(img.Target, img.Format); err != nil {
			return report, err
		}
	}

	baud := target.Baud
	if baud == 0 {
		baud = desc.InitialBaud
	}

	s.logInfo("opening recovery transport", "family", desc.Family, "endpoint", target.Endpoint, "baud", baud)
	t, err := s.cfg.Dial(target.Endpoint, baud)
	if err != nil {
		report.FinalState = StateFailedConnection
		return report, err
	}
	defer func() { _ = t.Close() }()
	report.Baud = baud

	// Stage: boot signal detection.
	if err := s.enter(ctx, report, StateAwaitingBoot); err != nil {
		report.FinalState = StateFailedDetection
		return report, err
	}
	s.logInfo("waiting for boot signal; reset or power-cycle the board now",
		"signal", desc.BootSignal, "timeout", s.cfg.HandshakeTimeout.String())
	stageStart := time.Now()
	if err := waitForBootSignal(t, desc.BootSignal, s.cfg.HandshakeTimeout); err != nil {
		s.record(report, StateAwaitingBoot, stageStart)
		report.FinalState = StateFailedDetection
		return report, err
	}
	s.record(report, StateAwaitingBoot, stageStart)
	s.logInfo("boot signal detected", "signal", desc.BootSignal)

	// Stage: stage-2 agent load.
	if err := s.enter(ctx, report, StateLoadingStage2); err != nil {
		report.FinalState = StateFailedLoad
		return report, err
	}
	stageStart = time.Now()
	if err := loadStage2(t, desc, stage2, &s.cfg); err != nil {
		s.record(report, StateLoadingStage2, stageStart)
		report.FinalState = StateFailedLoad
		return report, err
	}
	s.record(report, StateLoadingStage2, stageStart)
	report.FinalState = StateStage2Ready
	s.logInfo("stage-2 agent is alive", "image", stage2.Name)

	// Stage: optional speed negotiation. Best-effort by contract: its own
	// failure reverts the baud and the session carries on.
	if s.cfg.SpeedUp && desc.HighSpeedBaud != 0 {
		if err := s.enter(ctx, report, StateSpeedNegotiating); err != nil {
			report.FinalState = StateFailedLoad
			return report, err
		}
		targetBaud := s.cfg.TargetBaud
		if targetBaud == 0 {
			targetBaud = desc.HighSpeedBaud
		}
		stageStart = time.Now()
		achieved, err := negotiateSpeed(t, desc, targetBaud, &s.cfg)
		s.record(report, StateSpeedNegotiating, stageStart)
		report.Baud = achieved
		if err != nil {
			var snErr *SpeedNegotiationError
			if !errors.As(err, &snErr) {
				report.FinalState = StateFailedConnection
				return report, err
			}
			s.logInfo("speed negotiation failed, continuing at original rate",
				"baud", achieved, "reason", snErr.Reason)
		} else if achieved == targetBaud {
			report.SpeedUpApplied = true
			s.logInfo("link rate raised", "baud", achieved)
		}
	}

	// Stage: flashing, zero or more images, strictly in order. A per-image
	// failure records an outcome and moves on; only transport-level errors
	// abort the remaining images.
	if len(images) > 0 {
		if err := s.enter(ctx, report, StateFlashing); err != nil {
			report.FinalState = StateFailedFlash
			return report, err
		}
		client := flashwriter.New(t, desc,
			flashwriter.WithChunkSize(s.cfg.ChunkSize),
			flashwriter.WithPromptTimeout(s.cfg.PromptTimeout),
			flashwriter.WithEraseTimeout(s.cfg.EraseTimeout),
			flashwriter.WithProgress(s.cfg.Progress),
			flashwriter.WithLogger(s.cfg.Logger),
		)
		stageStart = time.Now()
		fatal := s.flashAll(ctx, client, images, report)
		s.record(report, StateFlashing, stageStart)
		if fatal != nil {
			report.FinalState = StateFailedFlash
			return report, fatal
		}
	}

	if failed := report.FailedImages(); len(failed) > 0 {
		report.FinalState = StateFailedFlash
		return report, &PartialFlashError{Failed: failed, Total: len(images)}
	}

	report.FinalState = StateDone
	s.logInfo("recovery complete", "images", len(images), "baud", report.Baud)
	return report, nil
}

// flashAll programs every image, recording independent outcomes. The
// returned error is non-nil only for failures that make further commands
// pointless (cancelled context, dead transport).
func (s *Session) flashAll(ctx context.Context, client *flashwriter.Client, images []*firmware.Image, report *Report) error {
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}
		if i > 0 {
			if err := client.Resync(); err != nil {
				s.logInfo("agent resync before next image failed, proceeding", "image", img.Name)
			}
		}

		s.logInfo("flashing image", "image", img.Name, "index", i+1, "total", len(images))
		imgStart := time.Now()
		err := client.Flash(ctx, img)
		result := ImageResult{Name: img.Name, OK: err == nil, Elapsed: time.Since(imgStart)}

		if err != nil {
			var writeErr *flashwriter.WriteError
			var cfgErr *soc.ConfigError
			switch {
			case errors.As(err, &writeErr):
				result.Reason = writeErr.Error()
				s.logError("image failed, continuing with remaining images",
					"image", img.Name, "stage", writeErr.Stage, "diagnostic", writeErr.Diagnostic)
			case errors.As(err, &cfgErr):
				result.Reason = cfgErr.Error()
				s.logError("image rejected by configuration check", "image", img.Name)
			default:
				// Transport-level or cancellation: fatal to the session.
				result.Reason = err.Error()
				report.Images = append(report.Images, result)
				return err
			}
		}
		report.Images = append(report.Images, result)
	}
	return nil
}

// enter advances the state machine cursor. Transitions are forward-only;
// the session owns the cursor exclusively.
func (s *Session) enter(ctx context.Context, report *Report, state State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled entering %s: %w", state, err)
	}
	report.FinalState = state
	s.logDebug("stage entered", "stage", string(state))
	return nil
}

func (s *Session) record(report *Report, stage State, start time.Time) {
	report.Stages = append(report.Stages, StageTiming{Stage: stage, Elapsed: time.Since(start)})
}

func (s *Session) logDebug(msg string, kv ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, kv...)
	}
}

func (s *Session) logInfo(msg string, kv ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Info(msg, kv...)
	}
}

func (s *Session) logError(msg string, kv ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Error(msg, kv...)
	}
}
