package recovery

import "time"

// State is the session state machine cursor. Transitions are strictly
// forward; every non-terminal state has a mirrored terminal failure state.
type State string

const (
	StateInit              State = "init"
	StateAwaitingBoot      State = "awaiting_boot_signal"
	StateLoadingStage2     State = "loading_stage2"
	StateStage2Ready       State = "stage2_ready"
	StateSpeedNegotiating  State = "speed_negotiating"
	StateFlashing          State = "flashing"
	StateDone              State = "done"
	StateFailedConnection  State = "failed_connection"
	StateFailedDetection   State = "failed_detection"
	StateFailedLoad        State = "failed_load"
	StateFailedFlash       State = "failed_flash"
)

// ImageResult is the per-image outcome of the flashing phase. Images are
// reported independently: one failure does not mask the attempts after it.
type ImageResult struct {
	Name    string
	OK      bool
	Reason  string
	Elapsed time.Duration
}

// StageTiming records how long one session stage ran.
type StageTiming struct {
	Stage   State
	Elapsed time.Duration
}

// Report is the outcome of one recovery session.
type Report struct {
	// FinalState is the state the session terminated in.
	FinalState State

	// Baud is the effective line rate at the end of the session.
	Baud int

	// SpeedUpApplied reports whether the speed negotiation committed.
	SpeedUpApplied bool

	// Images holds the per-image outcomes in the order attempted.
	Images []ImageResult

	// Stages holds elapsed time per stage, in execution order.
	Stages []StageTiming

	// Elapsed is the total session wall time.
	Elapsed time.Duration
}

// FailedImages lists the names of images that did not flash.
func (r *Report) FailedImages() []string {
	var failed []string
	for _, img := range r.Images {
		if !img.OK {
			failed = append(failed, img.Name)
		}
	}
	return failed
}
