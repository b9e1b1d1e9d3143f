// Package soc holds the static per-family recovery descriptors: handshake
// strings, baud plans, and the flash-writer command tables. New device
// families are added by registering a new descriptor, not by changing the
// session engine.
package soc

import (
	"fmt"

	"github.com/openbrick/socrescue/agent"
	"github.com/openbrick/socrescue/firmware"
)

// FieldID names the firmware-image field that answers one agent prompt.
type FieldID int

const (
	// FieldProgramAddress answers with Image.ProgramAddress in hex.
	FieldProgramAddress FieldID = iota

	// FieldFlashAddress answers with Image.FlashAddress in hex.
	FieldFlashAddress

	// FieldImageSize answers with the payload length in hex.
	FieldImageSize

	// FieldPartition answers with Image.Partition in decimal.
	FieldPartition

	// FieldStartSector answers with Image.StartSector in hex.
	FieldStartSector
)

// PromptStep is one sub-question in a command's fixed prompt sequence.
type PromptStep struct {
	// Expect is the substring the agent prints when asking.
	Expect string

	// Field selects the image field that answers it.
	Field FieldID
}

// Answer renders the step's reply in the text form the agent expects:
// bare hex for addresses, sizes and sectors, decimal for partitions.
func (s PromptStep) Answer(img *firmware.Image, payloadLen int) (string, error) {
	switch s.Field {
	case FieldProgramAddress:
		return fmt.Sprintf("%X", img.ProgramAddress), nil
	case FieldFlashAddress:
		return fmt.Sprintf("%X", img.FlashAddress), nil
	case FieldImageSize:
		return fmt.Sprintf("%X", payloadLen), nil
	case FieldPartition:
		return fmt.Sprintf("%d", img.Partition), nil
	case FieldStartSector:
		return fmt.Sprintf("%X", img.StartSector), nil
	}
	return "", fmt.Errorf("unknown prompt field %d", s.Field)
}

// CommandKey selects a flash-writer command. The (target, format) pair is
// the sole selection key; mismatched combinations are configuration errors.
type CommandKey struct {
	Target firmware.Target
	Format firmware.Format
}

// CommandSpec describes one flash-writer command's dialog.
type CommandSpec struct {
	// Name is the command word sent to the agent (e.g. "XLS2").
	Name string

	// Steps is the agent's fixed, ordered prompt sequence.
	Steps []PromptStep

	// SendMarker is the agent's readiness marker before the payload.
	SendMarker string

	// Terminator is written after the payload ("." + CRLF for
	// stop-on-dot loads, empty when the agent counts bytes itself).
	Terminator string

	// Completion is the command's success marker.
	Completion string
}

// Descriptor is the immutable per-family recovery data. Every field the
// engine dereferences for a family must be present; Validate enforces it
// at registry construction.
type Descriptor struct {
	// Family is the registry key (e.g. "rz-g2l").
	Family string

	// BootSignal is the ROM's boot-recovery announcement substring.
	BootSignal string

	// AgentBanner is printed by the stage-2 agent once alive.
	AgentBanner string

	// Prompt is the agent's command prompt.
	Prompt string

	// InitialBaud is the ROM-side line rate; HighSpeedBaud is the rate the
	// optional speed-up negotiates to.
	InitialBaud   int
	HighSpeedBaud int

	// SpeedUpCommand asks the agent to raise the rate; SpeedUpAck is its
	// acknowledgement; ProbeCommand verifies the link at the new rate.
	SpeedUpCommand string
	SpeedUpAck     string
	ProbeCommand   string

	// Stage2Terminator ends the stage-2 upload (the ROM's stop condition).
	Stage2Terminator string

	// ErasePrompt/EraseAnswer/EraseDone drive the agent's optional flash
	// erase confirmation during a write.
	ErasePrompt string
	EraseAnswer string
	EraseDone   string

	// FailureMarkers are strings the agent prints on command errors.
	FailureMarkers []string

	// Commands is the flash-writer command table.
	Commands map[CommandKey]CommandSpec
}

// CommandFor selects the command for a (target, format) pair.
// Unknown pairs fail before any I/O takes place.
func (d *Descriptor) CommandFor(target firmware.Target, format firmware.Format) (*CommandSpec, error) {
	spec, ok := d.Commands[CommandKey{Target: target, Format: format}]
	if !ok {
		return nil, &ConfigError{
			Family: d.Family,
			Reason: fmt.Sprintf("no flash-writer command for target=%s format=%s", target, format),
		}
	}
	return &spec, nil
}

// Parser builds the agent output classifier for this family.
func (d *Descriptor) Parser() *agent.Parser {
	success := make([]string, 0, len(d.Commands))
	seen := map[string]bool{}
	for _, cmd := range d.Commands {
		if !seen[cmd.Completion] {
			success = append(success, cmd.Completion)
			seen[cmd.Completion] = true
		}
	}
	return &agent.Parser{
		Prompt:          d.Prompt,
		SuccessMarkers:  success,
		FailureMarkers:  d.FailureMarkers,
		ProgressMarkers: []string{d.EraseDone},
	}
}

// Validate rejects partial descriptors. A family whose engine-visible
// fields are incomplete must never reach a session.
func (d *Descriptor) Validate() error {
	missing := func(what string) error {
		return &ConfigError{Family: d.Family, Reason: what + " is not set"}
	}
	switch {
	case d.Family == "":
		return &ConfigError{Reason: "descriptor family is not set"}
	case d.BootSignal == "":
		return missing("boot signal")
	case d.AgentBanner == "":
		return missing("agent banner")
	case d.Prompt == "":
		return missing("agent prompt")
	case d.InitialBaud <= 0:
		return missing("initial baud rate")
	case len(d.Commands) == 0:
		return missing("command table")
	}
	if d.HighSpeedBaud != 0 && (d.SpeedUpCommand == "" || d.SpeedUpAck == "" || d.ProbeCommand == "") {
		return &ConfigError{Family: d.Family, Reason: "high-speed baud set without a complete speed-up dialog"}
	}
	for key, cmd := range d.Commands {
		if cmd.Name == "" {
			return &ConfigError{Family: d.Family, Reason: fmt.Sprintf("command for %v has no name", key)}
		}
		if cmd.SendMarker == "" {
			return &ConfigError{Family: d.Family, Reason: fmt.Sprintf("command %s has no send marker", cmd.Name)}
		}
		if cmd.Completion == "" {
			return &ConfigError{Family: d.Family, Reason: fmt.Sprintf("command %s has no completion marker", cmd.Name)}
		}
		for _, step := range cmd.Steps {
			if step.Expect == "" {
				return &ConfigError{Family: d.Family, Reason: fmt.Sprintf("command %s has a prompt step with no pattern", cmd.Name)}
			}
		}
	}
	return nil
}

// ConfigError reports a bad descriptor or a descriptor/image combination
// that cannot be flashed. Raised before any device I/O.
type ConfigError struct {
	Family string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Family, e.Reason)
}
