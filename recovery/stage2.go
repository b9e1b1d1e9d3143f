package recovery

import (
	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/framer"
	"github.com/openbrick/socrescue/soc"
	"github.com/openbrick/socrescue/transport"
)

// loadStage2 streams the flash-writer image to the ROM and confirms the
// agent came up. The ROM printed its send marker together with the boot
// signal, so the upload starts immediately: raw bytes, chunked for
// progress, then the family's stop line.
//
// The agent's banner and first prompt must both appear within the ready
// window. Their absence is fatal, never ignored.
func loadStage2(t transport.Transport, desc *soc.Descriptor, stage2 *firmware.Image, cfg *Config) error {
	data, err := stage2.Bytes()
	if err != nil {
		return &TransferError{Reason: "read stage-2 image", Err: err}
	}

	if err := framer.WriteChunked(t, data, cfg.ChunkSize, cfg.Progress); err != nil {
		return &TransferError{Reason: "stream stage-2 image", Err: err}
	}
	if desc.Stage2Terminator != "" {
		if err := t.Write([]byte(desc.Stage2Terminator)); err != nil {
			return &TransferError{Reason: "send stage-2 stop line", Err: err}
		}
	}

	if _, err := t.ReadUntil([]byte(desc.AgentBanner), cfg.AgentReadyTimeout); err != nil {
		return &TransferError{Reason: "agent banner not seen after load", Err: err}
	}
	if _, err := t.ReadUntil([]byte(desc.Prompt), cfg.PromptTimeout); err != nil {
		return &TransferError{Reason: "agent prompt not seen after banner", Err: err}
	}
	return nil
}
