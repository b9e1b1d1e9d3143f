// Package flashwriter drives the command protocol of a loaded stage-2
// flash-writer agent: one command per firmware image, each a fixed dialog
// of sub-prompts followed by a payload stream and a completion marker.
package flashwriter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openbrick/socrescue/agent"
	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/framer"
	"github.com/openbrick/socrescue/soc"
	"github.com/openbrick/socrescue/transport"
)

// Client issues flash-writer commands over an open transport. The agent is
// assumed to be loaded and at its prompt; the client never re-handshakes.
type Client struct {
	t      transport.Transport
	desc   *soc.Descriptor
	parser *agent.Parser
	cfg    Config
}

// New builds a client for a loaded agent.
func New(t transport.Transport, desc *soc.Descriptor, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		t:      t,
		desc:   desc,
		parser: desc.Parser(),
		cfg:    cfg,
	}
}

// Flash programs one image. The per-command state machine is
// SEND_COMMAND → AWAIT_PROMPT_SEQUENCE → SEND_PAYLOAD → AWAIT_COMPLETION;
// any miss fails with a *WriteError naming the image and carrying the raw
// agent text seen so far.
func (c *Client) Flash(ctx context.Context, img *firmware.Image) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}

	// Command selection happens before any I/O: an unknown (target, format)
	// pair is a configuration error, not a device failure.
	spec, err := c.desc.CommandFor(img.Target, img.Format)
	if err != nil {
		return err
	}
	payload, err := framer.EncodePayload(img)
	if err != nil {
		return err
	}

	c.logDebug("sending flash command",
		"image", img.Name, "command", spec.Name,
		"target", string(img.Target), "format", string(img.Format),
		"payload_bytes", len(payload),
	)

	if err := c.sendLine(spec.Name); err != nil {
		return &WriteError{Image: img.Name, Stage: "send command", Err: err}
	}

	for _, step := range spec.Steps {
		buf, err := c.t.ReadUntil([]byte(step.Expect), c.cfg.PromptTimeout)
		if err != nil {
			return c.writeError(img, fmt.Sprintf("await %q prompt", step.Expect), buf, err)
		}
		answer, err := step.Answer(img, len(payload))
		if err != nil {
			return &WriteError{Image: img.Name, Stage: "answer prompt", Err: err}
		}
		c.logDebug("answering agent prompt", "image", img.Name, "prompt", step.Expect, "answer", answer)
		if err := c.sendLine(answer); err != nil {
			return &WriteError{Image: img.Name, Stage: "answer prompt", Err: err}
		}
	}

	buf, err := c.t.ReadUntil([]byte(spec.SendMarker), c.cfg.SendTimeout)
	if err != nil {
		return c.writeError(img, "await send marker", buf, err)
	}

	if err := framer.WriteChunked(c.t, payload, c.cfg.ChunkSize, c.cfg.Progress); err != nil {
		return &WriteError{Image: img.Name, Stage: "send payload", Err: err}
	}
	if spec.Terminator != "" {
		if err := c.t.Write([]byte(spec.Terminator)); err != nil {
			return &WriteError{Image: img.Name, Stage: "send payload", Err: err}
		}
	}

	return c.awaitCompletion(img, spec)
}

// awaitCompletion waits for the command's success marker, answering the
// optional erase confirmation on the way. The deadline covers worst-case
// erase latency on first write to a region.
func (c *Client) awaitCompletion(img *firmware.Image, spec *soc.CommandSpec) error {
	deadline := time.Now().Add(c.cfg.EraseTimeout)
	var transcript []byte

	patterns := [][]byte{[]byte(spec.Completion)}
	if c.desc.ErasePrompt != "" {
		patterns = append(patterns, []byte(c.desc.ErasePrompt))
	}
	for _, m := range c.desc.FailureMarkers {
		patterns = append(patterns, []byte(m))
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.writeError(img, "await completion", transcript,
				&transport.TimeoutError{Pattern: []byte(spec.Completion), Timeout: c.cfg.EraseTimeout})
		}

		idx, buf, err := c.t.ReadUntilAny(patterns, remaining)
		transcript = append(transcript, buf...)
		if err != nil {
			return c.writeError(img, "await completion", transcript, err)
		}

		switch {
		case idx == 0:
			// Success marker. Best-effort wait for the prompt so the next
			// command starts from a clean line.
			c.reportEvents(img, transcript)
			if _, err := c.t.ReadUntil([]byte(c.desc.Prompt), c.cfg.PromptTimeout); err != nil {
				c.logDebug("prompt not seen after completion", "image", img.Name)
			}
			c.logInfo("image flashed", "image", img.Name, "command", spec.Name)
			return nil

		case c.desc.ErasePrompt != "" && idx == 1:
			c.logInfo("agent requests erase, confirming", "image", img.Name)
			if err := c.sendLine(c.desc.EraseAnswer); err != nil {
				return &WriteError{Image: img.Name, Stage: "confirm erase", Err: err}
			}

		default:
			// A failure marker matched; classify the transcript so the
			// error carries the agent's own wording.
			reason := string(patterns[idx])
			if ev, ok := c.parser.FirstFailure(transcript); ok {
				reason = ev.Reason
			}
			return &WriteError{
				Image:      img.Name,
				Stage:      "await completion",
				Reason:     reason,
				Diagnostic: string(transcript),
			}
		}
	}
}

// Resync nudges the agent back to its prompt between commands and drops
// residual output. Used before every command after the first.
func (c *Client) Resync() error {
	if err := c.sendLine(c.desc.ProbeCommand); err != nil {
		return err
	}
	if _, err := c.t.ReadUntil([]byte(c.desc.Prompt), c.cfg.PromptTimeout); err != nil {
		return err
	}
	c.t.DrainInput()
	return nil
}

// reportEvents classifies a command transcript and logs anything the agent
// said that was not plain chatter.
func (c *Client) reportEvents(img *firmware.Image, transcript []byte) {
	if c.cfg.Logger == nil {
		return
	}
	for _, ev := range c.parser.Parse(transcript) {
		switch ev.Kind {
		case agent.KindProgress, agent.KindSuccess:
			c.logDebug("agent "+ev.Kind.String(), "image", img.Name, "line", ev.Raw)
		case agent.KindFailure:
			c.logError("agent failure line", "image", img.Name, "line", ev.Raw)
		}
	}
}

func (c *Client) writeError(img *firmware.Image, stage string, raw []byte, err error) error {
	reason := ""
	if ev, ok := c.parser.FirstFailure(raw); ok {
		reason = ev.Reason
	}
	var connErr *transport.ConnectionError
	if errors.As(err, &connErr) {
		// Transport-level failures surface as-is: they are fatal to the
		// session, not a per-image outcome.
		return err
	}
	return &WriteError{
		Image:      img.Name,
		Stage:      stage,
		Reason:     reason,
		Diagnostic: string(raw),
		Err:        err,
	}
}

func (c *Client) sendLine(line string) error {
	return c.t.Write([]byte(line + "\r\n"))
}

func (c *Client) logDebug(msg string, kv ...interface{}) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, kv...)
	}
}

func (c *Client) logInfo(msg string, kv ...interface{}) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info(msg, kv...)
	}
}

func (c *Client) logError(msg string, kv ...interface{}) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Error(msg, kv...)
	}
}
