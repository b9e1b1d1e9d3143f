package agent

import "strings"

// Parser classifies agent output lines against one descriptor's marker
// strings. Build one per recovery session from the SoC descriptor.
type Parser struct {
	// Prompt marks the agent's command prompt (e.g. ">").
	Prompt string

	// SuccessMarkers mark command completion (e.g. "Complete!",
	// "SAVE SPI-FLASH").
	SuccessMarkers []string

	// FailureMarkers are known error strings the agent prints.
	FailureMarkers []string

	// ProgressMarkers mark long-running intermediate output
	// (e.g. "Erase Completed").
	ProgressMarkers []string
}

// Classify tags a single logical line of agent output. Failure markers are
// checked first: an error line may also contain the prompt that follows it.
func (p *Parser) Classify(line string) Event {
	trimmed := strings.TrimSpace(line)

	for _, m := range p.FailureMarkers {
		if strings.Contains(trimmed, m) {
			return Event{Kind: KindFailure, Reason: trimmed, Raw: line}
		}
	}
	for _, m := range p.SuccessMarkers {
		if strings.Contains(trimmed, m) {
			return Event{Kind: KindSuccess, Raw: line}
		}
	}
	for _, m := range p.ProgressMarkers {
		if strings.Contains(trimmed, m) {
			return Event{Kind: KindProgress, Raw: line}
		}
	}
	if p.Prompt != "" && strings.Contains(trimmed, p.Prompt) {
		return Event{Kind: KindPrompt, Raw: line}
	}
	return Event{Kind: KindUnrecognized, Raw: line}
}

// Parse splits raw agent output into logical lines and classifies each.
// Empty lines are dropped.
func (p *Parser) Parse(raw []byte) []Event {
	var events []Event
	for _, line := range SplitLines(raw) {
		events = append(events, p.Classify(line))
	}
	return events
}

// FirstFailure returns the first failure event in raw agent output, if any.
func (p *Parser) FirstFailure(raw []byte) (Event, bool) {
	for _, ev := range p.Parse(raw) {
		if ev.Kind == KindFailure {
			return ev, true
		}
	}
	return Event{}, false
}

// SplitLines breaks raw device output into logical lines, tolerating bare
// CR, bare LF, and CRLF terminators. Blank lines are omitted.
func SplitLines(raw []byte) []string {
	var lines []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(raw[start:end])); s != "" {
			lines = append(lines, s)
		}
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\n':
			flush(i)
			start = i + 1
		case '\r':
			flush(i)
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	flush(len(raw))
	return lines
}
