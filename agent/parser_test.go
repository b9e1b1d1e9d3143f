package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser() *Parser {
	return &Parser{
		Prompt:          ">",
		SuccessMarkers:  []string{"Complete!", "SAVE SPI-FLASH"},
		FailureMarkers:  []string{"ERR", "Error", "Fail"},
		ProgressMarkers: []string{"Erase Completed"},
	}
}

func TestClassify(t *testing.T) {
	p := testParser()

	tests := []struct {
		name string
		line string
		kind EventKind
	}{
		{name: "prompt", line: ">", kind: KindPrompt},
		{name: "emmc success", line: "EM_W Complete!", kind: KindSuccess},
		{name: "qspi success", line: "SAVE SPI-FLASH.......", kind: KindSuccess},
		{name: "failure", line: "Error: SPI write failed", kind: KindFailure},
		{name: "erase progress", line: "Erase Completed", kind: KindProgress},
		{name: "chatter", line: "Work RAM(H'50000000-H'50FFFFFF) Clear....", kind: KindUnrecognized},
		{name: "failure beats trailing prompt", line: "Fail!  >", kind: KindFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := p.Classify(tt.line)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.line, ev.Raw)
		})
	}
}

func TestClassifyFailureCarriesReason(t *testing.T) {
	ev := testParser().Classify("  Error: erase timeout  ")
	require.Equal(t, KindFailure, ev.Kind)
	assert.Equal(t, "Error: erase timeout", ev.Reason)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "crlf", raw: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "bare lf", raw: "a\nb", want: []string{"a", "b"}},
		{name: "bare cr", raw: "a\rb\r", want: []string{"a", "b"}},
		{name: "blank lines dropped", raw: "a\r\n\r\n\r\nb", want: []string{"a", "b"}},
		{name: "empty", raw: "", want: nil},
		{name: "unterminated tail", raw: "a\r\npartial", want: []string{"a", "partial"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines([]byte(tt.raw)))
		})
	}
}

func TestParseAndFirstFailure(t *testing.T) {
	p := testParser()
	raw := []byte("Flash writer for RZ/G2L\r\n>EM_W\r\nError: out of range\r\nComplete!\r\n")

	events := p.Parse(raw)
	require.Len(t, events, 4)
	assert.Equal(t, KindUnrecognized, events[0].Kind)
	assert.Equal(t, KindPrompt, events[1].Kind)
	assert.Equal(t, KindFailure, events[2].Kind)
	assert.Equal(t, KindSuccess, events[3].Kind)

	ev, ok := p.FirstFailure(raw)
	require.True(t, ok)
	assert.Equal(t, "Error: out of range", ev.Reason)

	_, ok = p.FirstFailure([]byte("all good\r\nComplete!\r\n"))
	assert.False(t, ok)
}
