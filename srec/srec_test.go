package srec

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patternImage(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		base uint32
	}{
		{name: "empty image", data: nil, base: 0x1000},
		{name: "single byte", data: []byte{0xA5}, base: 0},
		{name: "one full record", data: patternImage(DataBytesPerRecord), base: 0x8000},
		{name: "multi record", data: patternImage(1000), base: 0x11E00},
		{name: "crosses 16-bit boundary", data: patternImage(256), base: 0xFFC0},
		{name: "crosses 24-bit boundary", data: patternImage(256), base: 0xFFFFC0},
		{name: "32-bit addresses", data: patternImage(64), base: 0x48000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := Encode("test", tt.data, tt.base)
			require.NoError(t, err)

			data, base, err := Decode(stream)
			require.NoError(t, err)
			assert.Equal(t, tt.base, base, "base address")
			if len(tt.data) == 0 {
				assert.Empty(t, data)
			} else {
				assert.True(t, bytes.Equal(tt.data, data), "image bytes")
			}
		})
	}
}

func TestEncodeSelectsAddressWidth(t *testing.T) {
	tests := []struct {
		name      string
		base      uint32
		size      int
		dataType  string
		startType string
	}{
		{name: "16-bit", base: 0x1000, size: 32, dataType: "S1", startType: "S9"},
		{name: "24-bit", base: 0x10000, size: 32, dataType: "S2", startType: "S8"},
		{name: "24-bit by image end", base: 0xFFF0, size: 64, dataType: "S2", startType: "S8"},
		{name: "32-bit", base: 0x48000000, size: 32, dataType: "S3", startType: "S7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := Encode("hdr", patternImage(tt.size), tt.base)
			require.NoError(t, err)

			lines := nonEmptyLines(stream)
			require.GreaterOrEqual(t, len(lines), 3)
			assert.True(t, strings.HasPrefix(lines[0], "S0"), "header record first")
			for _, line := range lines[1 : len(lines)-1] {
				assert.True(t, strings.HasPrefix(line, tt.dataType), "data record %q", line)
			}
			assert.True(t, strings.HasPrefix(lines[len(lines)-1], tt.startType), "start record last")
		})
	}
}

// Every generated line must satisfy the S-record checksum identity: the
// sum of count, address, data, and checksum bytes is 0xFF modulo 256
// (the checksum is the one's complement of the rest).
func TestChecksumProperty(t *testing.T) {
	stream, err := Encode("fw", patternImage(500), 0xFF80)
	require.NoError(t, err)

	for _, line := range nonEmptyLines(stream) {
		raw, err := hex.DecodeString(line[2:])
		require.NoError(t, err, "line %q", line)

		var sum byte
		for _, b := range raw {
			sum += b
		}
		assert.Equal(t, byte(0xFF), sum, "line %q", line)
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	stream, err := Encode("fw", patternImage(64), 0x2000)
	require.NoError(t, err)

	t.Run("flipped data nibble", func(t *testing.T) {
		lines := nonEmptyLines(stream)
		line := []byte(lines[1])
		if line[10] == 'A' {
			line[10] = 'B'
		} else {
			line[10] = 'A'
		}
		_, err := ParseRecord(string(line))
		assert.ErrorContains(t, err, "checksum mismatch")
	})

	t.Run("count mismatch", func(t *testing.T) {
		_, err := ParseRecord("S10A20000102030405FF")
		assert.ErrorContains(t, err, "count mismatch")
	})

	t.Run("not a record", func(t *testing.T) {
		_, err := ParseRecord("hello")
		assert.Error(t, err)
	})

	t.Run("missing start record", func(t *testing.T) {
		lines := nonEmptyLines(stream)
		noStart := strings.Join(lines[:len(lines)-1], "\r\n")
		_, _, err := Decode([]byte(noStart))
		assert.ErrorContains(t, err, "no start-address record")
	})
}

func TestParseRecordFields(t *testing.T) {
	stream, err := Encode("fw", []byte{0x01, 0x02, 0x03}, 0x1234)
	require.NoError(t, err)

	lines := nonEmptyLines(stream)
	rec, err := ParseRecord(lines[1])
	require.NoError(t, err)
	assert.Equal(t, byte(1), rec.Type)
	assert.Equal(t, uint32(0x1234), rec.Address)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, rec.Data)
}

func nonEmptyLines(stream []byte) []string {
	var out []string
	for _, line := range strings.Split(string(stream), "\r\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
