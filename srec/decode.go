package srec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseRecord decodes a single S-record line and verifies its checksum.
func ParseRecord(line string) (*Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 || line[0] != 'S' {
		return nil, fmt.Errorf("not an S-record: %q", line)
	}
	typ := line[1] - '0'
	width, err := addrBytes(typ)
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(line[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex in record: %w", err)
	}
	count := raw[0]
	if int(count) != len(raw)-1 {
		return nil, fmt.Errorf("count mismatch: field says %d, line carries %d bytes", count, len(raw)-1)
	}
	if int(count) < width+1 {
		return nil, fmt.Errorf("record too short for S%d address field", typ)
	}

	var address uint32
	for _, b := range raw[1 : 1+width] {
		address = address<<8 | uint32(b)
	}
	data := raw[1+width : len(raw)-1]
	cs := raw[len(raw)-1]

	if want := checksum(count, address, width, data); cs != want {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", cs, want)
	}

	return &Record{Type: typ, Address: address, Data: append([]byte(nil), data...), Checksum: cs}, nil
}

// Decode reverses Encode: it reassembles the byte image and its base load
// address from an S-record stream. Data records must be contiguous and in
// ascending address order, the form Encode produces.
func Decode(stream []byte) (data []byte, base uint32, err error) {
	var (
		sawData  bool
		sawStart bool
		next     uint32
	)
	for _, line := range strings.Split(string(stream), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, 0, err
		}
		switch rec.Type {
		case 0:
			// header, no image content
		case 1, 2, 3:
			if !sawData {
				base = rec.Address
				next = rec.Address
				sawData = true
			}
			if rec.Address != next {
				return nil, 0, fmt.Errorf("non-contiguous data record at 0x%X, expected 0x%X", rec.Address, next)
			}
			data = append(data, rec.Data...)
			next += uint32(len(rec.Data))
		case 7, 8, 9:
			if !sawData {
				base = rec.Address
			}
			sawStart = true
		}
	}
	if !sawStart {
		return nil, 0, fmt.Errorf("stream has no start-address record")
	}
	return data, base, nil
}
