package srec

import (
	"fmt"
	"strings"
)

// DataBytesPerRecord is the payload carried by each data record.
const DataBytesPerRecord = 16

// lineEnding terminates every record on the wire. Flash-writer agents
// consume CRLF-delimited text.
const lineEnding = "\r\n"

// Record is a single decoded S-record line.
type Record struct {
	// Type is the record digit: 0 header, 1-3 data, 7-9 start address.
	Type byte

	// Address is the record's address field.
	Address uint32

	// Data is the record payload (header text for S0, image bytes for S1-S3,
	// empty for start records).
	Data []byte

	// Checksum is the checksum byte as read from the line.
	Checksum byte
}

// addrBytes returns the width of the address field for a record type.
func addrBytes(typ byte) (int, error) {
	switch typ {
	case 0, 1, 9:
		return 2, nil
	case 2, 8:
		return 3, nil
	case 3, 7:
		return 4, nil
	}
	return 0, fmt.Errorf("unsupported record type S%d", typ)
}

// typesFor selects the data/start record pair whose address field fits
// every byte of an image ending at the given highest address.
func typesFor(highest uint32) (dataType, startType byte) {
	switch {
	case highest <= 0xFFFF:
		return 1, 9
	case highest <= 0xFFFFFF:
		return 2, 8
	default:
		return 3, 7
	}
}

// checksum computes the S-record checksum: the low byte of the one's
// complement of the sum of the count, address, and data bytes.
func checksum(count byte, address uint32, addrWidth int, data []byte) byte {
	sum := uint32(count)
	for i := 0; i < addrWidth; i++ {
		sum += (address >> (8 * (addrWidth - 1 - i))) & 0xFF
	}
	for _, b := range data {
		sum += uint32(b)
	}
	return ^byte(sum)
}

// formatRecord renders one record as an ASCII line without the terminator.
func formatRecord(typ byte, address uint32, data []byte) (string, error) {
	width, err := addrBytes(typ)
	if err != nil {
		return "", err
	}
	count := byte(width + len(data) + 1)

	var b strings.Builder
	fmt.Fprintf(&b, "S%d%02X", typ, count)
	fmt.Fprintf(&b, "%0*X", width*2, address)
	for _, d := range data {
		fmt.Fprintf(&b, "%02X", d)
	}
	fmt.Fprintf(&b, "%02X", checksum(count, address, width, data))
	return b.String(), nil
}

// Encode converts a flat byte image at a base load address into an
// S-record stream: an S0 header carrying the image name, data records
// sized to the image's address range, and the matching start-address
// record. Each record is CRLF-terminated. The flash-writer end-of-block
// line ("." + CR) is a command payload concern and is not appended here.
func Encode(name string, data []byte, base uint32) ([]byte, error) {
	highest := base
	if len(data) > 0 {
		highest = base + uint32(len(data)) - 1
		if highest < base {
			return nil, fmt.Errorf("image of %d bytes at 0x%X overflows the 32-bit address space", len(data), base)
		}
	}
	dataType, startType := typesFor(highest)

	var out strings.Builder

	header, err := formatRecord(0, 0, []byte(name))
	if err != nil {
		return nil, err
	}
	out.WriteString(header)
	out.WriteString(lineEnding)

	for off := 0; off < len(data); off += DataBytesPerRecord {
		end := off + DataBytesPerRecord
		if end > len(data) {
			end = len(data)
		}
		line, err := formatRecord(dataType, base+uint32(off), data[off:end])
		if err != nil {
			return nil, err
		}
		out.WriteString(line)
		out.WriteString(lineEnding)
	}

	start, err := formatRecord(startType, base, nil)
	if err != nil {
		return nil, err
	}
	out.WriteString(start)
	out.WriteString(lineEnding)

	return []byte(out.String()), nil
}
