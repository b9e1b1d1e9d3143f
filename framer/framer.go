// Package framer turns firmware images into their wire representation and
// streams them in bounded chunks so progress can be observed per chunk.
package framer

import (
	"time"

	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/srec"
	"github.com/openbrick/socrescue/transport"
)

// DefaultChunkSize is the per-write block size for payload streaming.
const DefaultChunkSize = 4096

// Progress is a snapshot of an in-flight transfer. It is read-only for
// observers and discarded once the transfer completes.
type Progress struct {
	BytesSent  int
	TotalBytes int
	Elapsed    time.Duration
}

// ProgressFunc observes transfer progress after each chunk. It must not
// block and must not mutate session state.
type ProgressFunc func(Progress)

// EncodePayload produces the wire form of an image: raw bytes for binary
// images, an S-record stream based at the program address for srec images.
func EncodePayload(img *firmware.Image) ([]byte, error) {
	data, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	if img.Format == firmware.FormatSRec {
		return srec.Encode(img.Name, data, img.ProgramAddress)
	}
	return data, nil
}

// WriteChunked streams data over t in chunkSize blocks, reporting progress
// after every chunk. A zero or negative chunkSize uses DefaultChunkSize.
func WriteChunked(t transport.Transport, data []byte, chunkSize int, report ProgressFunc) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	start := time.Now()
	sent := 0
	for sent < len(data) {
		end := sent + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := t.Write(data[sent:end]); err != nil {
			return err
		}
		sent = end
		if report != nil {
			report(Progress{BytesSent: sent, TotalBytes: len(data), Elapsed: time.Since(start)})
		}
	}
	if len(data) == 0 && report != nil {
		report(Progress{Elapsed: time.Since(start)})
	}
	return nil
}

// ProjectedTransferTime estimates the wall time for totalBytes at the
// given baud rate on an 8N1 line (10 bits per byte on the wire).
func ProjectedTransferTime(totalBytes, baud int) time.Duration {
	if baud <= 0 {
		return 0
	}
	bits := int64(totalBytes) * 10
	return time.Duration(bits * int64(time.Second) / int64(baud))
}
