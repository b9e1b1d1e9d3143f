// Package firmware defines the firmware-image descriptors a recovery
// session programs into persistent storage, and their cross-field
// validation rules.
package firmware

import (
	"fmt"
	"os"
)

// Target identifies the persistent storage an image is programmed into.
type Target string

// Storage targets with different addressing models: QSPI uses a flat flash
// address, eMMC a partition plus start sector.
const (
	TargetQSPI Target = "qspi"
	TargetEMMC Target = "emmc"
)

// Format identifies the wire representation of an image.
type Format string

const (
	// FormatSRec streams the image as ASCII S-record lines.
	FormatSRec Format = "srec"

	// FormatBin streams the image bytes unchanged.
	FormatBin Format = "bin"
)

// eMMC hardware partition indexes accepted by the flash writer.
const (
	PartitionUser  = 0
	PartitionBoot1 = 1
	PartitionBoot2 = 2
)

// Image describes one firmware image to program. Validate it once before
// use; a validated Image is immutable apart from the lazily loaded bytes.
type Image struct {
	// Name identifies the image in reports and errors.
	Name string

	// Path is the image file on disk.
	Path string

	Target Target
	Format Format

	// FlashAddress is the QSPI save address. Required for QSPI targets.
	FlashAddress uint32

	// ProgramAddress is the load address the agent programs the image
	// from. Address 0 is a legal program top address.
	ProgramAddress uint32

	// Partition and StartSector locate eMMC writes. Required for eMMC.
	Partition   int
	StartSector uint32

	data   []byte
	loaded bool
}

// Validate checks the cross-field invariants. It must pass before the
// image is handed to a session.
func (img *Image) Validate() error {
	if img.Name == "" {
		return &ValidationError{Image: img.Path, Reason: "image name is required"}
	}
	if img.Path == "" {
		return &ValidationError{Image: img.Name, Reason: "image path is required"}
	}

	switch img.Format {
	case FormatSRec:
		// Program top address 0 is a legal load address (the usual fip
		// layout programs from H'0), so no zero-value check is possible.
	case FormatBin:
	default:
		return &ValidationError{Image: img.Name, Reason: fmt.Sprintf("unknown format %q", img.Format)}
	}

	switch img.Target {
	case TargetQSPI:
		// Flash address 0 is a legal QSPI save address (boot area), so no
		// zero-value check is possible here.
	case TargetEMMC:
		if img.Partition < PartitionUser || img.Partition > PartitionBoot2 {
			return &ValidationError{Image: img.Name, Reason: fmt.Sprintf("emmc partition must be 0, 1 or 2, got %d", img.Partition)}
		}
		if img.StartSector == 0 {
			return &ValidationError{Image: img.Name, Reason: "emmc target requires a start sector"}
		}
	default:
		return &ValidationError{Image: img.Name, Reason: fmt.Sprintf("unknown target %q", img.Target)}
	}

	return nil
}

// Bytes returns the image contents, reading the file on first use only.
func (img *Image) Bytes() ([]byte, error) {
	if img.loaded {
		return img.data, nil
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", img.Name, err)
	}
	img.data = data
	img.loaded = true
	return img.data, nil
}

// SetBytes injects image contents directly, bypassing the file read.
// Used by tests and by callers that already hold the image in memory.
func (img *Image) SetBytes(data []byte) {
	img.data = data
	img.loaded = true
}

// ValidationError reports an image that fails its cross-field invariants.
type ValidationError struct {
	Image  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid firmware image %s: %s", e.Image, e.Reason)
}
