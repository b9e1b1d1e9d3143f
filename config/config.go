// Package config loads recovery profiles from YAML files and validates
// them into the engine's data model. The engine trusts values that pass
// here to be type- and range-checked; cross-field image invariants are
// still re-checked at the session boundary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/recovery"
	"github.com/openbrick/socrescue/soc"
)

// Profile is a fully validated recovery configuration.
type Profile struct {
	Target  recovery.Target
	SpeedUp bool
	Stage2  *firmware.Image
	Images  []*firmware.Image
}

// HexUint32 accepts YAML integers or hex strings ("0x11E00" or "11E00").
// Flash-writer documentation quotes addresses in bare hex, so profiles may
// use either form.
type HexUint32 uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HexUint32) UnmarshalYAML(node *yaml.Node) error {
	var asInt uint32
	if err := node.Decode(&asInt); err == nil {
		*h = HexUint32(asInt)
		return nil
	}
	var asStr string
	if err := node.Decode(&asStr); err != nil {
		return fmt.Errorf("address must be an integer or hex string, got %q", node.Value)
	}
	s := strings.TrimPrefix(strings.TrimSpace(asStr), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid hex address %q: %w", asStr, err)
	}
	*h = HexUint32(v)
	return nil
}

type profileYAML struct {
	Family   string `yaml:"family"`
	Port     string `yaml:"port"`
	Baudrate int    `yaml:"baudrate"`
	SpeedUp  *bool  `yaml:"speed_up"`

	FlashWriter struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"flash_writer"`

	Firmware []imageYAML `yaml:"firmware"`
}

type imageYAML struct {
	Name           string    `yaml:"name"`
	Path           string    `yaml:"path"`
	Target         string    `yaml:"target"`
	Format         string    `yaml:"format"`
	FlashAddress   HexUint32 `yaml:"flash_address"`
	ProgramAddress HexUint32 `yaml:"program_address"`
	Partition      *int      `yaml:"partition"`
	StartSector    HexUint32 `yaml:"start_sector"`
}

// Load reads and validates a recovery profile.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(raw)
}

// Parse validates a recovery profile from raw YAML.
func Parse(raw []byte) (*Profile, error) {
	var py profileYAML
	if err := yaml.Unmarshal(raw, &py); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	if py.Family == "" {
		return nil, &soc.ConfigError{Reason: "profile is missing the device family"}
	}
	if _, err := soc.Lookup(py.Family); err != nil {
		return nil, err
	}
	if py.Port == "" {
		return nil, &soc.ConfigError{Family: py.Family, Reason: "profile is missing the serial port"}
	}
	if py.FlashWriter.Path == "" {
		return nil, &soc.ConfigError{Family: py.Family, Reason: "profile is missing the flash_writer path"}
	}

	speedUp := true
	if py.SpeedUp != nil {
		speedUp = *py.SpeedUp
	}

	stage2Name := py.FlashWriter.Name
	if stage2Name == "" {
		stage2Name = "flash-writer"
	}

	p := &Profile{
		Target: recovery.Target{
			Family:   py.Family,
			Endpoint: py.Port,
			Baud:     py.Baudrate,
		},
		SpeedUp: speedUp,
		Stage2: &firmware.Image{
			Name: stage2Name,
			Path: py.FlashWriter.Path,
		},
	}

	for i, iy := range py.Firmware {
		img, err := iy.toImage(i)
		if err != nil {
			return nil, err
		}
		p.Images = append(p.Images, img)
	}
	return p, nil
}

func (iy imageYAML) toImage(index int) (*firmware.Image, error) {
	name := iy.Name
	if name == "" {
		return nil, &soc.ConfigError{Reason: fmt.Sprintf("firmware entry %d has no name", index)}
	}
	img := &firmware.Image{
		Name:           name,
		Path:           iy.Path,
		Target:         firmware.Target(strings.ToLower(iy.Target)),
		Format:         firmware.Format(strings.ToLower(iy.Format)),
		FlashAddress:   uint32(iy.FlashAddress),
		ProgramAddress: uint32(iy.ProgramAddress),
		StartSector:    uint32(iy.StartSector),
	}
	if img.Format == "" {
		img.Format = firmware.FormatBin
	}
	if iy.Partition != nil {
		img.Partition = *iy.Partition
	} else if img.Target == firmware.TargetEMMC {
		img.Partition = firmware.PartitionBoot1
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
