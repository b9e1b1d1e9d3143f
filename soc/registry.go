package soc

import (
	"fmt"
	"sort"

	"github.com/openbrick/socrescue/firmware"
)

var registry = map[string]*Descriptor{}

// Register validates a descriptor and adds it to the registry.
// Registering a family twice is an error.
func Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, dup := registry[d.Family]; dup {
		return &ConfigError{Family: d.Family, Reason: "family registered twice"}
	}
	registry[d.Family] = d
	return nil
}

// Lookup returns the descriptor for a family.
func Lookup(family string) (*Descriptor, error) {
	d, ok := registry[family]
	if !ok {
		return nil, &ConfigError{Family: family, Reason: "unknown device family"}
	}
	return d, nil
}

// Families lists the registered family names, sorted.
func Families() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// renesasRZ builds the descriptor shared by the RZ/G and RZ/V families.
// They boot through the same SCIF download ROM and run the same Flash
// Writer command set; only the family name differs.
func renesasRZ(family string) *Descriptor {
	return &Descriptor{
		Family:      family,
		BootSignal:  "SCIF Download mode",
		AgentBanner: "Flash writer for",
		Prompt:      ">",

		InitialBaud:   115200,
		HighSpeedBaud: 921600,

		SpeedUpCommand: "SUP",
		SpeedUpAck:     "Please change to 921.6Kbps baud rate",
		ProbeCommand:   "H",

		Stage2Terminator: ".\r\n",

		ErasePrompt: "Clear OK?(y/n)",
		EraseAnswer: "y",
		EraseDone:   "Erase Completed",

		FailureMarkers: []string{"ERR", "Error", "Fail"},

		Commands: map[CommandKey]CommandSpec{
			{Target: firmware.TargetQSPI, Format: firmware.FormatSRec}: {
				Name: "XLS2",
				Steps: []PromptStep{
					{Expect: "Program Top Address", Field: FieldProgramAddress},
					{Expect: "Qspi Save Address", Field: FieldFlashAddress},
				},
				SendMarker: "please send ! ('.' & CR stop load)",
				Terminator: ".\r\n",
				Completion: "SAVE SPI-FLASH",
			},
			{Target: firmware.TargetQSPI, Format: firmware.FormatBin}: {
				Name: "XLS3",
				Steps: []PromptStep{
					{Expect: "Program size", Field: FieldImageSize},
					{Expect: "Qspi Save Address", Field: FieldFlashAddress},
				},
				SendMarker: "please send ! (binary)",
				// XLS3 counts the announced byte total itself; no stop line.
				Terminator: "",
				Completion: "SAVE SPI-FLASH",
			},
			{Target: firmware.TargetEMMC, Format: firmware.FormatSRec}: {
				Name: "EM_W",
				Steps: []PromptStep{
					{Expect: "Select area", Field: FieldPartition},
					{Expect: "Please Input Start Address in sector", Field: FieldStartSector},
					{Expect: "Please Input Program Start Address", Field: FieldProgramAddress},
				},
				SendMarker: "please send !",
				Terminator: ".\r\n",
				Completion: "Complete!",
			},
			{Target: firmware.TargetEMMC, Format: firmware.FormatBin}: {
				Name: "EM_WB",
				Steps: []PromptStep{
					{Expect: "Select area", Field: FieldPartition},
					{Expect: "Please Input Start Address in sector", Field: FieldStartSector},
					{Expect: "Please Input Program Start Address", Field: FieldProgramAddress},
				},
				SendMarker: "please send !",
				Terminator: ".\r\n",
				Completion: "Complete!",
			},
		},
	}
}

func init() {
	for _, family := range []string{"rz-g2l", "rz-g2lc", "rz-g2ul", "rz-v2l"} {
		if err := Register(renesasRZ(family)); err != nil {
			panic(fmt.Sprintf("built-in descriptor %s: %v", family, err))
		}
	}
}
