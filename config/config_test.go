package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbrick/socrescue/firmware"
	"github.com/openbrick/socrescue/soc"
)

const fullProfile = `
family: rz-g2l
port: /dev/ttyUSB0
speed_up: false
flash_writer:
  name: flash-writer
  path: Flash_Writer_SCIF_RZG2L.mot
firmware:
  - name: bl2
    path: bl2_bp.srec
    target: qspi
    format: srec
    program_address: 0x11E00
    flash_address: 0
  - name: fip
    path: fip.bin
    target: emmc
    format: bin
    start_sector: "100"
    partition: 1
`

func TestParseFullProfile(t *testing.T) {
	p, err := Parse([]byte(fullProfile))
	require.NoError(t, err)

	assert.Equal(t, "rz-g2l", p.Target.Family)
	assert.Equal(t, "/dev/ttyUSB0", p.Target.Endpoint)
	assert.Zero(t, p.Target.Baud, "unset baudrate defers to the descriptor")
	assert.False(t, p.SpeedUp)

	require.NotNil(t, p.Stage2)
	assert.Equal(t, "flash-writer", p.Stage2.Name)
	assert.Equal(t, "Flash_Writer_SCIF_RZG2L.mot", p.Stage2.Path)

	require.Len(t, p.Images, 2)

	bl2 := p.Images[0]
	assert.Equal(t, firmware.TargetQSPI, bl2.Target)
	assert.Equal(t, firmware.FormatSRec, bl2.Format)
	assert.Equal(t, uint32(0x11E00), bl2.ProgramAddress)
	assert.Equal(t, uint32(0), bl2.FlashAddress)

	fip := p.Images[1]
	assert.Equal(t, firmware.TargetEMMC, fip.Target)
	assert.Equal(t, firmware.FormatBin, fip.Format)
	assert.Equal(t, uint32(0x100), fip.StartSector, "bare hex string addresses")
	assert.Equal(t, 1, fip.Partition)
}

func TestParseDefaults(t *testing.T) {
	p, err := Parse([]byte(`
family: rz-g2l
port: /dev/ttyUSB0
flash_writer:
  path: fw.mot
firmware:
  - name: fip
    path: fip.bin
    target: emmc
    start_sector: 0x100
`))
	require.NoError(t, err)

	assert.True(t, p.SpeedUp, "speed-up defaults on")
	assert.Equal(t, "flash-writer", p.Stage2.Name)

	require.Len(t, p.Images, 1)
	assert.Equal(t, firmware.FormatBin, p.Images[0].Format, "format defaults to bin")
	assert.Equal(t, firmware.PartitionBoot1, p.Images[0].Partition, "eMMC partition defaults to boot1")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "parse profile",
		},
		{
			name:    "missing family",
			yaml:    "port: /dev/ttyUSB0",
			wantErr: "missing the device family",
		},
		{
			name:    "unknown family",
			yaml:    "family: imx8mq\nport: /dev/ttyUSB0",
			wantErr: "unknown device family",
		},
		{
			name:    "missing port",
			yaml:    "family: rz-g2l",
			wantErr: "missing the serial port",
		},
		{
			name:    "missing flash writer",
			yaml:    "family: rz-g2l\nport: /dev/ttyUSB0",
			wantErr: "missing the flash_writer path",
		},
		{
			name: "unnamed firmware entry",
			yaml: `
family: rz-g2l
port: /dev/ttyUSB0
flash_writer: {path: fw.mot}
firmware:
  - path: fip.bin
`,
			wantErr: "entry 0 has no name",
		},
		{
			name: "invalid hex address",
			yaml: `
family: rz-g2l
port: /dev/ttyUSB0
flash_writer: {path: fw.mot}
firmware:
  - name: bl2
    path: bl2.srec
    target: qspi
    format: srec
    program_address: "0xZZZ"
`,
			wantErr: "invalid hex address",
		},
		{
			name: "image fails cross-field checks",
			yaml: `
family: rz-g2l
port: /dev/ttyUSB0
flash_writer: {path: fw.mot}
firmware:
  - name: fip
    path: fip.bin
    target: emmc
`,
			wantErr: "requires a start sector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseConfigErrorType(t *testing.T) {
	_, err := Parse([]byte("port: /dev/ttyUSB0"))
	var cfgErr *soc.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullProfile), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rz-g2l", p.Target.Family)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read profile")
}
