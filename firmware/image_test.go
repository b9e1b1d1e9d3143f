package firmware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQSPIImage() *Image {
	return &Image{
		Name:           "bl2",
		Path:           "bl2.srec",
		Target:         TargetQSPI,
		Format:         FormatSRec,
		ProgramAddress: 0x11E00,
		FlashAddress:   0x0,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Image)
		wantErr string
	}{
		{name: "valid qspi srec", mutate: func(*Image) {}},
		{
			name: "valid emmc bin",
			mutate: func(img *Image) {
				img.Target = TargetEMMC
				img.Format = FormatBin
				img.Partition = PartitionBoot1
				img.StartSector = 1
			},
		},
		{
			name:    "missing name",
			mutate:  func(img *Image) { img.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "missing path",
			mutate:  func(img *Image) { img.Path = "" },
			wantErr: "path is required",
		},
		{
			// The standard RZ/G2L fip layout: programmed from H'0, saved
			// at H'1D200. Address zero is a value, not an unset field.
			name: "srec programmed from address zero",
			mutate: func(img *Image) {
				img.ProgramAddress = 0
				img.FlashAddress = 0x1D200
			},
		},
		{
			name:    "unknown format",
			mutate:  func(img *Image) { img.Format = "elf" },
			wantErr: `unknown format "elf"`,
		},
		{
			name:    "unknown target",
			mutate:  func(img *Image) { img.Target = "nand" },
			wantErr: `unknown target "nand"`,
		},
		{
			name: "emmc partition out of range",
			mutate: func(img *Image) {
				img.Target = TargetEMMC
				img.Partition = 3
				img.StartSector = 1
			},
			wantErr: "partition must be 0, 1 or 2",
		},
		{
			name: "emmc without start sector",
			mutate: func(img *Image) {
				img.Target = TargetEMMC
				img.Partition = PartitionBoot1
				img.StartSector = 0
			},
			wantErr: "requires a start sector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := validQSPIImage()
			tt.mutate(img)
			err := img.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestBytesLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.bin")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	img := &Image{Name: "fw", Path: path, Target: TargetQSPI, Format: FormatBin}
	data, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	// The file is read once; later calls return the cached contents.
	require.NoError(t, os.WriteFile(path, []byte("second"), 0o644))
	data, err = img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)
}

func TestBytesMissingFile(t *testing.T) {
	img := &Image{Name: "fw", Path: "/does/not/exist.bin"}
	_, err := img.Bytes()
	assert.ErrorContains(t, err, "load image fw")
}

func TestSetBytesBypassesFile(t *testing.T) {
	img := &Image{Name: "fw", Path: "/does/not/exist.bin"}
	img.SetBytes([]byte{1, 2, 3})
	data, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}
