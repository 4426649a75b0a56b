package assets

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const spirvMagic = 0x07230203

// ShaderLoader reads compiled SPIR-V. The bytes are handed to the device
// untouched, only the header is checked here.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if err := checkSPIRV(buf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func checkSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("spir-v size %d is not a positive multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("bad spir-v magic %#x", magic)
	}
	return nil
}
