package sensor

import (
	"fmt"
	"os"
	"path/filepath"
)

// NewReplayDevice plays back a bridge capture file, one frame per line, as
// fast as frames are requested. The end of the file exhausts the source.
func NewReplayDevice(path string) (*LineDevice[*os.File], error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open replay capture: %w", err)
	}
	return NewLineDevice(path, f), nil
}
