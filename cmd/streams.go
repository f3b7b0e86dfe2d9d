package cmd

import (
	"fmt"

	"github.com/smazurov/camstream/internal/streams/store"
	"github.com/smazurov/camstream/internal/video"
)

// loadStreams reads the streams file and keeps the entry called name, or
// every entry when name is empty.
func loadStreams(path, name string) ([]video.StreamDescriptor, error) {
	descs, err := store.NewTOML(path).Load()
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(descs) == 0 {
			return nil, fmt.Errorf("no streams in %s", path)
		}
		return descs, nil
	}
	for _, d := range descs {
		if d.Name == name {
			return []video.StreamDescriptor{d}, nil
		}
	}
	return nil, fmt.Errorf("stream %q not found in %s", name, path)
}
