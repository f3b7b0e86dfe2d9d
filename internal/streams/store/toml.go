package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camstream/internal/streams"
	"github.com/smazurov/camstream/internal/video"
)

const currentVersion = 1

// Source and configuration kinds as written in the file.
const (
	SourceLocal = "local"

	ConfigurationVideo    = "video"
	ConfigurationRedirect = "redirect"
)

// file is the streams configuration file layout. Streams are an array of
// tables so their order survives a round trip.
type file struct {
	Version int            `toml:"version"`
	Streams []streamRecord `toml:"streams"`
}

type streamRecord struct {
	Name          string              `toml:"name"`
	Endpoints     []string            `toml:"endpoints,omitempty"`
	Source        sourceRecord        `toml:"source"`
	Configuration configurationRecord `toml:"configuration"`
}

type sourceRecord struct {
	Kind       string `toml:"kind"`
	Name       string `toml:"name,omitempty"`
	DevicePath string `toml:"device_path,omitempty"`
}

type configurationRecord struct {
	Kind          string               `toml:"kind"`
	Encode        string               `toml:"encode,omitempty"`
	Width         uint32               `toml:"width,omitempty"`
	Height        uint32               `toml:"height,omitempty"`
	FrameInterval *video.FrameInterval `toml:"frame_interval,omitempty"`
}

// TOML stores stream descriptors in a TOML file.
type TOML struct {
	path string
	mu   sync.Mutex
}

var _ streams.Store = (*TOML)(nil)

// NewTOML creates a new TOML-based store.
func NewTOML(path string) *TOML {
	if path == "" {
		path = "streams.toml"
	}
	return &TOML{path: path}
}

// Path returns the file backing the store.
func (s *TOML) Path() string { return s.path }

// Load reads the descriptors in file order. A missing file yields none.
func (s *TOML) Load() ([]video.StreamDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read streams config: %w", err)
	}
	return Decode(data)
}

// Save replaces the file with descs.
func (s *TOML) Save(descs []video.StreamDescriptor) error {
	data, err := Encode(descs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file.
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write streams config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write streams config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write streams config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write streams config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write streams config: %w", err)
	}
	return nil
}

// Decode parses a streams file.
func Decode(data []byte) ([]video.StreamDescriptor, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse streams config: %w", err)
	}
	if f.Version > currentVersion {
		return nil, fmt.Errorf("unsupported streams config version %d", f.Version)
	}

	descs := make([]video.StreamDescriptor, 0, len(f.Streams))
	for i, rec := range f.Streams {
		desc, err := rec.descriptor()
		if err != nil {
			return nil, fmt.Errorf("stream %d (%q): %w", i, rec.Name, err)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// Encode renders descriptors as a streams file.
func Encode(descs []video.StreamDescriptor) ([]byte, error) {
	f := file{Version: currentVersion, Streams: make([]streamRecord, 0, len(descs))}
	for i, desc := range descs {
		rec, err := record(desc)
		if err != nil {
			return nil, fmt.Errorf("stream %d (%q): %w", i, desc.Name, err)
		}
		f.Streams = append(f.Streams, rec)
	}

	data, err := toml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal streams config: %w", err)
	}
	return data, nil
}

func (rec streamRecord) descriptor() (video.StreamDescriptor, error) {
	desc := video.StreamDescriptor{Name: rec.Name, Endpoints: rec.Endpoints}

	switch rec.Source.Kind {
	case SourceLocal:
		if rec.Source.DevicePath == "" {
			return desc, errors.New("local source without device_path")
		}
		desc.Source = &video.Local{Name: rec.Source.Name, DevicePath: rec.Source.DevicePath}
	default:
		return desc, fmt.Errorf("unknown source kind %q", rec.Source.Kind)
	}

	c := rec.Configuration
	switch c.Kind {
	case ConfigurationVideo:
		if c.FrameInterval == nil {
			return desc, errors.New("video configuration without frame_interval")
		}
		desc.Configuration = video.VideoCapture{
			Encode:        parseEncode(c.Encode),
			Width:         c.Width,
			Height:        c.Height,
			FrameInterval: *c.FrameInterval,
		}
	case ConfigurationRedirect:
		desc.Configuration = video.RedirectCapture{}
	default:
		return desc, fmt.Errorf("unknown configuration kind %q", c.Kind)
	}
	return desc, nil
}

// parseEncode accepts a fourcc or an already wrapped unknown encode.
func parseEncode(s string) video.Encode {
	if strings.HasPrefix(s, "UNKNOWN(") {
		return video.Encode(s)
	}
	return video.EncodeFromFourCC(s)
}

func record(desc video.StreamDescriptor) (streamRecord, error) {
	rec := streamRecord{Name: desc.Name, Endpoints: desc.Endpoints}

	switch src := desc.Source.(type) {
	case *video.Local:
		rec.Source = sourceRecord{Kind: SourceLocal, Name: src.Name, DevicePath: src.DevicePath}
	default:
		return rec, fmt.Errorf("unsupported source %T", desc.Source)
	}

	switch c := desc.Configuration.(type) {
	case video.VideoCapture:
		rec.Configuration = videoRecord(c)
	case *video.VideoCapture:
		rec.Configuration = videoRecord(*c)
	case video.RedirectCapture, *video.RedirectCapture:
		rec.Configuration = configurationRecord{Kind: ConfigurationRedirect}
	default:
		return rec, fmt.Errorf("unsupported configuration %T", desc.Configuration)
	}
	return rec, nil
}

func videoRecord(c video.VideoCapture) configurationRecord {
	interval := c.FrameInterval
	return configurationRecord{
		Kind:          ConfigurationVideo,
		Encode:        string(c.Encode),
		Width:         c.Width,
		Height:        c.Height,
		FrameInterval: &interval,
	}
}
