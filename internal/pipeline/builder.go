// Package pipeline turns stream descriptors into gst-launch descriptions
// and parsed graphs.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/video"
)

// template holds the elements between v4l2src and the sink tee for one
// encode. {caps} is completed with size and rate.
type template struct {
	pre     []string
	caps    string
	payload string
}

// templates is keyed by encode. MJPG has no jpegparse: its caps break
// negotiation with rtpjpegpay.
var templates = map[video.Encode]template{
	video.EncodeH264: {
		pre:     []string{"h264parse"},
		caps:    "video/x-h264,stream-format=avc,alignment=au",
		payload: "rtph264pay aggregate-mode=zero-latency config-interval=10 pt=96",
	},
	video.EncodeYUYV: {
		pre:     []string{"videoconvert"},
		caps:    "video/x-raw,format=I420",
		payload: "rtpvrawpay pt=96",
	},
	video.EncodeMJPG: {
		caps:    "image/jpeg",
		payload: "rtpjpegpay pt=96",
	},
}

// Build returns the gst-launch description for a stream. It is pure: the
// same id and descriptor always yield the same text.
func Build(id string, desc video.StreamDescriptor) (string, error) {
	cfg, ok := desc.Configuration.(video.VideoCapture)
	if !ok {
		if p, isPtr := desc.Configuration.(*video.VideoCapture); isPtr && p != nil {
			cfg, ok = *p, true
		}
	}
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnsupportedConfiguration, desc.Configuration)
	}

	local, ok := desc.Source.(*video.Local)
	if !ok || local == nil {
		return "", fmt.Errorf("%w: %T", ErrUnsupportedSource, desc.Source)
	}

	tmpl, ok := templates[cfg.Encode]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, cfg.Encode)
	}

	elements := make([]string, 0, 6)
	elements = append(elements, fmt.Sprintf("v4l2src device=%s do-timestamp=false", local.DevicePath))
	elements = append(elements, tmpl.pre...)
	elements = append(elements, fmt.Sprintf("capsfilter name=%s caps=%s,width=%d,height=%d,framerate=%d/%d",
		FilterName(id), tmpl.caps, cfg.Width, cfg.Height,
		cfg.FrameInterval.Denominator, cfg.FrameInterval.Numerator))
	elements = append(elements, tmpl.payload)
	elements = append(elements, fmt.Sprintf("tee name=%s allow-not-linked=true", SinkTeeName(id)))

	return strings.Join(elements, " ! "), nil
}

// Builder constructs parsed graphs through an engine.
type Builder struct {
	Engine engine.Engine
}

// NewBuilder returns a Builder using eng.
func NewBuilder(eng engine.Engine) *Builder {
	return &Builder{Engine: eng}
}

// Construct builds the description and parses it into a graph. The graph is
// not started.
func (b *Builder) Construct(id string, desc video.StreamDescriptor) (engine.Graph, error) {
	description, err := Build(id, desc)
	if err != nil {
		return nil, err
	}

	logging.GetLogger("pipeline").Debug("Pipeline description", "stream_id", id, "description", description)

	graph, err := b.Engine.Parse(description)
	if err != nil {
		return nil, &ConstructionError{Description: description, Err: err}
	}
	return graph, nil
}
