package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/video"
)

func descriptor(encode video.Encode) video.StreamDescriptor {
	return video.StreamDescriptor{
		Name:   "cam",
		Source: &video.Local{Name: "cam", DevicePath: "/dev/video0"},
		Configuration: video.VideoCapture{
			Encode:        encode,
			Width:         1920,
			Height:        1080,
			FrameInterval: video.FrameInterval{Numerator: 1, Denominator: 30},
		},
	}
}

func TestBuildTemplates(t *testing.T) {
	const id = "abc"
	tests := []struct {
		encode video.Encode
		want   string
	}{
		{
			encode: video.EncodeH264,
			want: "v4l2src device=/dev/video0 do-timestamp=false" +
				" ! h264parse" +
				" ! capsfilter name=filter-abc caps=video/x-h264,stream-format=avc,alignment=au,width=1920,height=1080,framerate=30/1" +
				" ! rtph264pay aggregate-mode=zero-latency config-interval=10 pt=96" +
				" ! tee name=sink-tee-abc allow-not-linked=true",
		},
		{
			encode: video.EncodeYUYV,
			want: "v4l2src device=/dev/video0 do-timestamp=false" +
				" ! videoconvert" +
				" ! capsfilter name=filter-abc caps=video/x-raw,format=I420,width=1920,height=1080,framerate=30/1" +
				" ! rtpvrawpay pt=96" +
				" ! tee name=sink-tee-abc allow-not-linked=true",
		},
		{
			encode: video.EncodeMJPG,
			want: "v4l2src device=/dev/video0 do-timestamp=false" +
				" ! capsfilter name=filter-abc caps=image/jpeg,width=1920,height=1080,framerate=30/1" +
				" ! rtpjpegpay pt=96" +
				" ! tee name=sink-tee-abc allow-not-linked=true",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.encode), func(t *testing.T) {
			got, err := Build(id, descriptor(tt.encode))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestBuildH264Properties(t *testing.T) {
	desc := descriptor(video.EncodeH264)
	desc.Configuration = video.VideoCapture{
		Encode:        video.EncodeH264,
		Width:         1920,
		Height:        1080,
		FrameInterval: video.FrameInterval{Numerator: 30, Denominator: 1},
	}
	got, err := Build("id-1", desc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, want := range []string{"device=/dev/video0", "width=1920,height=1080,framerate=1/30", "config-interval=10", "pt=96"} {
		if !strings.Contains(got, want) {
			t.Errorf("description missing %q: %s", want, got)
		}
	}
}

func TestBuildFramerateIsInverseOfInterval(t *testing.T) {
	desc := descriptor(video.EncodeYUYV)
	desc.Configuration = video.VideoCapture{
		Encode:        video.EncodeYUYV,
		Width:         640,
		Height:        480,
		FrameInterval: video.FrameInterval{Numerator: 1001, Denominator: 30000},
	}
	got, err := Build("x", desc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(got, "framerate=30000/1001") {
		t.Errorf("expected framerate=30000/1001 in %s", got)
	}
}

func TestBuildMJPGHasNoParsers(t *testing.T) {
	got, err := Build("m", descriptor(video.EncodeMJPG))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, absent := range []string{"h264parse", "jpegparse"} {
		if strings.Contains(got, absent) {
			t.Errorf("MJPG description contains %s: %s", absent, got)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, _ := Build("same", descriptor(video.EncodeH264))
	b, _ := Build("same", descriptor(video.EncodeH264))
	if a != b {
		t.Errorf("descriptions differ:\n%s\n%s", a, b)
	}
}

func TestBuildNamesUniquePerID(t *testing.T) {
	a, _ := Build("one", descriptor(video.EncodeH264))
	b, _ := Build("two", descriptor(video.EncodeH264))

	namesOf := func(description string) []string {
		elements, err := engine.ParseChain(description)
		if err != nil {
			t.Fatalf("ParseChain() error = %v", err)
		}
		var names []string
		for _, el := range elements {
			if n := el.Name(); n != "" {
				names = append(names, n)
			}
		}
		return names
	}

	seen := map[string]bool{}
	for _, n := range append(namesOf(a), namesOf(b)...) {
		if seen[n] {
			t.Errorf("element name %q appears in both descriptions", n)
		}
		seen[n] = true
	}
}

func TestBuildExactlyOneFilterAndTee(t *testing.T) {
	for _, encode := range []video.Encode{video.EncodeH264, video.EncodeYUYV, video.EncodeMJPG} {
		got, _ := Build("q", descriptor(encode))
		if n := strings.Count(got, "name=filter-q "); n != 1 {
			t.Errorf("%s: %d filters", encode, n)
		}
		if n := strings.Count(got, "name=sink-tee-q "); n != 1 {
			t.Errorf("%s: %d tees", encode, n)
		}
		if !strings.Contains(got, "allow-not-linked=true") {
			t.Errorf("%s: tee must allow unlinked pads", encode)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	redirect := descriptor(video.EncodeH264)
	redirect.Configuration = video.RedirectCapture{}

	remote := descriptor(video.EncodeH264)
	remote.Source = nil

	unknown := descriptor(video.UnknownEncode("NV12"))

	tests := []struct {
		name string
		desc video.StreamDescriptor
		want error
	}{
		{"redirect configuration", redirect, ErrUnsupportedConfiguration},
		{"non-local source", remote, ErrUnsupportedSource},
		{"unknown encode", unknown, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("e", tt.desc)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConstructParsesWithoutStarting(t *testing.T) {
	stub := engine.NewStub()
	b := NewBuilder(stub)

	g, err := b.Construct("abc", descriptor(video.EncodeH264))
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}
	sg := stub.Last()
	if sg == nil || sg.Description() != g.Description() {
		t.Fatal("graph was not parsed through the engine")
	}
	if sg.Plays() != 0 {
		t.Error("Construct must not start the graph")
	}
	if !sg.HasElement(FilterName("abc")) || !sg.HasElement(SinkTeeName("abc")) {
		t.Error("graph lacks the named filter or tee")
	}
}

func TestConstructEngineFailure(t *testing.T) {
	stub := engine.NewStub()
	stub.ParseErr = errors.New("no element \"v4l2src\"")
	b := NewBuilder(stub)

	_, err := b.Construct("abc", descriptor(video.EncodeMJPG))
	var cerr *ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Construct() error = %v, want *ConstructionError", err)
	}
	if !strings.HasPrefix(cerr.Description, "v4l2src device=/dev/video0") {
		t.Errorf("ConstructionError.Description = %q", cerr.Description)
	}
}

func TestConstructValidationFailsBeforeEngine(t *testing.T) {
	stub := engine.NewStub()
	b := NewBuilder(stub)

	desc := descriptor(video.EncodeH264)
	desc.Configuration = video.RedirectCapture{}
	if _, err := b.Construct("abc", desc); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Errorf("Construct() error = %v", err)
	}
	if len(stub.Graphs()) != 0 {
		t.Error("engine must not be called for invalid descriptors")
	}
}
