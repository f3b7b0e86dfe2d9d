package sink

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/smazurov/camstream/internal/engine"
)

func TestUDPDescription(t *testing.T) {
	u := UDP{Host: "10.0.0.2", Port: 5600}
	want := "queue ! udpsink host=10.0.0.2 port=5600 sync=false"
	if got := u.Description(); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
	if _, err := engine.ParseChain(u.Description()); err != nil {
		t.Errorf("description does not parse: %v", err)
	}
	if err := engine.NewStub().Validate(u.Description()); err != nil {
		t.Errorf("stub rejects description: %v", err)
	}
	if got := u.Name(); got != "udp-5600" {
		t.Errorf("Name() = %q, want udp-5600", got)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     UDP
		wantErr  error
	}{
		{"udp://10.0.0.2:5600", UDP{Host: "10.0.0.2", Port: 5600}, nil},
		{"udp://gcs.local:5601", UDP{Host: "gcs.local", Port: 5601}, nil},
		{"udp://[::1]:5600", UDP{Host: "::1", Port: 5600}, nil},
		{"rtsp://10.0.0.2:8554/cam", UDP{}, ErrUnsupportedKind},
		{"udp://10.0.0.2", UDP{}, ErrInvalidEndpoint},
		{"udp://10.0.0.2:0", UDP{}, ErrInvalidEndpoint},
		{"udp://10.0.0.2:70000", UDP{}, ErrInvalidEndpoint},
		{"udp://:5600", UDP{}, ErrInvalidEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := ParseEndpoint(tt.endpoint)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEndpoint() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseEndpoint() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEndpointRoundTrip(t *testing.T) {
	u := UDP{Host: "::1", Port: 5600}
	got, err := ParseEndpoint(u.Endpoint())
	if err != nil {
		t.Fatalf("ParseEndpoint(%q) error = %v", u.Endpoint(), err)
	}
	if got != u {
		t.Errorf("got %+v, want %+v", got, u)
	}
}

func marshal(t *testing.T, pt uint8, seq uint16, payload []byte) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 3000,
			SSRC:           0xCAFE,
		},
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return buf
}

func TestInspect(t *testing.T) {
	if _, err := Inspect(marshal(t, 96, 1, []byte{0x41})); err != nil {
		t.Errorf("Inspect(pt 96) error = %v", err)
	}
	if _, err := Inspect(marshal(t, 97, 1, []byte{0x41})); !errors.Is(err, ErrPayloadType) {
		t.Errorf("Inspect(pt 97) error = %v, want ErrPayloadType", err)
	}
	if _, err := Inspect([]byte{0x80}); err == nil {
		t.Error("Inspect(short) expected error")
	}
}

func TestIsKeyframe(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"empty", nil, false},
		{"idr", []byte{0x65}, true},
		{"sps", []byte{0x67}, true},
		{"pps", []byte{0x68}, true},
		{"p-frame", []byte{0x41}, false},
		{"fu-a idr start", []byte{0x7C, 0x85}, true},
		{"fu-a idr middle", []byte{0x7C, 0x05}, false},
		{"fu-a p-frame start", []byte{0x7C, 0x81}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKeyframe(tt.payload); got != tt.want {
				t.Errorf("IsKeyframe(%x) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestProbe(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	defer conn.Close()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer sender.Close()

	datagrams := [][]byte{
		marshal(t, 96, 10, []byte{0x67, 0x42}),
		marshal(t, 97, 11, []byte{0x41}),
		marshal(t, 96, 11, []byte{0x41, 0x00}),
		marshal(t, 96, 14, []byte{0x41, 0x00, 0x00}),
	}
	for _, d := range datagrams {
		if _, err := sender.Write(d); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	report, err := Probe(ctx, conn, 3)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if report.Packets != 3 || report.Invalid != 1 {
		t.Errorf("packets = %d invalid = %d, want 3 and 1", report.Packets, report.Invalid)
	}
	if report.SSRC != 0xCAFE || report.PayloadType != 96 {
		t.Errorf("ssrc = %x pt = %d", report.SSRC, report.PayloadType)
	}
	if report.Lost != 2 {
		t.Errorf("lost = %d, want 2", report.Lost)
	}
	if report.Keyframes != 1 {
		t.Errorf("keyframes = %d, want 1", report.Keyframes)
	}
	if report.Bytes != 7 {
		t.Errorf("bytes = %d, want 7", report.Bytes)
	}
}

func TestProbeHonorsContext(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Probe(ctx, conn, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Probe() error = %v, want deadline exceeded", err)
	}
}
