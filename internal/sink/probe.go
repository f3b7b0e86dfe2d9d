package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/rtp"

	"github.com/smazurov/camstream/internal/logging"
)

// H.264 NAL unit types carried in RTP payloads (RFC 6184).
const (
	nalTypeIDR  = 5
	nalTypeSPS  = 7
	nalTypePPS  = 8
	nalTypeFUA  = 28
	maxRTPBytes = 1500
)

// ErrPayloadType is returned for packets that do not carry the stream payload type.
var ErrPayloadType = errors.New("unexpected RTP payload type")

// Report summarizes the packets a probe received.
type Report struct {
	Packets     int
	Invalid     int
	SSRC        uint32
	PayloadType uint8
	// Lost counts sequence numbers skipped between consecutive packets.
	Lost      int
	Keyframes int
	Bytes     int
}

// Inspect decodes one datagram and checks its payload type.
func Inspect(buf []byte) (*rtp.Packet, error) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("decode rtp: %w", err)
	}
	if pkt.PayloadType != PayloadType {
		return pkt, fmt.Errorf("%w: %d", ErrPayloadType, pkt.PayloadType)
	}
	return pkt, nil
}

// IsKeyframe reports whether an H.264 RTP payload starts an IDR picture or
// carries parameter sets.
func IsKeyframe(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	switch nal := payload[0] & 0x1F; nal {
	case nalTypeIDR, nalTypeSPS, nalTypePPS:
		return true
	case nalTypeFUA:
		// Start bit set and fragment of an IDR.
		return len(payload) > 1 && payload[1]&0x80 != 0 && payload[1]&0x1F == nalTypeIDR
	default:
		return false
	}
}

// Probe reads RTP from conn until count packets arrived or ctx ends.
func Probe(ctx context.Context, conn net.PacketConn, count int) (Report, error) {
	logger := logging.GetLogger("sink")

	var (
		report  Report
		lastSeq uint16
		started bool
	)
	buf := make([]byte, maxRTPBytes)

	for report.Packets < count {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		deadline := time.Now().Add(200 * time.Millisecond)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return report, err
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return report, err
		}

		pkt, err := Inspect(buf[:n])
		if err != nil {
			report.Invalid++
			logger.Debug("Dropped datagram", "error", err)
			continue
		}

		if started {
			if gap := int(pkt.SequenceNumber - lastSeq - 1); gap > 0 && gap < 1<<15 {
				report.Lost += gap
			}
		} else {
			report.SSRC = pkt.SSRC
			report.PayloadType = pkt.PayloadType
			started = true
		}
		lastSeq = pkt.SequenceNumber

		report.Packets++
		report.Bytes += len(pkt.Payload)
		if IsKeyframe(pkt.Payload) {
			report.Keyframes++
		}
	}
	return report, nil
}
