// Package sink describes consumer branches hung off a stream's sink tee and
// inspects the RTP they deliver.
package sink

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// PayloadType is the dynamic RTP payload type every stream pipeline uses.
const PayloadType = 96

// Sink errors.
var (
	ErrInvalidEndpoint = errors.New("invalid sink endpoint")
	ErrUnsupportedKind = errors.New("unsupported sink kind")
)

// UDP sends the stream's RTP packets to one host and port.
type UDP struct {
	Host string
	Port int
}

// Description returns the branch linked to the tee's request pad.
func (u UDP) Description() string {
	return fmt.Sprintf("queue ! udpsink host=%s port=%d sync=false", u.Host, u.Port)
}

// Name is the branch name used when the caller does not pick one.
func (u UDP) Name() string {
	return "udp-" + strconv.Itoa(u.Port)
}

// Endpoint returns the udp:// form of the sink.
func (u UDP) Endpoint() string {
	return "udp://" + net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// Validate rejects hosts that would break out of the element properties.
func (u UDP) Validate() error {
	if u.Host == "" || strings.ContainsAny(u.Host, " \t!\"=") {
		return fmt.Errorf("%w: host %q", ErrInvalidEndpoint, u.Host)
	}
	if u.Port < 1 || u.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidEndpoint, u.Port)
	}
	return nil
}

// ParseEndpoint parses an endpoint URL such as udp://10.0.0.2:5600.
func ParseEndpoint(endpoint string) (UDP, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return UDP{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "udp" {
		return UDP{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, u.Scheme)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return UDP{}, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, u.Port())
	}
	sink := UDP{Host: u.Hostname(), Port: port}
	if err := sink.Validate(); err != nil {
		return UDP{}, err
	}
	return sink, nil
}
