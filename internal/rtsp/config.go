package rtsp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/easyDong19/RTSP-socket/internal/auth"
	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
)

const (
	DefaultPort    = 554
	DefaultTimeout = 10 * time.Second
)

// Endpoint identifies the camera resource every request targets.
type Endpoint struct {
	Host string
	Port int
	Path string
}

// Address is the host:port the control connection is dialed on.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.port()))
}

// URI is the resource identifier used in request lines and digests.
func (e Endpoint) URI() string {
	path := strings.TrimPrefix(e.Path, "/")
	if path == "" {
		return "rtsp://" + e.Address()
	}
	return "rtsp://" + e.Address() + "/" + path
}

func (e Endpoint) port() int {
	if e.Port == 0 {
		return DefaultPort
	}
	return e.Port
}

type Config struct {
	Endpoint    Endpoint
	Credentials auth.Credentials
	Delivery    transport.Delivery
	// RTPPort and RTCPPort are the client ports offered in SETUP.
	RTPPort  int
	RTCPPort int
	// Timeout bounds every round trip on the control connection.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Endpoint.Port == 0 {
		c.Endpoint.Port = DefaultPort
	}
	if c.Delivery == "" {
		c.Delivery = transport.DeliveryUnicast
	}
	if c.RTCPPort == 0 && c.RTPPort != 0 {
		c.RTCPPort = c.RTPPort + 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.Endpoint.Host == "" {
		return errors.New("invalid config: missing camera host")
	}
	if c.Endpoint.Port < 0 || c.Endpoint.Port > 65535 {
		return fmt.Errorf("invalid config: camera port %d", c.Endpoint.Port)
	}
	if c.Delivery != transport.DeliveryUnicast && c.Delivery != transport.DeliveryMulticast {
		return fmt.Errorf("invalid config: delivery %q", c.Delivery)
	}
	if c.RTPPort <= 0 || c.RTPPort > 65535 || c.RTCPPort <= 0 || c.RTCPPort > 65535 {
		return fmt.Errorf("invalid config: client port pair %d-%d", c.RTPPort, c.RTCPPort)
	}
	return nil
}
