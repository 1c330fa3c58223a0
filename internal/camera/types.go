package camera

import (
	"context"
	"time"

	"github.com/pion/rtp"

	"github.com/easyDong19/RTSP-socket/internal/rtsp"
)

const (
	// DefaultKeepalive is used when the server sends no session timeout.
	DefaultKeepalive = 50 * time.Second
	DefaultBackoff   = 2 * time.Second

	keepaliveMargin = 10 * time.Second
)

type Service interface {
	Start(ctx context.Context) error
	Close()
}

type Config struct {
	// Name labels logs and metrics, defaults to the resource URI.
	Name string
	RTSP rtsp.Config
	// Keepalive overrides the interval between PLAY refreshes.
	Keepalive time.Duration
	// Receive opens the negotiated client ports on ListenHost and counts
	// the packets the camera delivers.
	Receive    bool
	ListenHost string
	Backoff    time.Duration
	// MaxRestarts stops the runner after that many failed sessions; zero
	// retries forever.
	MaxRestarts int
	// OnPacket, when set, is handed every RTP packet received. Packets of
	// successive sessions are spliced into one continuous stream.
	OnPacket func(packet *rtp.Packet)
}
