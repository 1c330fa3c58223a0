// Package media receives the RTP and RTCP packets a camera delivers on the
// client ports negotiated by SETUP and hands them to subscribers. Packet
// contents are decoded with pion and never interpreted here.
package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
)

const mtu = 1500

var (
	packetsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "packets_received_total",
		Namespace: "rtsp_socket",
		Help:      "number of media packets received",
	}, []string{"kind"})
	packetErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "packet_errors_total",
		Namespace: "rtsp_socket",
		Help:      "number of datagrams that failed to decode",
	}, []string{"kind"})
)

type Receiver struct {
	sync.Mutex
	rtpConn  net.PacketConn
	rtcpConn net.PacketConn

	rtpSubscribers  map[string]func(packet *rtp.Packet)
	rtcpSubscribers map[string]func(packet rtcp.Packet)

	closeOnce sync.Once
}

// Listen opens UDP sockets for RTP and RTCP on host. A zero port picks an
// ephemeral one.
func Listen(ctx context.Context, host string, rtpPort, rtcpPort int) (*Receiver, error) {
	conf := net.ListenConfig{}
	rtpConn, err := conf.ListenPacket(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(rtpPort)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for RTP on port %d: %w", rtpPort, err)
	}
	rtcpConn, err := conf.ListenPacket(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(rtcpPort)))
	if err != nil {
		_ = rtpConn.Close()
		return nil, fmt.Errorf("failed to listen for RTCP on port %d: %w", rtcpPort, err)
	}

	return &Receiver{
		rtpConn:         rtpConn,
		rtcpConn:        rtcpConn,
		rtpSubscribers:  make(map[string]func(packet *rtp.Packet)),
		rtcpSubscribers: make(map[string]func(packet rtcp.Packet)),
	}, nil
}

// ListenDescriptor opens the client port pair of a negotiated transport.
func ListenDescriptor(ctx context.Context, host string, d transport.Descriptor) (*Receiver, error) {
	if p, err := d.Profile.Protocol(); err != nil || p != transport.ProtocolUDP {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnsupportedTransport, d.Profile)
	}
	return Listen(ctx, host, d.RTPPort(), d.RTCPPort())
}

func (r *Receiver) RTPAddr() net.Addr {
	return r.rtpConn.LocalAddr()
}

func (r *Receiver) RTCPAddr() net.Addr {
	return r.rtcpConn.LocalAddr()
}

// SubscribeRTP registers h for every decoded RTP packet and returns a
// function that removes it. Handlers run on the read loop and must not
// unsubscribe from within the callback.
func (r *Receiver) SubscribeRTP(h func(packet *rtp.Packet)) func() {
	r.Lock()
	defer r.Unlock()
	id := uuid.NewString()
	r.rtpSubscribers[id] = h
	return func() {
		r.Lock()
		defer r.Unlock()
		delete(r.rtpSubscribers, id)
	}
}

func (r *Receiver) SubscribeRTCP(h func(packet rtcp.Packet)) func() {
	r.Lock()
	defer r.Unlock()
	id := uuid.NewString()
	r.rtcpSubscribers[id] = h
	return func() {
		r.Lock()
		defer r.Unlock()
		delete(r.rtcpSubscribers, id)
	}
}

// Run reads both sockets until ctx is done or a read fails. The sockets are
// closed when Run returns.
func (r *Receiver) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-ctx.Done()
		return r.Close()
	})
	group.Go(func() error {
		return r.readLoop(ctx, r.rtpConn, r.handleRTP)
	})
	group.Go(func() error {
		return r.readLoop(ctx, r.rtcpConn, r.handleRTCP)
	})

	return group.Wait()
}

func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = errors.Join(r.rtpConn.Close(), r.rtcpConn.Close())
	})
	return err
}

func (r *Receiver) readLoop(ctx context.Context, conn net.PacketConn, handle func([]byte)) error {
	buf := make([]byte, mtu)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read from %s: %w", conn.LocalAddr(), err)
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload)
	}
}

func (r *Receiver) handleRTP(payload []byte) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(payload); err != nil {
		packetErrors.WithLabelValues("rtp").Inc()
		log.WithError(err).Debug("dropping malformed RTP packet")
		return
	}
	packetsReceived.WithLabelValues("rtp").Inc()

	r.Lock()
	defer r.Unlock()
	for _, h := range r.rtpSubscribers {
		h(packet)
	}
}

func (r *Receiver) handleRTCP(payload []byte) {
	packets, err := rtcp.Unmarshal(payload)
	if err != nil {
		packetErrors.WithLabelValues("rtcp").Inc()
		log.WithError(err).Debug("dropping malformed RTCP packet")
		return
	}
	packetsReceived.WithLabelValues("rtcp").Add(float64(len(packets)))

	r.Lock()
	defer r.Unlock()
	for _, packet := range packets {
		for _, h := range r.rtcpSubscribers {
			h(packet)
		}
	}
}
