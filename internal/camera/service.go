package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/easyDong19/RTSP-socket/internal/media"
	"github.com/easyDong19/RTSP-socket/internal/rtsp"
)

var (
	cameraErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "camera_errors",
		Namespace: "rtsp_socket",
		Help:      "number of errors the camera has encountered",
	}, []string{"camera"})
	cameraRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "camera_restarts",
		Namespace: "rtsp_socket",
		Help:      "number of camera restarts",
	}, []string{"camera"})
	keepalives = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "camera_keepalives",
		Namespace: "rtsp_socket",
		Help:      "number of PLAY refreshes sent to keep the session alive",
	}, []string{"camera"})
)

type service struct {
	cfg     Config
	log     *log.Entry
	splicer *media.Splicer
	cancel  context.CancelFunc
}

func NewService(cfg Config) Service {
	if cfg.Name == "" {
		cfg.Name = cfg.RTSP.Endpoint.URI()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	s := &service{cfg: cfg, log: log.WithField("camera", cfg.Name)}
	if cfg.OnPacket != nil {
		s.splicer = media.NewSplicer(cfg.OnPacket)
	}
	return s
}

// Start runs sessions against the camera until ctx is cancelled, opening a
// new connection after every failure. Authorization and capability errors
// are returned immediately since retrying cannot fix them.
func (s *service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	restarts := 0
	for {
		err := s.streamToCompletion(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			cameraErrors.WithLabelValues(s.cfg.Name).Inc()
			if fatal(err) {
				return err
			}
			s.log.WithError(err).Warn("camera stream error")
			if s.cfg.MaxRestarts > 0 && restarts >= s.cfg.MaxRestarts {
				return fmt.Errorf("giving up on camera %s after %d restarts: %w", s.cfg.Name, restarts, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.Backoff):
			}
		}
		restarts++
		cameraRestarts.WithLabelValues(s.cfg.Name).Inc()
		s.log.WithField("restarts", restarts).Info("restarting camera session")
	}
}

func (s *service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func fatal(err error) bool {
	return errors.Is(err, rtsp.ErrAuthorization) || errors.Is(err, rtsp.ErrUnsupportedOperation)
}

// streamToCompletion runs one session: describe, setup, play, then keep the
// session alive until ctx ends or a refresh fails. The session is torn
// down before returning.
func (s *service) streamToCompletion(ctx context.Context) error {
	client, err := rtsp.Dial(ctx, s.cfg.RTSP)
	if err != nil {
		return err
	}
	defer client.Close()
	s.log.WithField("capabilities", client.Capabilities()).Info("connected to camera")

	if err := client.Describe(ctx); err != nil {
		return fmt.Errorf("failed to describe %s: %w", client.URI(), err)
	}

	runCtx, stop := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)
	defer func() {
		stop()
		_ = group.Wait()
	}()

	// The client ports are bound before SETUP offers them.
	var receiver *media.Receiver
	if s.cfg.Receive {
		receiver, err = media.ListenDescriptor(ctx, s.cfg.ListenHost, client.Transport())
		if err != nil {
			return fmt.Errorf("failed to open client ports: %w", err)
		}
		defer receiver.Close()
		group.Go(func() error {
			return receiver.Run(gctx)
		})
	}

	if err := client.Setup(ctx); err != nil {
		return fmt.Errorf("failed to setup %s: %w", client.URI(), err)
	}
	defer s.teardown(client)

	if receiver != nil {
		if s.splicer != nil {
			defer receiver.SubscribeRTP(s.splicer.Handler(client.Session()))()
		}
		defer receiver.SubscribeRTCP(func(packet rtcp.Packet) {
			s.log.WithField("ssrc", packet.DestinationSSRC()).Debug("rtcp packet received")
		})()
	}

	if err := client.Play(ctx); err != nil {
		return fmt.Errorf("failed to play %s: %w", client.URI(), err)
	}
	s.log.WithFields(log.Fields{
		"session":   client.Session(),
		"transport": client.Transport().String(),
	}).Info("camera is playing")

	interval := keepaliveInterval(s.cfg.Keepalive, client.SessionTimeout())
	group.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := client.Play(gctx); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("failed to refresh session %s: %w", client.Session(), err)
				}
				keepalives.WithLabelValues(s.cfg.Name).Inc()
			}
		}
	})

	return group.Wait()
}

// teardown releases the session on its own deadline since the run context
// is usually already cancelled.
func (s *service) teardown(client *rtsp.Client) {
	timeout := s.cfg.RTSP.Timeout
	if timeout <= 0 {
		timeout = rtsp.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Teardown(ctx); err != nil {
		s.log.WithError(err).Warn("failed to teardown session")
		return
	}
	s.log.Info("session torn down")
}

func keepaliveInterval(configured, sessionTimeout time.Duration) time.Duration {
	switch {
	case configured > 0:
		return configured
	case sessionTimeout > 2*keepaliveMargin:
		return sessionTimeout - keepaliveMargin
	case sessionTimeout > 0:
		return sessionTimeout / 2
	}
	return DefaultKeepalive
}
