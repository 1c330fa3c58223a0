package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/easyDong19/RTSP-socket/internal/auth"
	"github.com/easyDong19/RTSP-socket/internal/camera"
	"github.com/easyDong19/RTSP-socket/internal/rtsp"
	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
)

const (
	appName = "rtsp-socket"
	appDesc = "keeps an RTSP camera session playing"
)

type options struct {
	host      string
	port      int
	path      string
	username  string
	password  string
	rtpPort   int
	rtcpPort  int
	multicast bool
	timeout   string
	keepalive string
	receive   bool
	listen    string
}

func (o options) config() (camera.Config, error) {
	timeout, err := time.ParseDuration(o.timeout)
	if err != nil {
		return camera.Config{}, fmt.Errorf("invalid timeout %q: %w", o.timeout, err)
	}
	var keepalive time.Duration
	if o.keepalive != "" {
		keepalive, err = time.ParseDuration(o.keepalive)
		if err != nil {
			return camera.Config{}, fmt.Errorf("invalid keepalive %q: %w", o.keepalive, err)
		}
	}
	delivery := transport.DeliveryUnicast
	if o.multicast {
		delivery = transport.DeliveryMulticast
	}
	if o.host == "" {
		return camera.Config{}, errors.New("camera host is required")
	}

	return camera.Config{
		RTSP: rtsp.Config{
			Endpoint:    rtsp.Endpoint{Host: o.host, Port: o.port, Path: o.path},
			Credentials: auth.Credentials{Username: o.username, Password: o.password},
			Delivery:    delivery,
			RTPPort:     o.rtpPort,
			RTCPPort:    o.rtcpPort,
			Timeout:     timeout,
		},
		Keepalive:  keepalive,
		Receive:    o.receive,
		ListenHost: o.listen,
	}, nil
}

func main() {
	app := cli.App(appName, appDesc)

	host := app.String(cli.StringOpt{
		Name:   "host",
		Desc:   "camera host name or address",
		EnvVar: "RTSP_HOST",
	})
	port := app.Int(cli.IntOpt{
		Name:   "port",
		Desc:   "camera RTSP port",
		EnvVar: "RTSP_PORT",
		Value:  rtsp.DefaultPort,
	})
	path := app.String(cli.StringOpt{
		Name:   "path",
		Desc:   "stream path on the camera, e.g. ch_100",
		EnvVar: "RTSP_PATH",
	})
	username := app.String(cli.StringOpt{
		Name:   "username",
		Desc:   "digest username",
		EnvVar: "RTSP_USERNAME",
	})
	password := app.String(cli.StringOpt{
		Name:      "password",
		Desc:      "digest password",
		EnvVar:    "RTSP_PASSWORD",
		HideValue: true,
	})
	rtpPort := app.Int(cli.IntOpt{
		Name:   "rtp-port",
		Desc:   "client RTP port offered in SETUP",
		EnvVar: "RTP_PORT",
		Value:  5000,
	})
	rtcpPort := app.Int(cli.IntOpt{
		Name:   "rtcp-port",
		Desc:   "client RTCP port, defaults to the RTP port plus one",
		EnvVar: "RTCP_PORT",
	})
	multicast := app.Bool(cli.BoolOpt{
		Name:   "multicast",
		Desc:   "request multicast delivery",
		EnvVar: "RTSP_MULTICAST",
	})
	timeout := app.String(cli.StringOpt{
		Name:   "timeout",
		Desc:   "timeout of each request",
		EnvVar: "RTSP_TIMEOUT",
		Value:  rtsp.DefaultTimeout.String(),
	})
	keepalive := app.String(cli.StringOpt{
		Name:   "keepalive",
		Desc:   "interval between PLAY refreshes, derived from the session timeout when empty",
		EnvVar: "RTSP_KEEPALIVE",
	})
	receive := app.Bool(cli.BoolOpt{
		Name:   "receive",
		Desc:   "listen on the client ports and count received media packets",
		EnvVar: "RTSP_RECEIVE",
	})
	listen := app.String(cli.StringOpt{
		Name:   "listen",
		Desc:   "address the media ports are opened on",
		EnvVar: "RTSP_LISTEN",
		Value:  "0.0.0.0",
	})
	metricsAddr := app.String(cli.StringOpt{
		Name:   "metrics",
		Desc:   "address to serve prometheus metrics on, disabled when empty",
		EnvVar: "METRICS_ADDR",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "log-level",
		Desc:   "log level",
		EnvVar: "LOG_LEVEL",
		Value:  "info",
	})
	logFile := app.String(cli.StringOpt{
		Name:   "log-file",
		Desc:   "also write rotated logs to this file",
		EnvVar: "LOG_FILE",
	})

	app.Action = func() {
		if err := configureLogging(*logLevel, *logFile); err != nil {
			log.WithError(err).Fatal("failed to configure logging")
		}

		o := options{
			host:      *host,
			port:      *port,
			path:      *path,
			username:  *username,
			password:  *password,
			rtpPort:   *rtpPort,
			rtcpPort:  *rtcpPort,
			multicast: *multicast,
			timeout:   *timeout,
			keepalive: *keepalive,
			receive:   *receive,
			listen:    *listen,
		}
		cfg, err := o.config()
		if err != nil {
			log.WithError(err).Fatal("invalid configuration")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		group, ctx := errgroup.WithContext(ctx)

		if *metricsAddr != "" {
			group.Go(func() error {
				return serveMetrics(ctx, *metricsAddr)
			})
		}

		svc := camera.NewService(cfg)
		group.Go(func() error {
			defer stop()
			return svc.Start(ctx)
		})

		if err := group.Wait(); err != nil {
			log.WithError(err).Fatal("stopped")
		}
		log.Info("stopped")
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("failed to execute application")
	}
}

func configureLogging(level, file string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	if file != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	}
	return nil
}
