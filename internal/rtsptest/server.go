// Package rtsptest runs an in-process RTSP camera for tests and local runs.
package rtsptest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
	log "github.com/sirupsen/logrus"

	"github.com/easyDong19/RTSP-socket/internal/auth"
	"github.com/easyDong19/RTSP-socket/internal/rtsp"
	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
)

const (
	statusSessionNotFound = 454
	serverRTPPort         = 6970
)

var digestField = regexp.MustCompile(`(\w+)="([^"]*)"`)

// Options shape the camera's behaviour. The zero value serves a single
// H264 track without authentication.
type Options struct {
	// Public is the method list advertised by OPTIONS.
	Public []rtsp.Method
	// Credentials, when set, make DESCRIBE demand a digest.
	Credentials auth.Credentials
	Realm       string
	Nonce       string
	// SessionTimeout is appended to the Session header when non zero.
	SessionTimeout time.Duration
	Media          []*sdp.MediaDescription
}

type Server struct {
	sync.Mutex
	listener    net.Listener
	opts        Options
	description *sdp.SessionDescription
	requests    []*rtsp.Request
	log         *log.Entry
}

// DefaultMedia is a single H264 video track.
func DefaultMedia() []*sdp.MediaDescription {
	return []*sdp.MediaDescription{
		{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: 0},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{"96"},
			},
			Attributes: []sdp.Attribute{
				{Key: "rtpmap", Value: "96 H264/90000"},
				{Key: "control", Value: "trackID=1"},
			},
		},
	}
}

// NewServer listens on a loopback port. Call Start to accept connections.
func NewServer(opts Options) (*Server, error) {
	if len(opts.Public) == 0 {
		opts.Public = rtsp.Methods
	}
	if opts.Realm == "" {
		opts.Realm = "rtsptest"
	}
	if opts.Nonce == "" {
		opts.Nonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if len(opts.Media) == 0 {
		opts.Media = DefaultMedia()
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen on loopback: %w", err)
	}

	s := &Server{
		listener: listener,
		opts:     opts,
		log:      log.WithField("component", "rtsptest"),
		description: &sdp.SessionDescription{
			Version: 0,
			Origin: sdp.Origin{
				Username:       "-",
				SessionID:      0,
				SessionVersion: 0,
				NetworkType:    "IN",
				AddressType:    "IP4",
				UnicastAddress: "127.0.0.1",
			},
			SessionName: "rtsptest",
			ConnectionInformation: &sdp.ConnectionInformation{
				NetworkType: "IN",
				AddressType: "IP4",
				Address:     &sdp.Address{Address: "0.0.0.0"},
			},
			TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{}}},
			Attributes: []sdp.Attribute{
				{Key: "range", Value: "npt=now-"},
				{Key: "control", Value: "*"},
			},
		},
	}
	s.description.MediaDescriptions = opts.Media
	return s, nil
}

// Addr is the address the camera listens on.
func (s *Server) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Endpoint addresses path on this camera.
func (s *Server) Endpoint(path string) rtsp.Endpoint {
	addr := s.Addr()
	return rtsp.Endpoint{Host: addr.IP.String(), Port: addr.Port, Path: path}
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []*rtsp.Request {
	s.Lock()
	defer s.Unlock()
	return append([]*rtsp.Request(nil), s.requests...)
}

// Methods returns the method of every request received so far.
func (s *Server) Methods() []rtsp.Method {
	var methods []rtsp.Method
	for _, r := range s.Requests() {
		methods = append(methods, r.Method)
	}
	return methods
}

// Start accepts connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		nc, err := s.listener.Accept()
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("failed to accept connection: %w", err)
		default:
			go s.handle(ctx, nc)
		}
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// conn is the per connection session state.
type conn struct {
	session string
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	go func() {
		<-ctx.Done()
		nc.Close()
	}()

	c := &conn{}
	br := bufio.NewReader(nc)
	for {
		request, err := rtsp.ReadRequest(br)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.log.WithError(err).Debug("connection finished")
			}
			return
		}
		s.Lock()
		s.requests = append(s.requests, request)
		s.Unlock()

		var res *rtsp.Response
		switch request.Method {
		case rtsp.MethodOptions:
			res = s.handleOptions(request)
		case rtsp.MethodDescribe:
			res = s.handleDescribe(request)
		case rtsp.MethodSetup:
			res = s.handleSetup(request, c)
		case rtsp.MethodPlay:
			res = s.handleSession(request, c, http.Header{"Range": {"npt=0.000-"}})
		case rtsp.MethodPause, rtsp.MethodGetParameter:
			res = s.handleSession(request, c, nil)
		case rtsp.MethodTeardown:
			res = s.handleSession(request, c, nil)
			if res.OK() {
				c.session = ""
			}
		default:
			res = s.handleUnsupportedMethod(request)
		}

		if err := res.Write(nc); err != nil {
			s.log.WithError(err).Warn("failed to write response")
			return
		}
	}
}

func (s *Server) supports(m rtsp.Method) bool {
	for _, p := range s.opts.Public {
		if p == m {
			return true
		}
	}
	return false
}

func (s *Server) handleOptions(request *rtsp.Request) *rtsp.Response {
	public := make([]string, 0, len(s.opts.Public))
	for _, m := range s.opts.Public {
		public = append(public, m.String())
	}
	return reply(request, http.StatusOK, http.Header{"Public": {strings.Join(public, ", ")}}, nil)
}

func (s *Server) handleDescribe(request *rtsp.Request) *rtsp.Response {
	if !s.supports(rtsp.MethodDescribe) {
		return s.handleUnsupportedMethod(request)
	}
	if !s.opts.Credentials.Empty() && !s.authorized(request) {
		challenge := fmt.Sprintf(`Digest realm="%s", nonce="%s", stale="FALSE"`, s.opts.Realm, s.opts.Nonce)
		return reply(request, http.StatusUnauthorized, http.Header{"WWW-Authenticate": {challenge}}, nil)
	}

	body, err := s.description.Marshal()
	if err != nil {
		return reply(request, http.StatusInternalServerError, nil, nil)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/sdp")
	header.Set("Content-Base", request.URL+"/")
	return reply(request, http.StatusOK, header, body)
}

// authorized checks the digest response against the configured
// credentials, using the uri the client signed.
func (s *Server) authorized(request *rtsp.Request) bool {
	value, ok := strings.CutPrefix(request.Authorization, "Digest ")
	if !ok {
		return false
	}
	fields := map[string]string{}
	for _, m := range digestField.FindAllStringSubmatch(value, -1) {
		fields[m[1]] = m[2]
	}
	if fields["username"] != s.opts.Credentials.Username || fields["nonce"] != s.opts.Nonce {
		return false
	}
	expected := auth.Response(s.opts.Credentials.Username, s.opts.Realm, s.opts.Credentials.Password,
		request.Method.String(), fields["uri"], s.opts.Nonce)
	return fields["response"] == expected
}

func (s *Server) handleSetup(request *rtsp.Request, c *conn) *rtsp.Response {
	if !s.supports(rtsp.MethodSetup) {
		return s.handleUnsupportedMethod(request)
	}
	value := request.Get("Transport")
	if value == "" {
		return reply(request, transport.UnsupportedTransportCode, nil, nil)
	}
	ts, err := transport.Parse([]string{value})
	switch {
	case errors.Is(err, transport.ErrUnsupportedTransport):
		return reply(request, transport.UnsupportedTransportCode, nil, nil)
	case err != nil:
		return reply(request, http.StatusBadRequest, nil, nil)
	}

	requested := ts.Options()[0]
	params := append([]transport.Parameter{}, requested.Parameters()...)
	params = append(params, transport.ServerPort{serverRTPPort, serverRTPPort + 1})
	echo := transport.NewOption(requested.Profile(), requested.Delivery(), params...)

	if c.session == "" {
		c.session = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	session := c.session
	if s.opts.SessionTimeout > 0 {
		session = fmt.Sprintf("%s;timeout=%d", session, int(s.opts.SessionTimeout.Seconds()))
	}

	header := http.Header{}
	header.Set("Session", session)
	header.Set("Transport", echo.String())
	return reply(request, http.StatusOK, header, nil)
}

// handleSession answers the methods that operate on an established
// session.
func (s *Server) handleSession(request *rtsp.Request, c *conn, extra http.Header) *rtsp.Response {
	if !s.supports(request.Method) {
		return s.handleUnsupportedMethod(request)
	}
	if c.session == "" || request.Get("Session") != c.session {
		return reply(request, statusSessionNotFound, nil, nil)
	}
	header := http.Header{}
	for k, v := range extra {
		header[k] = v
	}
	header.Set("Session", c.session)
	return reply(request, http.StatusOK, header, nil)
}

func (s *Server) handleUnsupportedMethod(request *rtsp.Request) *rtsp.Response {
	allow := make([]string, 0, len(s.opts.Public))
	for _, m := range s.opts.Public {
		allow = append(allow, m.String())
	}
	return reply(request, http.StatusMethodNotAllowed, http.Header{"Allow": {strings.Join(allow, ", ")}}, nil)
}

func reply(request *rtsp.Request, code int, header http.Header, body []byte) *rtsp.Response {
	message := http.StatusText(code)
	switch code {
	case statusSessionNotFound:
		message = "Session Not Found"
	case transport.UnsupportedTransportCode:
		message = transport.UnsupportedTransportMessage
	}
	return &rtsp.Response{
		Version:  rtsp.Version,
		Code:     code,
		Message:  message,
		Sequence: fmt.Sprint(request.Sequence),
		Header:   header,
		Body:     body,
	}
}
