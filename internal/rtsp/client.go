package rtsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
)

// aLongTimeAgo is a deadline in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Client drives one RTSP session with a camera over a single control
// connection. It is not safe for concurrent use; requests are strictly
// sent one at a time and each waits for its response.
type Client struct {
	conn net.Conn
	br   *bufio.Reader
	cfg  Config
	uri  string
	log  *log.Entry

	auth    *authState
	builder *builder
	caps    CapabilitySet

	state          State
	session        string
	sessionTimeout time.Duration
	media          []Media
	transport      transport.Descriptor
	serverOption   transport.Option

	closed bool
	// broken is the connection failure that left the stream unusable.
	broken error
}

// Dial connects to the configured camera and negotiates its capabilities.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	addr := cfg.Endpoint.Address()
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, newError(MethodOptions, "", fmt.Errorf("%w: failed to dial endpoint %s: %w", ErrConnection, addr, err))
	}

	return NewClient(ctx, nc, cfg)
}

// NewClient takes ownership of nc and issues OPTIONS on it. The connection
// is closed when capability negotiation fails.
func NewClient(ctx context.Context, nc net.Conn, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		_ = nc.Close()
		return nil, err
	}

	uri := cfg.Endpoint.URI()
	as := newAuthState(cfg.Credentials)
	c := &Client{
		conn:    nc,
		br:      bufio.NewReader(nc),
		cfg:     cfg,
		uri:     uri,
		log:     log.WithField("uri", uri),
		auth:    as,
		builder: newBuilder(uri, as),
		state:   StateIdle,
	}

	if err := c.negotiate(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to negotiate capabilities with %s: %w", uri, err)
	}
	return c, nil
}

// Describe requests the media description and derives the transport
// descriptor from it.
func (c *Client) Describe(ctx context.Context) error {
	if err := c.check(MethodDescribe, StateIdle); err != nil {
		return err
	}

	res, err := c.do(ctx, MethodDescribe)
	if err != nil {
		return err
	}

	body := string(res.Body)
	if body == "" {
		body = res.Raw
	}
	media, err := ParseMedia(body)
	if err != nil {
		return newError(MethodDescribe, res.Raw, err)
	}
	selected, err := SelectMedia(media)
	if err != nil {
		return newError(MethodDescribe, res.Raw, fmt.Errorf("%w: %v", ErrParse, err))
	}
	if profiles := MediaProfiles(media); len(profiles) > 1 {
		c.log.WithField("profiles", profiles).Warnf("multiple RTP profiles announced, negotiating %s %s", selected.Type, selected.Profile)
	}

	descriptor, err := transport.NewDescriptor(transport.Profile(selected.Profile), c.cfg.Delivery, c.cfg.RTPPort, c.cfg.RTCPPort)
	if err != nil {
		return newError(MethodDescribe, res.Raw, fmt.Errorf("%w: %v", ErrParse, err))
	}

	c.media = media
	c.transport = descriptor
	c.transition(StateDescribed)
	return nil
}

// Setup requests transport for the described media and stores the session
// the server issues.
func (c *Client) Setup(ctx context.Context) error {
	if err := c.check(MethodSetup, StateDescribed); err != nil {
		return err
	}

	res, err := c.do(ctx, MethodSetup, Header{Name: "Transport", Value: c.transport.String()})
	if err != nil {
		return err
	}

	value, ok := HeaderValue(res.Raw, "Session")
	if !ok {
		return newError(MethodSetup, res.Raw, fmt.Errorf("%w: missing Session header", ErrParse))
	}
	session, timeout, err := ParseSession(value)
	if err != nil {
		return newError(MethodSetup, res.Raw, err)
	}

	if values := res.Header.Values("Transport"); len(values) > 0 {
		h, err := transport.Parse(values)
		if err != nil {
			c.log.WithError(err).Warn("failed to parse server transport reply")
		} else {
			c.serverOption = h.Options()[0]
		}
	}

	c.session = session
	c.sessionTimeout = timeout
	c.transition(StateSetUp)
	return nil
}

// Play starts or resumes delivery. Callers re-issue it periodically to keep
// the server from expiring the session.
func (c *Client) Play(ctx context.Context) error {
	if err := c.check(MethodPlay, StateSetUp, StatePaused, StatePlaying); err != nil {
		return err
	}
	if _, err := c.do(ctx, MethodPlay, sessionHeader(c.session)); err != nil {
		return err
	}
	c.transition(StatePlaying)
	return nil
}

// Pause halts delivery without releasing the session.
func (c *Client) Pause(ctx context.Context) error {
	if err := c.check(MethodPause, StatePlaying); err != nil {
		return err
	}
	if _, err := c.do(ctx, MethodPause, sessionHeader(c.session)); err != nil {
		return err
	}
	c.transition(StatePaused)
	return nil
}

// Teardown releases the session on the server. The session is cleared
// and the client cannot set up another one on this connection.
func (c *Client) Teardown(ctx context.Context) error {
	if err := c.check(MethodTeardown, StateSetUp, StatePlaying, StatePaused); err != nil {
		return err
	}
	if _, err := c.do(ctx, MethodTeardown, sessionHeader(c.session)); err != nil {
		return err
	}
	c.session = ""
	c.transition(StateTornDown)
	return nil
}

// GetParameter sends an empty GET_PARAMETER carrying the session, which
// servers treat as a keepalive.
func (c *Client) GetParameter(ctx context.Context) error {
	if err := c.check(MethodGetParameter, StateSetUp, StatePlaying, StatePaused); err != nil {
		return err
	}
	_, err := c.do(ctx, MethodGetParameter, sessionHeader(c.session))
	return err
}

// Close closes the control connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", c.uri, err)
	}
	return nil
}

func (c *Client) URI() string {
	return c.uri
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) AuthState() AuthState {
	return c.auth.state
}

// Supports reports whether the server listed m in its Public header.
func (c *Client) Supports(m Method) bool {
	return c.caps.Supports(m)
}

func (c *Client) Capabilities() []Method {
	return c.caps.Methods()
}

// Session is the active session id, empty before setup and after teardown.
func (c *Client) Session() string {
	return c.session
}

// SessionTimeout is the timeout the server attached to the session, zero
// when it did not send one.
func (c *Client) SessionTimeout() time.Duration {
	return c.sessionTimeout
}

// Transport is the negotiated transport descriptor, valid after Describe.
func (c *Client) Transport() transport.Descriptor {
	return c.transport
}

// ServerTransport is the transport spec the server echoed in its SETUP
// reply, nil when it sent none.
func (c *Client) ServerTransport() transport.Option {
	return c.serverOption
}

// Media lists every media announcement of the last description.
func (c *Client) Media() []Media {
	return c.media
}

// NextSequence is the CSeq the next request will carry.
func (c *Client) NextSequence() int {
	return c.builder.next()
}

// check gates an operation before any bytes are written: the capability
// set first, then the session state.
func (c *Client) check(method Method, allowed ...State) error {
	if c.closed {
		return newError(method, "", fmt.Errorf("%w: connection closed", ErrConnection))
	}
	if c.broken != nil {
		return newError(method, "", fmt.Errorf("connection unusable: %w", c.broken))
	}
	if !c.caps.Supports(method) {
		return newError(method, "", ErrUnsupportedOperation)
	}
	if !c.state.in(allowed...) {
		return newError(method, "", fmt.Errorf("%w: %s not allowed in state %s", ErrInvalidState, method, c.state))
	}
	return nil
}

func (c *Client) transition(to State) {
	c.log.WithFields(log.Fields{"from": c.state, "to": to}).Info("session state changed")
	c.state = to
}

// do sends a request and answers a single 401 challenge with a digest
// Authorization header. A second 401 is returned as ErrAuthorization.
func (c *Client) do(ctx context.Context, method Method, headers ...Header) (*Response, error) {
	res, err := c.roundTrip(ctx, c.builder.build(method, headers...))
	if err != nil {
		return nil, err
	}

	if res.Code == 401 {
		if c.cfg.Credentials.Empty() {
			return nil, newError(method, res.Raw, fmt.Errorf("%w: server requires credentials", ErrAuthorization))
		}
		challenge, err := ParseChallenge(res.Raw)
		if err != nil {
			return nil, newError(method, res.Raw, err)
		}
		c.auth.challenged(method, challenge)
		c.auth.attach(c.uri)
		authRetries.WithLabelValues(method.String()).Inc()
		c.log.WithFields(log.Fields{"method": method, "realm": challenge.Realm}).Warn("authorization required, retrying with digest")

		res, err = c.roundTrip(ctx, c.builder.build(method, headers...))
		if err != nil {
			return nil, err
		}
		if res.Code == 401 {
			return nil, newError(method, res.Raw, fmt.Errorf("%w: credentials %s rejected", ErrAuthorization, c.cfg.Credentials))
		}
	}

	if !res.OK() {
		return nil, newError(method, res.Raw, &StatusError{Code: res.Code, Message: res.Message})
	}
	return res, nil
}

// roundTrip writes req and reads its response, bounded by the configured
// timeout and by ctx. Responses to earlier requests that were abandoned
// before any of their bytes arrived are skipped.
func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, newError(req.Method, "", c.fail(ctx, err))
	}
	stop := c.interruptOn(ctx)
	defer stop()

	c.log.WithField("cseq", req.Sequence).Debugf("sending request\n%s", req)
	requestsSent.WithLabelValues(req.Method.String()).Inc()
	if err := req.Write(c.conn); err != nil {
		return nil, newError(req.Method, "", c.fail(ctx, err))
	}

	for {
		// Peek consumes nothing, so giving up here keeps the stream aligned
		// on a message boundary.
		if _, err := c.br.Peek(1); err != nil {
			if abandoned(ctx, err) {
				return nil, newError(req.Method, "", c.connErr(ctx, err))
			}
			return nil, newError(req.Method, "", c.fail(ctx, err))
		}

		res, err := ReadResponse(c.br)
		switch {
		case errors.Is(err, ErrParse):
			c.broken = fmt.Errorf("%w: %w", ErrConnection, err)
			if res != nil {
				return nil, newError(req.Method, res.Raw, err)
			}
			return nil, newError(req.Method, "", err)
		case err != nil:
			return nil, newError(req.Method, "", c.fail(ctx, err))
		}
		observeResponse(req.Method, res.Code)
		c.log.WithField("cseq", res.Sequence).Debugf("received response\n%s", res.Raw)

		if res.Sequence == "" {
			return res, nil
		}
		seq, err := strconv.Atoi(res.Sequence)
		if err == nil && seq < req.Sequence {
			c.log.WithField("cseq", seq).Debug("discarding response to an abandoned request")
			continue
		}
		if err != nil || seq != req.Sequence {
			return nil, newError(req.Method, res.Raw,
				fmt.Errorf("%w: response CSeq %s does not match request CSeq %d", ErrParse, res.Sequence, req.Sequence))
		}
		return res, nil
	}
}

// interruptOn unblocks pending I/O when ctx is cancelled. The returned
// function waits until the deadline can no longer be touched.
func (c *Client) interruptOn(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = c.conn.SetDeadline(aLongTimeAgo)
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		<-exited
	}
}

// abandoned reports whether a read gave up only because its deadline passed
// or ctx ended.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded)
}

// fail latches err: the stream may hold part of a message, so no later
// request can be matched with its response.
func (c *Client) fail(ctx context.Context, err error) error {
	err = c.connErr(ctx, err)
	c.broken = err
	return err
}

func (c *Client) connErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrConnection, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
