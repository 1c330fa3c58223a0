package rtsp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/easyDong19/RTSP-socket/internal/auth"
)

const (
	Version = "1.0"

	acceptSDP = "application/sdp"
)

// Header is a single request header line. Request headers are kept as an
// ordered list since they are rendered in the order they were supplied.
type Header struct {
	Name  string
	Value string
}

type Request struct {
	Method        Method
	URL           string
	Sequence      int
	Header        []Header
	Authorization string
}

// Write writes the rendered request to w in a single call.
func (r *Request) Write(w io.Writer) error {
	_, err := io.WriteString(w, r.String())
	if err != nil {
		return fmt.Errorf("failed to write %s request: %w", r.Method, err)
	}
	return nil
}

func (r *Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s RTSP/%s\r\n", r.Method, r.URL, Version)
	fmt.Fprintf(&b, "CSeq: %d\r\n", r.Sequence)
	fmt.Fprintf(&b, "Accept: %s\r\n", acceptSDP)
	for _, h := range r.Header {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	if r.Authorization != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", auth.HeaderName, r.Authorization)
	}
	b.WriteString("\r\n")
	return b.String()
}

// Get returns the value of the first header called name.
func (r *Request) Get(name string) string {
	if strings.EqualFold(name, auth.HeaderName) {
		return r.Authorization
	}
	for _, h := range r.Header {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ReadRequest reads a request written by Request.Write. Requests never
// carry a body.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	budget := maxHeader
	line, err := readLine(br, &budget)
	if err != nil {
		return nil, fmt.Errorf("failed to read RTSP request line: %w", err)
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "RTSP/") {
		return nil, fmt.Errorf("%w: request line %q", ErrParse, line)
	}

	r := &Request{Method: Method(parts[0]), URL: parts[1]}
	for {
		line, err := readLine(br, &budget)
		if err != nil {
			return nil, fmt.Errorf("failed to read RTSP headers: %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrParse, line)
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		switch {
		case strings.EqualFold(name, "CSeq"):
			r.Sequence, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: CSeq %q", ErrParse, value)
			}
		case strings.EqualFold(name, "Accept"):
		case strings.EqualFold(name, auth.HeaderName):
			r.Authorization = value
		default:
			r.Header = append(r.Header, Header{Name: name, Value: value})
		}
	}
	return r, nil
}

// builder renders requests against a single resource URI. It owns the
// sequence counter; every call to build consumes exactly one value.
type builder struct {
	uri  string
	seq  int
	auth *authState
}

func newBuilder(uri string, as *authState) *builder {
	return &builder{uri: uri, seq: 1, auth: as}
}

func (b *builder) build(method Method, headers ...Header) *Request {
	r := &Request{
		Method:   method,
		URL:      b.uri,
		Sequence: b.seq,
		Header:   headers,
	}
	if b.auth != nil {
		r.Authorization = b.auth.headerFor(method)
	}
	b.seq++
	return r
}

// next is the sequence number the next rendered request will carry.
func (b *builder) next() int {
	return b.seq
}

func sessionHeader(session string) Header {
	return Header{Name: "Session", Value: session}
}
