package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	// maxBody bounds the Content-Length the client accepts.
	maxBody = 1 << 20
	// maxHeader bounds the status line and header block of one message.
	maxHeader = 16 << 10
)

type Response struct {
	Version  string
	Code     int
	Message  string
	Sequence string
	Header   http.Header
	Body     []byte
	// Raw is the response as read from the connection.
	Raw string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Code >= 200 && r.Code < 300
}

// Write renders the response with its CSeq and, when there is a body, its
// Content-Length.
func (r *Response) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "RTSP/%s %d %s\r\n", Version, r.Code, r.Message)

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("CSeq", r.Sequence)
	if len(r.Body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	if err := header.Write(&b); err != nil {
		return err
	}
	b.WriteString("\r\n")
	b.Write(r.Body)

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("failed to write %d response: %w", r.Code, err)
	}
	return nil
}

// ReadResponse reads one framed response: status line, header block and a
// body of Content-Length bytes.
func ReadResponse(br *bufio.Reader) (*Response, error) {
	budget := maxHeader

	var statusLine string
	for statusLine == "" {
		line, err := readLine(br, &budget)
		if err != nil {
			return nil, fmt.Errorf("failed to read RTSP status line: %w", err)
		}
		statusLine = strings.TrimSpace(line)
	}

	var raw, header strings.Builder
	raw.WriteString(statusLine + "\r\n")
	for {
		line, err := readLine(br, &budget)
		if err != nil {
			return nil, fmt.Errorf("failed to read RTSP headers: %w", err)
		}
		raw.WriteString(line + "\r\n")
		if line == "" {
			break
		}
		header.WriteString(line + "\n")
	}
	block := raw.String()

	var body []byte
	if lengthHeader, ok := HeaderValue(block, "Content-Length"); ok {
		length, err := strconv.Atoi(lengthHeader)
		if err != nil || length < 0 || length > maxBody {
			return nil, fmt.Errorf("%w: content-length %q", ErrParse, lengthHeader)
		}
		body = make([]byte, length)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, fmt.Errorf("failed to read body of RTSP response: %w", err)
		}
		raw.Write(body)
	}

	res := &Response{
		Header: parseHeader(header.String()),
		Body:   body,
		Raw:    raw.String(),
	}
	var err error
	res.Version, res.Code, res.Message, err = parseStatusLine(statusLine)
	if err != nil {
		return res, err
	}
	res.Sequence = res.Header.Get("CSeq")
	return res, nil
}

// readLine reads one LF terminated line, without its line ending. A line may
// not exceed the reader's buffer and all lines of one message share budget.
func readLine(br *bufio.Reader, budget *int) (string, error) {
	line, err := br.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrParse, br.Size())
	case err != nil:
		return "", err
	}
	*budget -= len(line)
	if *budget < 0 {
		return "", fmt.Errorf("%w: header block exceeds %d bytes", ErrParse, maxHeader)
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
