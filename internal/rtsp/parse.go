package rtsp

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pion/sdp/v3"

	"github.com/easyDong19/RTSP-socket/internal/auth"
)

var (
	statusPattern = regexp.MustCompile(`^RTSP/(\d\.\d) (\d{3})\b(?: (.*))?`)
	realmPattern  = regexp.MustCompile(`realm="([^"]+)"`)
	noncePattern  = regexp.MustCompile(`nonce="([^"]+)"`)
	mediaPattern  = regexp.MustCompile(`(?m)^m=(\w+) \d+(?:/\d+)? (RTP/[\w/]+) \S+`)
)

// Media is one media announcement of a session description.
type Media struct {
	Type    string
	Profile string
	Control string
}

// ParseStatusCode returns the status code of the response status line in raw.
func ParseStatusCode(raw string) (int, error) {
	_, code, _, err := parseStatusLine(raw)
	return code, err
}

func parseStatusLine(raw string) (version string, code int, message string, err error) {
	m := statusPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", 0, "", fmt.Errorf("%w: no status line", ErrParse)
	}
	code, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: status code %q: %v", ErrParse, m[2], err)
	}
	return m[1], code, strings.TrimSpace(m[3]), nil
}

// HeaderValue returns the value of the first header called name in the
// header block of raw. Names are matched case-insensitively and the lookup
// stops at the blank line that ends the header block.
func HeaderValue(raw, name string) (string, bool) {
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			if i == 0 {
				continue
			}
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// parseHeader collects every header line of a header block.
func parseHeader(block string) http.Header {
	header := http.Header{}
	for _, line := range strings.Split(block, "\n") {
		k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return header
}

// ParseChallenge extracts the digest realm and nonce of a 401 response.
func ParseChallenge(raw string) (auth.Challenge, error) {
	realm := realmPattern.FindStringSubmatch(raw)
	nonce := noncePattern.FindStringSubmatch(raw)
	if realm == nil || nonce == nil {
		return auth.Challenge{}, fmt.Errorf("%w: missing digest realm or nonce", ErrParse)
	}
	return auth.Challenge{Realm: realm[1], Nonce: nonce[1]}, nil
}

// ParsePublic splits a Public header value into method tokens.
func ParsePublic(value string) []Method {
	var methods []Method
	for _, token := range strings.Split(value, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		methods = append(methods, Method(strings.ToUpper(token)))
	}
	return methods
}

// ParseSession splits a Session header value into the session id and the
// optional timeout parameter.
func ParseSession(value string) (string, time.Duration, error) {
	parts := strings.Split(value, ";")
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return "", 0, fmt.Errorf("%w: empty session id", ErrParse)
	}
	var timeout time.Duration
	for _, part := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(k, "timeout") {
			continue
		}
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, fmt.Errorf("%w: session timeout %q: %v", ErrParse, v, err)
		}
		timeout = time.Duration(seconds) * time.Second
	}
	return id, timeout, nil
}

// ParseMedia returns the media announcements of a session description. Well
// formed documents are decoded with pion/sdp; anything else falls back to
// matching m= lines.
func ParseMedia(body string) ([]Media, error) {
	sd := &sdp.SessionDescription{}
	if err := sd.Unmarshal([]byte(body)); err == nil && len(sd.MediaDescriptions) > 0 {
		var media []Media
		for _, md := range sd.MediaDescriptions {
			if len(md.MediaName.Protos) == 0 || md.MediaName.Protos[0] != "RTP" {
				continue
			}
			control, _ := md.Attribute("control")
			media = append(media, Media{
				Type:    md.MediaName.Media,
				Profile: strings.Join(md.MediaName.Protos, "/"),
				Control: control,
			})
		}
		if len(media) > 0 {
			return media, nil
		}
	}

	var media []Media
	for _, m := range mediaPattern.FindAllStringSubmatch(body, -1) {
		media = append(media, Media{Type: m[1], Profile: m[2]})
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: no RTP media line", ErrParse)
	}
	return media, nil
}

// MediaProfiles returns the distinct profile tokens in announcement order.
func MediaProfiles(media []Media) []string {
	seen := make(map[string]bool)
	var profiles []string
	for _, m := range media {
		if seen[m.Profile] {
			continue
		}
		seen[m.Profile] = true
		profiles = append(profiles, m.Profile)
	}
	return profiles
}

// SelectMedia picks the media the client negotiates: the first video media,
// or the first media when there is no video.
func SelectMedia(media []Media) (Media, error) {
	if len(media) == 0 {
		return Media{}, errors.New("no media")
	}
	for _, m := range media {
		if m.Type == "video" {
			return m, nil
		}
	}
	return media[0], nil
}
