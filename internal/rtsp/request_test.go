package rtsp

import (
	"bufio"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/easyDong19/RTSP-socket/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURI = "rtsp://192.168.0.140:554/ch_100"

func TestRequestString(t *testing.T) {
	b := newBuilder(testURI, newAuthState(auth.Credentials{}))
	r := b.build(MethodSetup, Header{Name: "Transport", Value: "RTP/AVP;unicast;client_port=10004-10005"}, sessionHeader("abc"))

	expected := "SETUP rtsp://192.168.0.140:554/ch_100 RTSP/1.0\r\n" +
		"CSeq: 1\r\n" +
		"Accept: application/sdp\r\n" +
		"Transport: RTP/AVP;unicast;client_port=10004-10005\r\n" +
		"Session: abc\r\n" +
		"\r\n"
	assert.Equal(t, expected, r.String())
}

func TestBuilderSequence(t *testing.T) {
	b := newBuilder(testURI, nil)
	methods := []Method{MethodOptions, MethodDescribe, MethodDescribe, MethodSetup, MethodPlay, MethodPause, MethodPlay, MethodTeardown}

	for i, m := range methods {
		require.Equal(t, i+1, b.next())
		r := b.build(m)
		assert.Equal(t, i+1, r.Sequence)
		assert.Contains(t, r.String(), "CSeq: "+strconv.Itoa(i+1)+"\r\n")
	}
	assert.Equal(t, len(methods)+1, b.next())
}

func TestBuilderAuthorization(t *testing.T) {
	as := newAuthState(auth.Credentials{Username: "admin", Password: "pw"})
	b := newBuilder(testURI, as)

	r := b.build(MethodDescribe)
	assert.Empty(t, r.Authorization)

	as.challenged(MethodDescribe, auth.Challenge{Realm: "x", Nonce: "y"})
	assert.Equal(t, AuthChallenged, as.state)
	r = b.build(MethodDescribe)
	assert.Empty(t, r.Authorization, "header is not rendered before it is attached")

	as.attach(testURI)
	assert.Equal(t, AuthAttached, as.state)

	r = b.build(MethodDescribe)
	rendered := r.String()
	assert.True(t, strings.HasSuffix(rendered, "Authorization: "+r.Authorization+"\r\n\r\n"))
	assert.Contains(t, r.Authorization, `response="`+auth.Response("admin", "x", "pw", "DESCRIBE", testURI, "y")+`"`)

	r = b.build(MethodSetup)
	assert.Empty(t, r.Authorization, "header is scoped to the challenged method")
	assert.Equal(t, 5, b.next())
}

func TestMethodValid(t *testing.T) {
	assert.True(t, MethodPause.Valid())
	assert.False(t, Method("RECORD").Valid())
}

func TestReadRequest(t *testing.T) {
	b := newBuilder(testURI, newAuthState(auth.Credentials{}))
	sent := b.build(MethodPlay, sessionHeader("abc123"))
	sent.Authorization = `Digest username="admin"`

	br := bufio.NewReader(strings.NewReader(sent.String() + "garbage\r\n\r\n"))
	r, err := ReadRequest(br)
	require.NoError(t, err)
	assert.Equal(t, sent, r)
	assert.Equal(t, "abc123", r.Get("session"))
	assert.Equal(t, `Digest username="admin"`, r.Get("Authorization"))
	assert.Empty(t, r.Get("Transport"))

	_, err = ReadRequest(br)
	assert.ErrorIs(t, err, ErrParse)
}

func TestResponseWrite(t *testing.T) {
	var b strings.Builder
	res := &Response{
		Code:     200,
		Message:  "OK",
		Sequence: "4",
		Header:   http.Header{"Session": {"abc123"}},
		Body:     []byte("m=video 0 RTP/AVP 96\r\n"),
	}
	require.NoError(t, res.Write(&b))

	read, err := ReadResponse(bufio.NewReader(strings.NewReader(b.String())))
	require.NoError(t, err)
	assert.Equal(t, 200, read.Code)
	assert.Equal(t, "4", read.Sequence)
	assert.Equal(t, "abc123", read.Header.Get("Session"))
	assert.Equal(t, res.Body, read.Body)
	assert.Nil(t, res.Header.Values("Cseq"))
}
