package rtsp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyDong19/RTSP-socket/internal/auth"
	"github.com/easyDong19/RTSP-socket/internal/rtsp"
	"github.com/easyDong19/RTSP-socket/internal/rtsp/transport"
	"github.com/easyDong19/RTSP-socket/internal/rtsptest"
)

func TestClientAgainstCamera(t *testing.T) {
	creds := auth.Credentials{Username: "admin", Password: "12345"}
	srv, err := rtsptest.NewServer(rtsptest.Options{Credentials: creds, SessionTimeout: time.Minute})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go srv.Start(ctx)

	client, err := rtsp.Dial(ctx, rtsp.Config{
		Endpoint:    srv.Endpoint("ch_100"),
		Credentials: creds,
		RTPPort:     5000,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.ElementsMatch(t, rtsp.Methods, client.Capabilities())
	assert.Equal(t, rtsp.AuthInactive, client.AuthState())

	require.NoError(t, client.Describe(ctx))
	assert.Equal(t, rtsp.AuthAttached, client.AuthState())
	assert.Equal(t, "RTP/AVP;unicast;client_port=5000-5001", client.Transport().String())

	require.NoError(t, client.Setup(ctx))
	assert.NotEmpty(t, client.Session())
	assert.Equal(t, time.Minute, client.SessionTimeout())
	ports, ok := transport.ServerPorts(client.ServerTransport())
	require.True(t, ok)
	assert.Equal(t, transport.ServerPort{6970, 6971}, ports)

	require.NoError(t, client.Play(ctx))
	require.NoError(t, client.GetParameter(ctx))
	require.NoError(t, client.Pause(ctx))
	require.NoError(t, client.Play(ctx))
	require.NoError(t, client.Teardown(ctx))
	assert.Equal(t, rtsp.StateTornDown, client.State())

	requests := srv.Requests()
	require.Len(t, requests, 9)
	for i, r := range requests {
		assert.Equal(t, i+1, r.Sequence, r.Method)
		assert.Equal(t, client.URI(), r.URL)
	}
	assert.Empty(t, requests[1].Authorization)
	assert.NotEmpty(t, requests[2].Authorization)
	for _, r := range requests[3:] {
		assert.Empty(t, r.Authorization, r.Method)
	}
	assert.Equal(t, 10, client.NextSequence())
}
