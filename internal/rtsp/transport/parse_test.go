package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		in       []string
		profile  Profile
		delivery Delivery
		protocol Protocol
		params   []Parameter
	}{
		{
			name:     "server reply",
			in:       []string{"RTP/AVP;unicast;client_port=10004-10005;server_port=6970-6971;ssrc=1A2B3C4D;mode=\"PLAY\""},
			profile:  ProfileAVP,
			delivery: DeliveryUnicast,
			protocol: ProtocolUDP,
			params: []Parameter{
				ClientPort{10004, 10005},
				ServerPort{6970, 6971},
				SSRC(0x1A2B3C4D),
				Mode("PLAY"),
			},
		},
		{
			name:     "interleaved",
			in:       []string{"RTP/AVP/TCP;unicast;interleaved=0-1"},
			profile:  ProfileAVPTCP,
			delivery: DeliveryUnicast,
			protocol: ProtocolTCP,
			params:   []Parameter{Interleaved{0, 1}},
		},
		{
			name:     "multicast",
			in:       []string{"RTP/AVP/UDP;multicast;destination=224.2.0.1;port=3456-3457;ttl=16"},
			profile:  ProfileAVPUDP,
			delivery: DeliveryMulticast,
			protocol: ProtocolUDP,
			params: []Parameter{
				Destination("224.2.0.1"),
				Port{3456, 3457},
				TTL(16 * time.Second),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse(tt.in)
			require.NoError(t, err)
			require.Len(t, h.Options(), 1)
			o := h.Options()[0]
			assert.Equal(t, tt.profile, o.Profile())
			assert.Equal(t, tt.delivery, o.Delivery())
			assert.Equal(t, tt.protocol, o.Protocol())
			assert.Equal(t, tt.params, o.Parameters())
		})
	}
}

func TestParseMultipleSpecs(t *testing.T) {
	h, err := Parse([]string{"RTP/AVP/TCP;unicast;interleaved=0-1, RTP/AVP;unicast;client_port=5000-5001"})
	require.NoError(t, err)
	require.Len(t, h.Options(), 2)
	assert.Equal(t, ProfileAVP, h.Options()[1].Profile())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unsupported profile": "RAW/RAW/UDP;unicast",
		"bad port":            "RTP/AVP;client_port=abc-1",
		"too many ports":      "RTP/AVP;client_port=1-2-3",
		"bad ssrc":            "RTP/AVP;ssrc=zz",
		"missing ttl":         "RTP/AVP;multicast;ttl",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]string{in})
			assert.Error(t, err)
		})
	}

	_, err := Parse([]string{"RAW/RAW/UDP"})
	assert.ErrorIs(t, err, ErrUnsupportedTransport)
	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestServerPortsAndSSRC(t *testing.T) {
	h, err := Parse([]string{"RTP/AVP;unicast;client_port=10004-10005;server_port=6970-6971;ssrc=0000ABCD"})
	require.NoError(t, err)

	sp, ok := ServerPorts(h.Options()[0])
	require.True(t, ok)
	assert.Equal(t, ServerPort{6970, 6971}, sp)

	ssrc, ok := SSRCOf(h.Options()[0])
	require.True(t, ok)
	assert.Equal(t, SSRC(0xABCD), ssrc)
	assert.Equal(t, "ssrc=0000ABCD", ssrc.String())
}

func TestDescriptor(t *testing.T) {
	d, err := NewDescriptor(ProfileAVP, DeliveryUnicast, 10004, 10005)
	require.NoError(t, err)
	assert.Equal(t, "RTP/AVP;unicast;client_port=10004-10005", d.String())
	assert.Equal(t, 10004, d.RTPPort())
	assert.Equal(t, 10005, d.RTCPPort())

	_, err = NewDescriptor("", DeliveryUnicast, 10004, 10005)
	assert.Error(t, err)
	_, err = NewDescriptor(ProfileAVP, "broadcast", 10004, 10005)
	assert.Error(t, err)
	_, err = NewDescriptor(ProfileAVP, DeliveryMulticast, 0, 10005)
	assert.Error(t, err)
}

func TestOptionRoundTrip(t *testing.T) {
	in := "RTP/AVP;multicast;destination=224.2.0.1;port=3456-3457;ttl=16;layers=2"
	h, err := Parse([]string{in})
	require.NoError(t, err)
	assert.Equal(t, in, h.Options()[0].String())
}
