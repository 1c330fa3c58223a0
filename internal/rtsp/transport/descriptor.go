package transport

import (
	"errors"
	"fmt"
)

// Descriptor is the transport the client negotiates for a single media
// stream: the RTP profile announced by the server, the distribution mode and
// the client RTP/RTCP port pair.
type Descriptor struct {
	Profile    Profile
	Delivery   Delivery
	ClientPort ClientPort
}

// NewDescriptor validates and returns a descriptor. rtcpPort is usually
// rtpPort+1 but is taken as given.
func NewDescriptor(profile Profile, delivery Delivery, rtpPort, rtcpPort int) (Descriptor, error) {
	if profile == "" {
		return Descriptor{}, errors.New("missing RTP profile")
	}
	if delivery != DeliveryUnicast && delivery != DeliveryMulticast {
		return Descriptor{}, fmt.Errorf("invalid delivery %q", delivery)
	}
	if rtpPort <= 0 || rtpPort > 65535 || rtcpPort <= 0 || rtcpPort > 65535 {
		return Descriptor{}, fmt.Errorf("invalid client port pair %d-%d", rtpPort, rtcpPort)
	}
	return Descriptor{
		Profile:    profile,
		Delivery:   delivery,
		ClientPort: ClientPort{rtpPort, rtcpPort},
	}, nil
}

// Option renders the descriptor as a request transport spec.
func (d Descriptor) Option() Option {
	return NewOption(d.Profile, d.Delivery, d.ClientPort)
}

// String is the Transport header value for a SETUP request.
func (d Descriptor) String() string {
	return d.Option().String()
}

// RTPPort is the client port media packets arrive on.
func (d Descriptor) RTPPort() int {
	if len(d.ClientPort) == 0 {
		return 0
	}
	return d.ClientPort[0]
}

// RTCPPort is the client port control packets arrive on.
func (d Descriptor) RTCPPort() int {
	if len(d.ClientPort) < 2 {
		return 0
	}
	return d.ClientPort[1]
}
