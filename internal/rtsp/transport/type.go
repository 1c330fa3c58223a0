package transport

import "errors"

type Protocol string

const (
	ProtocolUDP Protocol = "UDP"
	ProtocolTCP Protocol = "TCP"
)

// Profile is the RTP profile token of a transport spec, e.g. RTP/AVP.
type Profile string

const (
	ProfileAVP    Profile = "RTP/AVP"
	ProfileAVPUDP Profile = "RTP/AVP/UDP"
	ProfileAVPTCP Profile = "RTP/AVP/TCP"
)

// Protocol returns the lower transport implied by the profile.
func (p Profile) Protocol() (Protocol, error) {
	switch p {
	case ProfileAVP, ProfileAVPUDP:
		return ProtocolUDP, nil
	case ProfileAVPTCP:
		return ProtocolTCP, nil
	}
	return "", ErrUnsupportedTransport
}

// Delivery is the network distribution mode.
type Delivery string

const (
	DeliveryUnicast   Delivery = "unicast"
	DeliveryMulticast Delivery = "multicast"
)

const (
	UnsupportedTransportMessage = "Unsupported Transport"
	UnsupportedTransportCode    = 461
)

var (
	ErrUnsupportedTransport = errors.New("unsupported transport")
)

type Header interface {
	Options() []Option
}

type Option interface {
	Profile() Profile
	Delivery() Delivery
	Protocol() Protocol
	Parameters() []Parameter
	String() string
}

type Parameter interface {
	String() string
}
