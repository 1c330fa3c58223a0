package transport

import "strings"

type option struct {
	profile  Profile
	delivery Delivery
	params   []Parameter
}

// NewOption returns a transport spec for profile with the given parameters.
func NewOption(profile Profile, delivery Delivery, params ...Parameter) Option {
	return &option{profile: profile, delivery: delivery, params: params}
}

func (o *option) Profile() Profile {
	return o.profile
}

func (o *option) Delivery() Delivery {
	return o.delivery
}

func (o *option) Protocol() Protocol {
	p, err := o.profile.Protocol()
	if err != nil {
		return ProtocolUDP
	}
	return p
}

func (o *option) Parameters() []Parameter {
	return o.params
}

func (o *option) String() string {
	segments := []string{string(o.profile)}
	if o.delivery != "" {
		segments = append(segments, string(o.delivery))
	}

	for _, param := range o.params {
		segments = append(segments, param.String())
	}

	return strings.Join(segments, ";")
}

type header struct {
	options []Option
}

func (h *header) Options() []Option {
	return h.options
}
