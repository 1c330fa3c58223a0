package rtsp

import (
	"context"
	"fmt"
	"sort"
)

// CapabilitySet is the set of methods a server listed in its Public header.
// It is populated once per connection and never modified afterwards.
type CapabilitySet map[Method]struct{}

func NewCapabilitySet(methods []Method) CapabilitySet {
	s := make(CapabilitySet, len(methods))
	for _, m := range methods {
		s[m] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Supports(m Method) bool {
	_, ok := s[m]
	return ok
}

// Methods returns the members of s in lexical order.
func (s CapabilitySet) Methods() []Method {
	methods := make([]Method, 0, len(s))
	for m := range s {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// negotiate issues OPTIONS and records the Public method list.
func (c *Client) negotiate(ctx context.Context) error {
	res, err := c.do(ctx, MethodOptions)
	if err != nil {
		return err
	}
	public, ok := HeaderValue(res.Raw, "Public")
	if !ok {
		return newError(MethodOptions, res.Raw, fmt.Errorf("%w: missing Public header", ErrParse))
	}
	methods := ParsePublic(public)
	if len(methods) == 0 {
		return newError(MethodOptions, res.Raw, fmt.Errorf("%w: empty Public header", ErrParse))
	}
	c.caps = NewCapabilitySet(methods)
	c.log.WithField("methods", c.caps.Methods()).Debug("server capabilities negotiated")
	return nil
}
