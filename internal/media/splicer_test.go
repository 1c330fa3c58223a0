package media

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
)

func packet(ssrc uint32, seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{Version: 2, SSRC: ssrc, SequenceNumber: seq}}
}

func TestSplicer(t *testing.T) {
	var out []*rtp.Packet
	s := NewSplicer(func(p *rtp.Packet) { out = append(out, p) })

	first := s.Handler("a")
	first(packet(1, 100))
	first(packet(1, 101))
	first(nil)

	second := s.Handler("b")
	first(packet(1, 102))
	second(packet(2, 7))
	second(packet(2, 8))

	var got [][2]uint32
	for _, p := range out {
		got = append(got, [2]uint32{p.SSRC, uint32(p.SequenceNumber)})
	}
	assert.Equal(t, [][2]uint32{{1, 100}, {1, 101}, {1, 102}, {1, 103}}, got)
}

func TestSplicerWraps(t *testing.T) {
	var last uint16
	s := NewSplicer(func(p *rtp.Packet) { last = p.SequenceNumber })

	h := s.Handler("a")
	h(packet(1, 65535))
	assert.Equal(t, uint16(65535), last)
	h(packet(1, 0))
	assert.Equal(t, uint16(0), last)
}

func TestSplicerLeavesInputUntouched(t *testing.T) {
	s := NewSplicer(func(*rtp.Packet) {})
	s.Handler("a")(packet(1, 10))

	in := packet(9, 50)
	s.Handler("b")(in)
	assert.Equal(t, uint32(9), in.SSRC)
	assert.Equal(t, uint16(50), in.SequenceNumber)
}

func TestSplicerRebasesTimestamps(t *testing.T) {
	var got []uint32
	s := NewSplicer(func(p *rtp.Packet) { got = append(got, p.Timestamp) })

	stamped := func(ssrc uint32, seq uint16, ts uint32) *rtp.Packet {
		p := packet(ssrc, seq)
		p.Timestamp = ts
		return p
	}

	first := s.Handler("a")
	first(stamped(1, 1, 1000))
	first(stamped(1, 2, 1000))
	first(stamped(1, 3, 4000))

	second := s.Handler("b")
	in := stamped(2, 40, 500)
	second(in)
	second(stamped(2, 41, 3500))

	assert.Equal(t, []uint32{1000, 1000, 4000, 7000, 10000}, got)
	assert.Equal(t, uint32(500), in.Timestamp)
}

func TestSplicerRebaseWraps(t *testing.T) {
	var last uint32
	s := NewSplicer(func(p *rtp.Packet) { last = p.Timestamp })

	p := packet(1, 1)
	p.Timestamp = 0xFFFFFF00
	s.Handler("a")(p)

	p = packet(2, 1)
	p.Timestamp = 90000
	s.Handler("b")(p)
	assert.Equal(t, uint32(0xFFFFFF01), last)
}
