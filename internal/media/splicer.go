package media

import (
	"sync"

	"github.com/pion/rtp"
)

// Splicer joins the RTP streams of consecutive sessions into one. Every
// packet handed on keeps the SSRC of the first session, carries the next
// sequence number and a timestamp on the first session's clock, so a
// restart is invisible downstream.
type Splicer struct {
	sync.Mutex
	session  string
	started  bool
	ssrc     uint32
	sequence uint16

	// rebase is set until the first packet of a new session fixes offset.
	rebase bool
	offset uint32
	last   uint32
	// step is the last forward timestamp increment, used to place the
	// first frame of the next session.
	step uint32

	out func(packet *rtp.Packet)
}

func NewSplicer(out func(packet *rtp.Packet)) *Splicer {
	return &Splicer{out: out}
}

// Handler switches the splicer to session and returns the handler for its
// packets. Handlers of earlier sessions drop whatever they still receive.
func (s *Splicer) Handler(session string) func(packet *rtp.Packet) {
	s.Lock()
	s.session = session
	s.rebase = true
	s.Unlock()

	return func(packet *rtp.Packet) {
		s.Lock()
		defer s.Unlock()
		if packet == nil || session != s.session {
			return
		}
		first := !s.started
		if first {
			s.ssrc = packet.SSRC
			s.sequence = packet.SequenceNumber - 1
			s.started = true
		} else if s.rebase {
			s.offset = s.last + max(s.step, 1) - packet.Timestamp
		}
		s.rebase = false
		s.sequence++

		ts := packet.Timestamp + s.offset
		if !first && ts != s.last && ts-s.last < 1<<31 {
			s.step = ts - s.last
		}
		s.last = ts

		p := *packet
		p.SSRC = s.ssrc
		p.SequenceNumber = s.sequence
		p.Timestamp = ts
		s.out(&p)
	}
}
