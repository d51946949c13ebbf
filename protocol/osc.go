package protocol

import "bytes"

const (
	esc = 0x1b
	bel = 0x07

	// maxPendingFrame bounds how much of an unterminated frame is withheld
	// between reads. Global command lists run to a few hundred KiB.
	maxPendingFrame = 4 << 20
)

// shellIntegrationIdent is the OSC identifier the shell integration script writes.
var shellIntegrationIdent = []byte("633;")

// SegmentKind classifies a piece of the terminal stream.
type SegmentKind int

const (
	// SegmentOutput is visible terminal output, other escape sequences included.
	SegmentOutput SegmentKind = iota
	// SegmentSequence is the data of one shell integration frame, without the
	// OSC introducer, identifier and terminator.
	SegmentSequence
	// SegmentBell is a BEL byte outside any OSC frame.
	SegmentBell
)

// Segment is one piece of the terminal stream.
type Segment struct {
	Kind SegmentKind
	Data []byte
}

// Scanner splits a terminal byte stream into output, shell integration frames and bells.
// Frames may be split across Feed calls; the unterminated tail is kept for the next call.
// A Scanner is not safe for concurrent use.
type Scanner struct {
	pending []byte
}

// Feed consumes p and returns the segments completed so far, in stream order.
func (s *Scanner) Feed(p []byte) []Segment {
	buf := p
	if len(s.pending) > 0 {
		buf = append(s.pending, p...)
		s.pending = nil
	}

	var segs []Segment
	var out []byte
	flushOutput := func() {
		if len(out) > 0 {
			segs = append(segs, Segment{Kind: SegmentOutput, Data: out})
			out = nil
		}
	}

	i := 0
	for i < len(buf) {
		c := buf[i]

		if c == esc && i+1 == len(buf) {
			// Possibly the start of a frame split across reads.
			s.pending = []byte{esc}
			break
		}

		if c == esc && buf[i+1] == ']' {
			bodyStart := i + 2
			end, termLen := oscEnd(buf[bodyStart:])
			if end < 0 {
				if len(buf)-i > maxPendingFrame {
					// Malformed or runaway frame: give up and pass it through.
					out = append(out, buf[i:]...)
					break
				}
				s.pending = append([]byte(nil), buf[i:]...)
				break
			}
			body := buf[bodyStart : bodyStart+end]
			frameEnd := bodyStart + end + termLen
			if bytes.HasPrefix(body, shellIntegrationIdent) {
				flushOutput()
				data := append([]byte(nil), body[len(shellIntegrationIdent):]...)
				segs = append(segs, Segment{Kind: SegmentSequence, Data: data})
			} else {
				out = append(out, buf[i:frameEnd]...)
			}
			i = frameEnd
			continue
		}

		if c == bel {
			flushOutput()
			segs = append(segs, Segment{Kind: SegmentBell})
			i++
			continue
		}

		out = append(out, c)
		i++
	}

	flushOutput()
	return segs
}

// Flush returns any withheld bytes as output and resets the scanner.
func (s *Scanner) Flush() []Segment {
	if len(s.pending) == 0 {
		return nil
	}
	data := s.pending
	s.pending = nil
	return []Segment{{Kind: SegmentOutput, Data: data}}
}

// Pending reports how many bytes are withheld waiting for a frame terminator.
func (s *Scanner) Pending() int {
	return len(s.pending)
}

// oscEnd finds the frame terminator in b: BEL, or ST (ESC \).
// It returns the body length and terminator length, or -1 when unterminated.
func oscEnd(b []byte) (int, int) {
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case bel:
			return i, 1
		case esc:
			if i+1 == len(b) {
				return -1, 0
			}
			if b[i+1] == '\\' {
				return i, 2
			}
		}
	}
	return -1, 0
}

// EncodeSequence wraps data in a BEL-terminated shell integration frame.
// It is the inverse of a SegmentSequence.
func EncodeSequence(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(shellIntegrationIdent)+3)
	out = append(out, esc, ']')
	out = append(out, shellIntegrationIdent...)
	out = append(out, data...)
	return append(out, bel)
}
