package apci

// Scanner splits a byte stream into APDUs. Bytes that cannot start a valid
// frame are skipped one at a time; an incomplete trailing frame is held until
// the next Feed.
type Scanner struct {
	buf     []byte
	dropped int
	invalid int
}

// Feed appends p to the pending buffer and returns every complete frame.
func (s *Scanner) Feed(p []byte) []Frame {
	s.buf = append(s.buf, p...)
	var frames []Frame
	i := 0
	for i < len(s.buf) {
		if s.buf[i] != StartByte {
			s.dropped++
			i++
			continue
		}
		if len(s.buf)-i < 2 {
			break
		}
		length := int(s.buf[i+1])
		if length < ControlLen || length > MaxLengthField {
			s.invalid++
			s.dropped++
			i++
			continue
		}
		end := i + 2 + length
		if end > len(s.buf) {
			break
		}
		var ctrl [ControlLen]byte
		copy(ctrl[:], s.buf[i+2:i+HeaderLen])
		f := Classify(ctrl)
		if f.Kind == KindI && length > ControlLen {
			f.ASDU = append([]byte(nil), s.buf[i+HeaderLen:end]...)
		}
		frames = append(frames, f)
		i = end
	}
	rest := copy(s.buf, s.buf[i:])
	s.buf = s.buf[:rest]
	return frames
}

// Pending reports how many bytes are held for an incomplete frame.
func (s *Scanner) Pending() int {
	return len(s.buf)
}

// Dropped reports how many bytes were skipped while resynchronising.
func (s *Scanner) Dropped() int {
	return s.dropped
}

// Invalid reports how many start bytes carried an impossible length byte.
func (s *Scanner) Invalid() int {
	return s.invalid
}
