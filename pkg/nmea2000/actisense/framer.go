package actisense

type framerState int

const (
	stateIdle framerState = iota
	stateIdleDLE
	statePacket
	statePacketDLE
)

// Framer extracts packets from the gateway byte stream and removes the DLE
// escaping. It is not safe for concurrent use.
type Framer struct {
	state framerState
	buf   []byte
	// Errors counts framing violations (bad escape sequence, overlong packet).
	Errors int
	// OnError, if set, is called for every packet dropped by a framing
	// violation.
	OnError func()
}

func NewFramer() *Framer {
	return &Framer{
		buf: make([]byte, 0, 64),
	}
}

// Push consumes p and calls emit with every complete packet, command byte
// through checksum. The slice passed to emit is only valid during the call.
func (f *Framer) Push(p []byte, emit func([]byte)) {
	for _, b := range p {
		switch f.state {
		case stateIdle:
			if b == DLE {
				f.state = stateIdleDLE
			}
		case stateIdleDLE:
			switch b {
			case STX:
				f.buf = f.buf[:0]
				f.state = statePacket
			case DLE:
				f.state = stateIdleDLE
			default:
				f.state = stateIdle
			}
		case statePacket:
			if b == DLE {
				f.state = statePacketDLE
				continue
			}
			f.append(b)
		case statePacketDLE:
			switch b {
			case DLE:
				f.state = statePacket
				f.append(DLE)
			case ETX:
				f.state = stateIdle
				if len(f.buf) > 0 {
					emit(f.buf)
				}
				f.buf = f.buf[:0]
			case STX:
				// resync on a new start
				f.fail()
				f.buf = f.buf[:0]
				f.state = statePacket
			default:
				f.fail()
				f.buf = f.buf[:0]
				f.state = stateIdle
			}
		}
	}
}

func (f *Framer) append(b byte) {
	if len(f.buf) >= maxPacket {
		f.fail()
		f.buf = f.buf[:0]
		f.state = stateIdle
		return
	}
	f.buf = append(f.buf, b)
}

func (f *Framer) fail() {
	f.Errors++
	if f.OnError != nil {
		f.OnError()
	}
}

// Reset drops any partial packet.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.state = stateIdle
}
