package nmea0183

// MaxLineLength bounds one line including an optional tag block. Longer
// input is treated as garbage and skipped up to the next line ending.
const MaxLineLength = 1024

// LineFramer splits a byte stream into lines. It is not safe for concurrent
// use; each driver I/O goroutine owns one.
type LineFramer struct {
	buf       []byte
	discard   bool
	Overflows int
	// OnOverflow, if set, is called for every line dropped as too long.
	OnOverflow func()
}

func NewLineFramer() *LineFramer {
	return &LineFramer{
		buf: make([]byte, 0, 256),
	}
}

// Push consumes p and calls emit for every complete, non-empty line, without
// the line ending. The slice passed to emit is only valid during the call.
func (f *LineFramer) Push(p []byte, emit func([]byte)) {
	for _, b := range p {
		switch b {
		case '\r', '\n':
			if !f.discard && len(f.buf) > 0 {
				emit(f.buf)
			}
			f.buf = f.buf[:0]
			f.discard = false
		default:
			if f.discard {
				continue
			}
			if len(f.buf) >= MaxLineLength {
				f.Overflows++
				if f.OnOverflow != nil {
					f.OnOverflow()
				}
				f.discard = true
				f.buf = f.buf[:0]
				continue
			}
			f.buf = append(f.buf, b)
		}
	}
}

// Reset drops any partial line, used after a reconnect.
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
	f.discard = false
}
