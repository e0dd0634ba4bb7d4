// Package nmea0183 implements the framing and envelope level of NMEA 0183
// sentences: start delimiter, optional NMEA 4.0 tag block, address field,
// comma separated fields and checksum. Field semantics are left to callers.
package nmea0183

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty    = errors.New("nmea0183: empty sentence")
	ErrFormat   = errors.New("nmea0183: malformed sentence")
	ErrChecksum = errors.New("nmea0183: checksum mismatch")
)

// TagBlock holds the key/value pairs of a NMEA 4.0 tag block, for example
// `\s:GPS01,c:1577836800*5A\`.
type TagBlock map[string]string

// Source returns the "s" tag.
func (t TagBlock) Source() string {
	return t["s"]
}

type Sentence struct {
	// Start is '$' for parametric sentences and '!' for encapsulated ones (AIS).
	Start byte
	// Talker is the two letter talker identifier, "P" for proprietary sentences.
	Talker string
	Type   string
	Fields []string
	Tags   TagBlock
	// Checksum as received, empty if the sentence had none.
	Checksum string
}

// ID returns the address field, talker and type, e.g. "GPGGA".
func (s Sentence) ID() string {
	return s.Talker + s.Type
}

// Field returns field i or an empty string if it does not exist.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}

// Checksum calculates the XOR checksum of everything between the start
// delimiter and the '*'.
func Checksum(s string) string {
	var sum uint8
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}
	return fmt.Sprintf("%02X", sum)
}

func (s Sentence) body() string {
	var b strings.Builder
	b.WriteString(s.ID())
	for _, f := range s.Fields {
		b.WriteByte(',')
		b.WriteString(f)
	}
	if len(s.Fields) == 0 {
		// always make sure the type is followed by a comma if there is no data
		b.WriteByte(',')
	}
	return b.String()
}

// String encodes the sentence with a freshly calculated checksum. Tag blocks
// are not re-encoded.
func (s Sentence) String() string {
	start := s.Start
	if start == 0 {
		start = '$'
	}
	body := s.body()
	return string(start) + body + "*" + Checksum(body)
}

func (s Sentence) Bytes() []byte {
	return []byte(s.String())
}

// Parse parses one sentence. Trailing CR/LF is ignored. A sentence without
// checksum is accepted, a sentence with a wrong one is not.
func Parse(line string) (Sentence, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Sentence{}, ErrEmpty
	}

	var s Sentence
	if line[0] == '\\' {
		end := strings.IndexByte(line[1:], '\\')
		if end < 0 {
			return Sentence{}, fmt.Errorf("%w: unterminated tag block", ErrFormat)
		}
		tags, err := parseTagBlock(line[1 : end+1])
		if err != nil {
			return Sentence{}, err
		}
		s.Tags = tags
		line = line[end+2:]
		if line == "" {
			return Sentence{}, ErrEmpty
		}
	}

	if line[0] != '$' && line[0] != '!' {
		return Sentence{}, fmt.Errorf("%w: bad start delimiter %q", ErrFormat, line[0])
	}
	s.Start = line[0]
	body := line[1:]

	if star := strings.LastIndexByte(body, '*'); star >= 0 {
		sum := strings.ToUpper(body[star+1:])
		body = body[:star]
		if len(sum) != 2 {
			return Sentence{}, fmt.Errorf("%w: bad checksum field %q", ErrFormat, sum)
		}
		if want := Checksum(body); want != sum {
			return Sentence{}, fmt.Errorf("%w: got %s, calculated %s", ErrChecksum, sum, want)
		}
		s.Checksum = sum
	}

	parts := strings.Split(body, ",")
	addr := parts[0]
	switch {
	case len(addr) >= 2 && addr[0] == 'P':
		s.Talker = "P"
		s.Type = addr[1:]
	case len(addr) >= 3:
		s.Talker = addr[:2]
		s.Type = addr[2:]
	default:
		return Sentence{}, fmt.Errorf("%w: bad address field %q", ErrFormat, addr)
	}
	s.Fields = parts[1:]
	return s, nil
}

func parseTagBlock(block string) (TagBlock, error) {
	if star := strings.LastIndexByte(block, '*'); star >= 0 {
		sum := strings.ToUpper(block[star+1:])
		block = block[:star]
		if want := Checksum(block); want != sum {
			return nil, fmt.Errorf("%w: tag block got %s, calculated %s", ErrChecksum, sum, want)
		}
	}
	tags := make(TagBlock)
	for _, kv := range strings.Split(block, ",") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad tag %q", ErrFormat, kv)
		}
		tags[k] = v
	}
	return tags, nil
}
