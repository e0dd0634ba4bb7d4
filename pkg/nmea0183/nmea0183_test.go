package nmea0183

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test sentence checksumming
func TestChecksum(t *testing.T) {
	tables := []struct {
		in       string
		expected string
	}{
		{"GPGLL,0000.00000,N,00000.00000,E,070254.000,V,N", "45"},
		{"GNGSA,A,1,,,,,,,,,,,,,99.0,99.0,99.0", "1E"},
		{"PSTMDUMPEPHEMS,", "3C"},
	}

	for _, table := range tables {
		out := Checksum(table.in)
		if out != table.expected {
			t.Errorf("%q expected: %q, got: %q", table.in, table.expected, out)
		}
	}
}

// Test sentence stringer
func TestStringer(t *testing.T) {
	tables := []struct {
		inTalker string
		inType   string
		inData   []string
		expected string
	}{
		{"P", "STMGPSSUSPEND", []string{}, "$PSTMGPSSUSPEND,*38"},
		{"GP", "GGA", []string{"070319.000", "0000.00000", "N", "00000.00000", "E", "0", "00", "99.0", "100.00", "M", "0.0", "M", "", ""}, "$GPGGA,070319.000,0000.00000,N,00000.00000,E,0,00,99.0,100.00,M,0.0,M,,*60"},
	}

	for _, table := range tables {
		s := Sentence{
			Talker: table.inTalker,
			Type:   table.inType,
			Fields: table.inData,
		}
		out := s.String()
		if out != table.expected {
			t.Errorf("%q, %q expected: %q, got: %q", table.inType, table.inData, table.expected, out)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		talker  string
		typ     string
		fields  int
		tags    TagBlock
		wantErr error
	}{
		{
			name:   "gga",
			line:   "$GPGGA,070319.000,0000.00000,N,00000.00000,E,0,00,99.0,100.00,M,0.0,M,,*60\r\n",
			talker: "GP",
			typ:    "GGA",
			fields: 14,
		},
		{
			name:   "no checksum",
			line:   "$IIMWV,045.0,R,10.5,N,A",
			talker: "II",
			typ:    "MWV",
			fields: 5,
		},
		{
			name:   "proprietary",
			line:   "$PSTMGPSSUSPEND,*38",
			talker: "P",
			typ:    "STMGPSSUSPEND",
			fields: 1,
		},
		{
			name:   "ais",
			line:   "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26",
			talker: "AI",
			typ:    "VDM",
			fields: 6,
		},
		{
			name:   "tag block",
			line:   "\\s:GPS01,c:1577836800*78\\$PSTMGPSSUSPEND,*38",
			talker: "P",
			typ:    "STMGPSSUSPEND",
			fields: 1,
			tags:   TagBlock{"s": "GPS01", "c": "1577836800"},
		},
		{name: "empty", line: "\r\n", wantErr: ErrEmpty},
		{name: "bad start", line: "GPGGA,1,2", wantErr: ErrFormat},
		{name: "bad checksum", line: "$PSTMGPSSUSPEND,*39", wantErr: ErrChecksum},
		{name: "short address", line: "$G,1", wantErr: ErrFormat},
		{name: "bad tag checksum", line: "\\s:GPS01*00\\$PSTMGPSSUSPEND,*38", wantErr: ErrChecksum},
		{name: "unterminated tag", line: "\\s:GPS01$PSTMGPSSUSPEND,*38", wantErr: ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.line)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.talker, s.Talker)
			assert.Equal(t, tt.typ, s.Type)
			assert.Len(t, s.Fields, tt.fields)
			if tt.tags != nil {
				assert.Equal(t, tt.tags, s.Tags)
			}
		})
	}
}

func TestLineFramer(t *testing.T) {
	f := NewLineFramer()
	dropped := 0
	f.OnOverflow = func() { dropped++ }
	var got []string
	emit := func(b []byte) { got = append(got, string(b)) }

	f.Push([]byte("$GPGGA,1"), emit)
	assert.Empty(t, got)
	f.Push([]byte(",2*00\r\n\r\n$GPRMC"), emit)
	f.Push([]byte(",3\n"), emit)
	assert.Equal(t, []string{"$GPGGA,1,2*00", "$GPRMC,3"}, got)

	got = nil
	long := make([]byte, MaxLineLength+10)
	for i := range long {
		long[i] = 'x'
	}
	f.Push(long, emit)
	f.Push([]byte("\r\n$OK\r\n"), emit)
	assert.Equal(t, []string{"$OK"}, got)
	assert.Equal(t, 1, f.Overflows)
	assert.Equal(t, 1, dropped)

	f.Push([]byte("$PARTIAL"), emit)
	f.Reset()
	f.Push([]byte("\n"), emit)
	assert.Equal(t, []string{"$OK"}, got)
}
