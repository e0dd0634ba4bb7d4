package navcomm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// canEFFFlag marks an extended (29 bit) identifier in the raw unit, same bit
// as the Linux CAN_EFF_FLAG.
const canEFFFlag = 0x80000000

var errShortCANFrame = errors.New("can frame too short")

// CANFrame is a single classic CAN frame as framed by the SocketCAN
// transport.
type CANFrame struct {
	Identifier uint32
	Extended   bool
	Data       []byte
}

// NewExtendedFrame creates a new CANFrame and copies the data slice
func NewExtendedFrame(identifier uint32, data []byte) *CANFrame {
	d := make([]byte, len(data))
	copy(d, data)
	return &CANFrame{
		Identifier: identifier,
		Extended:   true,
		Data:       d,
	}
}

// Returns the length of the data (DLC)
func (f *CANFrame) DLC() int {
	return len(f.Data)
}

// returns the frame as a byte slice, 4 bytes for the identifier, 1 byte for the length and the data
// if holding more than 8 bytes of data, it will be truncated
func (f *CANFrame) Bytes() []byte {
	data := make([]byte, 4, 13)
	dataLen := min(f.DLC(), 8)
	id := f.Identifier
	if f.Extended {
		id |= canEFFFlag
	}
	binary.LittleEndian.PutUint32(data, id)
	data = append(data, uint8(dataLen))
	data = append(data, f.Data[:dataLen]...)
	return data
}

// ParseCANFrame is the inverse of Bytes.
func ParseCANFrame(b []byte) (*CANFrame, error) {
	if len(b) < 5 {
		return nil, errShortCANFrame
	}
	n := int(b[4])
	if n > 8 || len(b) < 5+n {
		return nil, fmt.Errorf("invalid can frame length %d", n)
	}
	id := binary.LittleEndian.Uint32(b)
	return &CANFrame{
		Identifier: id &^ canEFFFlag,
		Extended:   id&canEFFFlag != 0,
		Data:       b[5 : 5+n],
	}, nil
}

func (f *CANFrame) String() string {
	var out strings.Builder
	if f.Extended {
		out.WriteString(fmt.Sprintf("0x%08X", f.Identifier) + " || ")
	} else {
		out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	}
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	out.WriteString(fmt.Sprintf("%-23s", hexView(f.Data)))
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Data))
	return out.String()
}

func hexView(data []byte) string {
	var hexView strings.Builder
	for i, b := range data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			hexView.WriteString(" ")
		}
	}
	return hexView.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 126 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
