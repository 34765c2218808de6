package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const headerSize = 5

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrBodyTooLarge   = errors.New("frame body too large")
)

// Frame is one message on the wire. Response frames carry Code and no
// Body; every other command carries Body and no Code.
type Frame struct {
	Command Command
	ID      uint16
	Code    Code
	Body    string
}

func StringMessage(cmd Command, id uint16, body string) Frame {
	return Frame{Command: cmd, ID: id, Body: body}
}

func ResponseFrame(id uint16, code Code) Frame {
	return Frame{Command: Response, ID: id, Code: code}
}

func OKFrame(id uint16) Frame {
	return ResponseFrame(id, OK)
}

func IllegalCommandFrame(id uint16) Frame {
	return ResponseFrame(id, IllegalCommand)
}

func IllegalCommandBodyFrame(id uint16) Frame {
	return ResponseFrame(id, IllegalCommandBody)
}

func (f Frame) String() string {
	if f.Command == Response {
		return fmt.Sprintf("%s id=%d code=%s", f.Command, f.ID, f.Code)
	}
	return fmt.Sprintf("%s id=%d body=%q", f.Command, f.ID, f.Body)
}

// Encode lays the frame out as cmd(1) id(2) len-or-code(2) body, all
// integers big endian.
func Encode(f Frame) ([]byte, error) {
	if f.Command == Response {
		buf := make([]byte, headerSize)
		buf[0] = byte(f.Command)
		binary.BigEndian.PutUint16(buf[1:3], f.ID)
		binary.BigEndian.PutUint16(buf[3:5], uint16(f.Code))
		return buf, nil
	}
	if len(f.Body) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(f.Body))
	}
	buf := make([]byte, headerSize+len(f.Body))
	buf[0] = byte(f.Command)
	binary.BigEndian.PutUint16(buf[1:3], f.ID)
	binary.BigEndian.PutUint16(buf[3:5], uint16(len(f.Body)))
	copy(buf[headerSize:], f.Body)
	return buf, nil
}

func Decode(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, fmt.Errorf("%w: %d byte header", ErrMalformedFrame, len(data))
	}
	f := Frame{
		Command: Command(data[0]),
		ID:      binary.BigEndian.Uint16(data[1:3]),
	}
	n := binary.BigEndian.Uint16(data[3:5])
	if f.Command == Response {
		if len(data) != headerSize {
			return Frame{}, fmt.Errorf("%w: response with body", ErrMalformedFrame)
		}
		f.Code = Code(n)
		return f, nil
	}
	if int(n) != len(data)-headerSize {
		return Frame{}, fmt.Errorf("%w: length %d, have %d", ErrMalformedFrame, n, len(data)-headerSize)
	}
	f.Body = string(data[headerSize:])
	return f, nil
}
