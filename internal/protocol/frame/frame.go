package frame

import (
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderLen is the fixed wire header size. Bytes 0-4 are reserved and
	// always zero; byte 5 carries body_len-1.
	HeaderLen = 6
	MinBody   = 1
	MaxBody   = 256

	lenOffset = HeaderLen - 1
)

var (
	ErrShortHeader   = errors.New("frame: short fixed header")
	ErrShortBody     = errors.New("frame: short body")
	ErrEmptyBody     = errors.New("frame: empty body")
	ErrBodyTooLarge  = errors.New("frame: body too large")
	ErrInvalidHeader = errors.New("frame: invalid header")
)

// ReadFrame reads one header and exactly the body length it announces.
// Reserved header bytes are not interpreted.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortHeader, err)
	}
	n, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortBody, err)
	}
	return body, nil
}

// WriteFrame writes header and body with a single Write so two frames never
// interleave on one connection.
func WriteFrame(w io.Writer, body []byte) error {
	hdr, err := EncodeHeader(len(body))
	if err != nil {
		return err
	}
	buf := make([]byte, 0, HeaderLen+len(body))
	buf = append(buf, hdr[:]...)
	buf = append(buf, body...)
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

func EncodeHeader(bodyLen int) ([HeaderLen]byte, error) {
	var hdr [HeaderLen]byte
	if bodyLen < MinBody {
		return hdr, ErrEmptyBody
	}
	if bodyLen > MaxBody {
		return hdr, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, bodyLen, MaxBody)
	}
	hdr[lenOffset] = byte(bodyLen - 1)
	return hdr, nil
}

// DecodeHeader returns the body length announced by a fixed header.
func DecodeHeader(b []byte) (int, error) {
	if len(b) != HeaderLen {
		return 0, fmt.Errorf("%w: length %d", ErrInvalidHeader, len(b))
	}
	return int(b[lenOffset]) + 1, nil
}
