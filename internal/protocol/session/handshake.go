package session

import (
	"errors"
	"fmt"
	"io"
)

var ErrHandshake = errors.New("session: greeting write failed")

// Greeting is the one-shot, unacknowledged announcement sent right after
// connect: "HELLO" bracketed by 0x2A.
var Greeting = [7]byte{0x2A, 'H', 'E', 'L', 'L', 'O', 0x2A}

func WriteGreeting(w io.Writer) error {
	n, err := w.Write(Greeting[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if n != len(Greeting) {
		return fmt.Errorf("%w: %w", ErrHandshake, io.ErrShortWrite)
	}
	return nil
}
