package geordon

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/observability"
	"github.com/danmuck/geordon/internal/protocol/message"
	"github.com/danmuck/geordon/internal/protocol/session"
)

// Receiver yields decoded inbound messages. *session.Conn satisfies it.
type Receiver interface {
	Receive() (message.Message, error)
}

// ReadLoop forwards every decoded message to out in wire order. Bodies that
// fail to decode are logged and skipped. Any other receive error closes out
// with that error as the cause and is returned.
func ReadLoop(r Receiver, out *session.Queue[message.Message]) error {
	for {
		m, err := r.Receive()
		if err != nil {
			if errors.Is(err, session.ErrInvalidMessage) {
				observability.RecordDecodeFailure()
				logging.Warnf("geordon: discarded frame: %v", err)
				continue
			}
			out.Close(err)
			return err
		}
		observability.RecordFrame(observability.DirectionIn, frameLabel(m))
		if !out.Push(m) {
			return session.ErrQueueClosed
		}
	}
}

// CommandLoop forwards operator lines to out until end of input, then
// closes out with io.EOF or the read error. Lines have no length limit; a
// final line without a newline is still forwarded.
func CommandLoop(r io.Reader, out *session.Queue[string]) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 || err == nil {
			if !out.Push(strings.TrimRight(line, "\r\n")) {
				return session.ErrQueueClosed
			}
		}
		if err != nil {
			out.Close(err)
			return err
		}
	}
}

func frameLabel(m message.Message) string {
	if !message.Known(m.Kind()) {
		return "unknown"
	}
	return string(m.Kind())
}
