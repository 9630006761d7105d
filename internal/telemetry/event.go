// Package telemetry fans decoded client state out to external consumers:
// renderers on the websocket feed, a NATS subject tree, and a Redis shadow.
// Publishing never blocks the dispatch loop.
package telemetry

import (
	"time"

	"github.com/danmuck/geordon/internal/protocol/message"
)

type Kind string

const (
	KindPose          Kind = "pose"
	KindDebug         Kind = "debug"
	KindHalfRow       Kind = "half_row"
	KindFetchComplete Kind = "fetch_complete"
	KindGridReset     Kind = "grid_reset"
	KindPing          Kind = "ping"
)

// Event is one state change observed by the dispatch loop. Byte slices are
// owned by the event.
type Event struct {
	Kind      Kind           `json:"kind"`
	At        time.Time      `json:"at"`
	Pose      *message.Point `json:"pose,omitempty"`
	Text      string         `json:"text,omitempty"`
	Index     *int           `json:"index,omitempty"`
	Cells     []byte         `json:"cells,omitempty"`
	ElapsedMS int64          `json:"elapsed_ms,omitempty"`
}

// Sink accepts events without blocking.
type Sink interface {
	Publish(Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

func PoseEvent(at time.Time, p message.Point) Event {
	return Event{Kind: KindPose, At: at, Pose: &p}
}

func DebugEvent(at time.Time, text string) Event {
	return Event{Kind: KindDebug, At: at, Text: text}
}

func HalfRowEvent(at time.Time, index int, cells []byte) Event {
	return Event{Kind: KindHalfRow, At: at, Index: &index, Cells: cloneBytes(cells)}
}

// FetchCompleteEvent carries a full grid snapshot.
func FetchCompleteEvent(at time.Time, elapsed time.Duration, grid []byte) Event {
	return Event{Kind: KindFetchComplete, At: at, ElapsedMS: elapsed.Milliseconds(), Cells: cloneBytes(grid)}
}

func GridResetEvent(at time.Time, grid []byte) Event {
	return Event{Kind: KindGridReset, At: at, Cells: cloneBytes(grid)}
}

func PingEvent(at time.Time, rtt time.Duration) Event {
	return Event{Kind: KindPing, At: at, ElapsedMS: rtt.Milliseconds()}
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
