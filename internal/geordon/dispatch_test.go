package geordon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/geordon/internal/protocol/frame"
	"github.com/danmuck/geordon/internal/protocol/message"
	"github.com/danmuck/geordon/internal/protocol/session"
	"github.com/danmuck/geordon/internal/telemetry"
	"github.com/danmuck/geordon/internal/testutil/testlog"
)

type recordingSender struct {
	sent   []message.Message
	reject func(message.Message) error
}

func (s *recordingSender) Send(m message.Message) error {
	if s.reject != nil {
		if err := s.reject(m); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, m)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type recordingSink struct {
	events []telemetry.Event
}

func (s *recordingSink) Publish(ev telemetry.Event) {
	s.events = append(s.events, ev)
}

type harness struct {
	client  *Client
	out     *recordingSender
	clock   *fakeClock
	console *bytes.Buffer
	sink    *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)
	h := &harness{
		out:     &recordingSender{},
		clock:   &fakeClock{now: time.Unix(1700000000, 0)},
		console: &bytes.Buffer{},
		sink:    &recordingSink{},
	}
	h.client = New(h.out, DefaultConfig(),
		WithConsole(h.console),
		WithClock(h.clock.Now),
		WithSink(h.sink),
	)
	return h
}

func (h *harness) command(t *testing.T, line string) {
	t.Helper()
	h.client.Commands().Push(line)
	h.step(t)
}

func (h *harness) deliver(t *testing.T, m message.Message) {
	t.Helper()
	h.client.Inbound().Push(m)
	h.step(t)
}

func (h *harness) step(t *testing.T) bool {
	t.Helper()
	worked, err := h.client.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	return worked
}

func filledRow(v byte) message.GDHalfRow {
	var row message.GDHalfRow
	for i := range row.Cells {
		row.Cells[i] = v
	}
	return row
}

func requested(t *testing.T, sent []message.Message) []uint8 {
	t.Helper()
	var out []uint8
	for _, m := range sent {
		req, ok := m.(message.GDReqHalfRow)
		if !ok {
			t.Fatalf("expected only half-row requests, got %T", m)
		}
		out = append(out, req.Index)
	}
	return out
}

func TestRowsSingleRowFetch(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 5")
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{5}) {
		t.Fatalf("expected request for 5, got %v", got)
	}
	if fs := h.client.Fetch(); !fs.Active || fs.Next != 5 || fs.End != 6 {
		t.Fatalf("unexpected cursor: %+v", fs)
	}

	h.deliver(t, message.GDHalfRow{})
	snap := h.client.Grid().Snapshot()
	for i := 5 * 64; i < 6*64; i++ {
		if snap[i] != 0 {
			t.Fatalf("cell %d expected 0, got %d", i, snap[i])
		}
	}
	if snap[5*64-1] != UnknownCell || snap[6*64] != UnknownCell {
		t.Fatalf("neighbouring cells changed")
	}
	if h.client.Fetch().Active {
		t.Fatalf("cursor must be idle after the only half-row")
	}
	if len(h.out.sent) != 1 {
		t.Fatalf("completion must not request more rows, sent=%v", h.out.sent)
	}
	if !strings.Contains(h.console.String(), "rows fetched in") {
		t.Fatalf("expected completion notice, console=%q", h.console.String())
	}

	// unsolicited half-row
	h.deliver(t, filledRow(7))
	if got := h.client.Grid().Snapshot(); !bytes.Equal(got, snap) {
		t.Fatalf("unsolicited half-row changed the grid")
	}
	if len(h.out.sent) != 1 {
		t.Fatalf("unsolicited half-row must not send, sent=%v", h.out.sent)
	}
}

func TestRowsMultiRowOrdering(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 2 5")
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{2}) {
		t.Fatalf("expected only index 2 requested, got %v", got)
	}

	h.deliver(t, filledRow(30))
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{2, 3}) {
		t.Fatalf("expected 3 requested after 2 consumed, got %v", got)
	}
	h.deliver(t, filledRow(10))
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{2, 3, 4}) {
		t.Fatalf("expected 4 requested after 3 consumed, got %v", got)
	}
	h.deliver(t, filledRow(20))
	if len(h.out.sent) != 3 {
		t.Fatalf("no request after the last index, sent=%v", h.out.sent)
	}

	g := h.client.Grid()
	for index, want := range map[uint8]byte{2: 30, 3: 10, 4: 20} {
		if row := g.HalfRow(index); row != filledRow(want).Cells {
			t.Fatalf("half-row %d expected %d", index, want)
		}
	}
	if h.client.Fetch().Active {
		t.Fatalf("cursor must be idle")
	}

	var kinds []telemetry.Kind
	for _, ev := range h.sink.events {
		kinds = append(kinds, ev.Kind)
	}
	want := []telemetry.Kind{telemetry.KindHalfRow, telemetry.KindHalfRow, telemetry.KindHalfRow, telemetry.KindFetchComplete}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	last := h.sink.events[len(h.sink.events)-1]
	if len(last.Cells) != GridSize*GridSize {
		t.Fatalf("completion event must carry the whole grid, got %d cells", len(last.Cells))
	}
}

func TestRowsTimeoutResend(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 9")

	h.clock.Advance(5 * time.Second)
	h.step(t)
	if len(h.out.sent) != 1 {
		t.Fatalf("no resend at exactly the threshold, sent=%v", h.out.sent)
	}

	h.clock.Advance(time.Millisecond)
	if !h.step(t) {
		t.Fatalf("resend must count as work")
	}
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{9, 9}) {
		t.Fatalf("expected one resend of 9, got %v", got)
	}
	h.step(t)
	h.step(t)
	if len(h.out.sent) != 2 {
		t.Fatalf("resend must reset the activity timer, sent=%v", h.out.sent)
	}

	h.clock.Advance(5*time.Second + time.Millisecond)
	h.step(t)
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{9, 9, 9}) {
		t.Fatalf("expected indefinite fixed-interval resends, got %v", got)
	}
}

func TestRowsResponseBeforeThresholdSuppressesResend(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 2 5")
	h.clock.Advance(4999 * time.Millisecond)
	h.deliver(t, filledRow(1))
	h.clock.Advance(2 * time.Millisecond)
	h.step(t)
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{2, 3}) {
		t.Fatalf("expected no resend, got %v", got)
	}
	h.clock.Advance(5 * time.Second)
	h.step(t)
	if got := requested(t, h.out.sent); !reflect.DeepEqual(got, []uint8{2, 3, 3}) {
		t.Fatalf("expected resend of pending index 3, got %v", got)
	}
}

func TestRowsWhileActiveRestartsRange(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 0 10")
	h.command(t, "rows 40 42")
	if fs := h.client.Fetch(); fs.Next != 40 || fs.End != 42 {
		t.Fatalf("expected cursor on [40,42), got %+v", fs)
	}
	h.deliver(t, filledRow(3))
	if row := h.client.Grid().HalfRow(40); row != filledRow(3).Cells {
		t.Fatalf("half-row applied to the wrong index")
	}
}

func TestBuildResetsGridAndKeepsCursor(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 0 3")
	h.deliver(t, filledRow(0))
	before := h.client.Fetch()

	h.command(t, "build")
	if _, ok := h.out.sent[len(h.out.sent)-1].(message.GDBuild); !ok {
		t.Fatalf("expected GDBuild sent, got %T", h.out.sent[len(h.out.sent)-1])
	}
	for i, v := range h.client.Grid().Snapshot() {
		if v != UnknownCell {
			t.Fatalf("cell %d expected %d after build, got %d", i, UnknownCell, v)
		}
	}
	if after := h.client.Fetch(); after != before {
		t.Fatalf("build must leave the cursor untouched: before=%+v after=%+v", before, after)
	}
	if last := h.sink.events[len(h.sink.events)-1]; last.Kind != telemetry.KindGridReset {
		t.Fatalf("expected grid reset event, got %s", last.Kind)
	}
}

func TestControlCommandsSend(t *testing.T) {
	h := newHarness(t)
	h.command(t, "finish")
	h.command(t, "aligned")
	h.command(t, "fakerow")
	want := []message.Message{message.GDFinish{}, message.GDAligned{}, message.GDHalfRow{}}
	if !reflect.DeepEqual(h.out.sent, want) {
		t.Fatalf("expected %v, got %v", want, h.out.sent)
	}
	if h.client.Fetch().Active {
		t.Fatalf("fakerow must not touch the cursor")
	}
}

func TestMalformedInitSendsNothing(t *testing.T) {
	h := newHarness(t)
	h.command(t, "init 3 1.0 2.0 0.5")
	if len(h.out.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", h.out.sent)
	}
	if !strings.Contains(h.console.String(), "usage: init") {
		t.Fatalf("expected usage message, console=%q", h.console.String())
	}
	if h.client.Pose() != (message.Point{}) {
		t.Fatalf("pose changed on rejected init")
	}
}

func TestInitThenTurnTracksPose(t *testing.T) {
	h := newHarness(t)
	h.client.Inbound().Push(message.Movement{Point: message.Point{X: 9, Y: 9, Angle: 2}})
	h.step(t)

	h.command(t, "init 3 1 2 0 0 4 0")
	want := message.Initialize{NT: 3, RA: message.Coordinate{X: 1, Y: 2}, BD: []message.Coordinate{{X: 0, Y: 0}, {X: 4, Y: 0}}}
	if !reflect.DeepEqual(h.out.sent[0], want) {
		t.Fatalf("expected %#v, got %#v", want, h.out.sent[0])
	}
	if p := h.client.Pose(); p != (message.Point{X: 1, Y: 2}) {
		t.Fatalf("expected pose reset to (1,2,0), got %+v", p)
	}

	h.command(t, "turn 0.5")
	h.command(t, "turn 0.25")
	mv, ok := h.out.sent[2].(message.Movement)
	if !ok {
		t.Fatalf("expected Movement, got %T", h.out.sent[2])
	}
	if mv.Point != (message.Point{X: 1, Y: 2, Angle: 0.75}) {
		t.Fatalf("unexpected turn movement: %+v", mv.Point)
	}
}

func TestMoveDoesNotChangeTrackedPose(t *testing.T) {
	h := newHarness(t)
	h.command(t, "move 1 2 3 4 5")
	if !reflect.DeepEqual(h.out.sent, []message.Message{message.Movement{Point: message.Point{X: 1, Y: 2, V: 3, Angle: 4, AV: 5}}}) {
		t.Fatalf("unexpected sends: %v", h.out.sent)
	}
	if h.client.Pose() != (message.Point{}) {
		t.Fatalf("move must wait for the controller to report pose")
	}
	h.deliver(t, message.Movement{Point: message.Point{X: 1, Y: 2, Angle: 4}})
	if h.client.Pose() != (message.Point{X: 1, Y: 2, Angle: 4}) {
		t.Fatalf("inbound movement must update pose, got %+v", h.client.Pose())
	}
}

func TestPingRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.command(t, "ping")
	if !reflect.DeepEqual(h.out.sent, []message.Message{message.GDReqPing{}}) {
		t.Fatalf("expected GDReqPing, got %v", h.out.sent)
	}
	h.clock.Advance(15 * time.Millisecond)
	h.deliver(t, message.GDPing{})
	if !strings.Contains(h.console.String(), "ping rtt: 15ms") {
		t.Fatalf("expected rtt report, console=%q", h.console.String())
	}

	h.console.Reset()
	h.deliver(t, message.GDPing{})
	if h.console.Len() != 0 {
		t.Fatalf("stray ping must only be logged, console=%q", h.console.String())
	}
}

func TestPeerRequestsAnswered(t *testing.T) {
	h := newHarness(t)
	h.deliver(t, message.ReqName{})
	h.deliver(t, message.GDReqPing{})
	want := []message.Message{message.NameDebugGeordon{}, message.GDPing{}}
	if !reflect.DeepEqual(h.out.sent, want) {
		t.Fatalf("expected %v, got %v", want, h.out.sent)
	}
}

func TestIgnoredAndUnknownMessagesChangeNothing(t *testing.T) {
	h := newHarness(t)
	before := h.client.Grid().Snapshot()
	for _, m := range []message.Message{
		message.Heartbeat{},
		message.ReqNetstats{},
		message.Unknown{Tag: "GDTelemetry", Payload: []byte(`{"battery":87}`)},
		message.GDFinish{},
	} {
		h.deliver(t, m)
	}
	h.deliver(t, message.DebugGeordon{Text: "aligned to anchor"})
	if len(h.out.sent) != 0 {
		t.Fatalf("expected no sends, got %v", h.out.sent)
	}
	if !bytes.Equal(before, h.client.Grid().Snapshot()) {
		t.Fatalf("grid changed")
	}
	if h.console.String() != "debug: aligned to anchor\n" {
		t.Fatalf("unexpected console output %q", h.console.String())
	}
}

func TestOperatorErrorsAreReported(t *testing.T) {
	h := newHarness(t)
	h.command(t, "jump 1")
	h.command(t, "")
	h.command(t, "rows 5 2")
	out := h.console.String()
	if !strings.Contains(out, "unrecognized command") || !strings.Contains(out, "commands:") {
		t.Fatalf("expected notice and help listing, console=%q", out)
	}
	if !strings.Contains(out, "usage: rows") {
		t.Fatalf("expected rows usage, console=%q", out)
	}
	if len(h.out.sent) != 0 || h.client.Fetch().Active {
		t.Fatalf("rejected commands must not act")
	}
}

func TestEncodeFailureIsReportedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.out.reject = func(m message.Message) error {
		if _, ok := m.(message.Initialize); ok {
			return fmt.Errorf("%w: %w", session.ErrEncode, frame.ErrBodyTooLarge)
		}
		return nil
	}
	h.command(t, "init 1 5 5 0 0 1 1")
	if len(h.out.sent) != 0 {
		t.Fatalf("nothing must be written, got %v", h.out.sent)
	}
	if h.client.Pose() != (message.Point{}) {
		t.Fatalf("pose must not change when init was not sent")
	}
	if !strings.Contains(h.console.String(), "error: Initialize not sent") {
		t.Fatalf("expected loud report, console=%q", h.console.String())
	}
	h.command(t, "ping")
	if len(h.out.sent) != 1 {
		t.Fatalf("client must keep working after an encode failure")
	}
}

func TestWriteFailureIsTransportFatal(t *testing.T) {
	h := newHarness(t)
	h.out.reject = func(message.Message) error { return io.ErrClosedPipe }
	h.client.Commands().Push("ping")
	_, err := h.client.Step()
	if !errors.Is(err, ErrTransport) || !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected ErrTransport wrapping ErrClosedPipe, got %v", err)
	}
}

func TestProducerExhaustionIsFatal(t *testing.T) {
	h := newHarness(t)
	h.client.Inbound().Push(message.Heartbeat{})
	h.client.Inbound().Close(io.EOF)
	h.step(t)
	_, err := h.client.Step()
	if !errors.Is(err, ErrConnectionLost) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected ErrConnectionLost wrapping EOF, got %v", err)
	}

	h = newHarness(t)
	h.client.Commands().Close(io.EOF)
	_, err = h.client.Step()
	if !errors.Is(err, ErrInputLost) {
		t.Fatalf("expected ErrInputLost, got %v", err)
	}
}

func TestRunStopsOnFatalAndContext(t *testing.T) {
	h := newHarness(t)
	h.client.Commands().Push("ping")
	h.client.Commands().Close(io.EOF)
	err := h.client.Run(context.Background())
	if !errors.Is(err, ErrInputLost) {
		t.Fatalf("expected ErrInputLost, got %v", err)
	}
	if len(h.out.sent) != 1 {
		t.Fatalf("queued command must run before exhaustion is reported, sent=%v", h.out.sent)
	}

	h = newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.client.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestHalfRowScoresSaturateInGridAndEvents(t *testing.T) {
	h := newHarness(t)
	h.command(t, "rows 7")
	h.deliver(t, filledRow(200))
	if row := h.client.Grid().HalfRow(7); row != filledRow(MaxCell).Cells {
		t.Fatalf("expected saturated half-row, got %v", row)
	}
	ev := h.sink.events[0]
	want := filledRow(MaxCell)
	if ev.Kind != telemetry.KindHalfRow || !bytes.Equal(ev.Cells, want.Cells[:]) {
		t.Fatalf("half-row event must carry stored scores, got %+v", ev)
	}
}

func TestOversizedOperatorLineKeepsClientRunning(t *testing.T) {
	h := newHarness(t)
	input := strings.Repeat("x", 70000) + "\nping\n"
	if err := CommandLoop(strings.NewReader(input), h.client.Commands()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	h.step(t)
	h.step(t)
	if !strings.Contains(h.console.String(), "unrecognized command") {
		t.Fatalf("expected long line reported as unrecognized, console len=%d", h.console.Len())
	}
	if !reflect.DeepEqual(h.out.sent, []message.Message{message.GDReqPing{}}) {
		t.Fatalf("expected ping after the long line, got %v", h.out.sent)
	}
	if _, err := h.client.Step(); !errors.Is(err, ErrInputLost) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected end of input only after both lines, got %v", err)
	}
}
