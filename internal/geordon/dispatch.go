package geordon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/observability"
	"github.com/danmuck/geordon/internal/protocol/message"
	"github.com/danmuck/geordon/internal/protocol/session"
	"github.com/danmuck/geordon/internal/telemetry"
)

// Run steps the dispatch loop until a fatal error or ctx is done. When both
// queues are idle it waits for a producer signal or PollInterval.
func (c *Client) Run(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked, err := c.Step()
		if err != nil {
			return err
		}
		if worked {
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.inbound.Ready():
		case <-c.commands.Ready():
		case <-timer.C:
		}
	}
}

// Step runs one iteration without blocking: the fetch retry check, at most
// one inbound message, then at most one command line. worked reports whether
// anything was consumed or sent.
func (c *Client) Step() (worked bool, err error) {
	resent, err := c.checkRetry()
	if err != nil {
		return false, err
	}
	worked = resent

	m, ok, err := c.inbound.TryPop()
	if err != nil {
		return worked, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	if ok {
		worked = true
		if err := c.handleMessage(m); err != nil {
			return worked, err
		}
	}

	line, ok, err := c.commands.TryPop()
	if err != nil {
		return worked, fmt.Errorf("%w: %w", ErrInputLost, err)
	}
	if ok {
		worked = true
		if err := c.handleLine(line); err != nil {
			return worked, err
		}
	}
	return worked, nil
}

func (c *Client) checkRetry() (bool, error) {
	now := c.now()
	if !c.fetch.RetryDue(now, c.cfg.RowRetryInterval) {
		return false, nil
	}
	index, _ := c.fetch.Current()
	logging.Warnf("geordon: no half-row for %s, resending index=%d", c.cfg.RowRetryInterval, index)
	if _, err := c.send(message.GDReqHalfRow{Index: index}); err != nil {
		return false, err
	}
	observability.RecordRowFetchResend()
	c.fetch.Touch(now)
	return true, nil
}

// send returns sent=false with a nil error when m could not be encoded; that
// is reported and the loop continues. Any other failure is fatal.
func (c *Client) send(m message.Message) (bool, error) {
	err := c.out.Send(m)
	if err == nil {
		observability.RecordFrame(observability.DirectionOut, string(m.Kind()))
		return true, nil
	}
	if errors.Is(err, session.ErrEncode) {
		logging.Errorf("geordon: dropped outgoing %s: %v", m.Kind(), err)
		observability.RecordOperatorError("encode")
		c.printf("error: %s not sent: %v\n", m.Kind(), err)
		return false, nil
	}
	return false, fmt.Errorf("%w: send %s: %w", ErrTransport, m.Kind(), err)
}

func (c *Client) handleMessage(m message.Message) error {
	now := c.now()
	switch v := m.(type) {
	case message.ReqName:
		_, err := c.send(message.NameDebugGeordon{})
		return err
	case message.Heartbeat, message.ReqNetstats:
		logging.Debugf("geordon: %s", m.Kind())
	case message.DebugGeordon:
		c.printf("debug: %s\n", v.Text)
		c.sink.Publish(telemetry.DebugEvent(now, v.Text))
	case message.Movement:
		c.pose = v.Point
		c.sink.Publish(telemetry.PoseEvent(now, v.Point))
	case message.GDPing:
		if !c.pingPending {
			c.anomaly(m, "no ping outstanding")
			return nil
		}
		rtt := now.Sub(c.pingSentAt)
		c.pingPending = false
		observability.RecordPingRTT(rtt)
		c.printf("ping rtt: %s\n", rtt)
		c.sink.Publish(telemetry.PingEvent(now, rtt))
	case message.GDReqPing:
		_, err := c.send(message.GDPing{})
		return err
	case message.GDHalfRow:
		return c.handleHalfRow(v, now)
	case message.Unknown:
		logging.Warnf("geordon: unknown message tag=%q payload_bytes=%d", v.Tag, len(v.Payload))
	default:
		logging.Infof("geordon: unhandled message kind=%s", m.Kind())
	}
	return nil
}

func (c *Client) handleHalfRow(row message.GDHalfRow, now time.Time) error {
	step, ok := c.fetch.Advance(now)
	if !ok {
		c.anomaly(row, "no fetch in flight")
		return nil
	}
	c.grid.ApplyHalfRow(step.Index, row.Cells)
	stored := c.grid.HalfRow(step.Index)
	c.sink.Publish(telemetry.HalfRowEvent(now, int(step.Index), stored[:]))
	if step.Done {
		observability.RecordRowFetchComplete(step.Elapsed)
		c.printf("rows fetched in %s\n", step.Elapsed)
		c.sink.Publish(telemetry.FetchCompleteEvent(now, step.Elapsed, c.grid.Snapshot()))
		return nil
	}
	_, err := c.send(message.GDReqHalfRow{Index: step.Next})
	return err
}

func (c *Client) anomaly(m message.Message, reason string) {
	observability.RecordAnomaly(string(m.Kind()))
	logging.Warnf("geordon: protocol anomaly kind=%s: %s", m.Kind(), reason)
}

func (c *Client) handleLine(line string) error {
	cmd, err := ParseCommand(line)
	switch {
	case errors.Is(err, ErrUsage):
		observability.RecordOperatorError("usage")
		c.printf("%v\n", err)
		return nil
	case errors.Is(err, ErrUnknownCommand):
		observability.RecordOperatorError("unknown")
		c.printf("%v\n%s", err, HelpText())
		return nil
	case err != nil:
		return err
	case cmd == nil:
		return nil
	}
	return c.execute(cmd)
}

func (c *Client) execute(cmd Command) error {
	now := c.now()
	switch v := cmd.(type) {
	case MoveCommand:
		_, err := c.send(message.Movement{Point: v.Point})
		return err
	case TurnCommand:
		next := c.pose
		next.Angle += v.Delta
		next.V = 0
		next.AV = 0
		sent, err := c.send(message.Movement{Point: next})
		if sent {
			c.pose = next
			c.sink.Publish(telemetry.PoseEvent(now, next))
		}
		return err
	case RowsCommand:
		if c.fetch.Active() {
			logging.Infof("geordon: restarting fetch, dropping %d pending half-rows", c.fetch.Pending())
		}
		first := c.fetch.Begin(v.Start, v.End, now)
		_, err := c.send(message.GDReqHalfRow{Index: first})
		return err
	case FakeRowCommand:
		_, err := c.send(message.GDHalfRow{})
		return err
	case PingCommand:
		sent, err := c.send(message.GDReqPing{})
		if sent {
			c.pingPending = true
			c.pingSentAt = now
		}
		return err
	case ControlCommand:
		sent, err := c.send(v.Message)
		if sent && v.Message.Kind() == message.KindGDBuild {
			c.grid.Reset()
			c.sink.Publish(telemetry.GridResetEvent(now, c.grid.Snapshot()))
		}
		return err
	case InitCommand:
		msg := message.Initialize{
			NT: v.NT,
			RA: message.Coordinate{X: v.X, Y: v.Y},
			BD: v.Border,
		}
		sent, err := c.send(msg)
		if sent {
			c.pose = message.Point{X: v.X, Y: v.Y}
			c.sink.Publish(telemetry.PoseEvent(now, c.pose))
		}
		return err
	case HelpCommand:
		c.printf("%s", HelpText())
	}
	return nil
}
