package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/chattrigger/internal/observe"
)

// Target selects where a reply is delivered.
type Target int

const (
	// TargetDirect sends to a single participant.
	TargetDirect Target = iota
	// TargetRoom sends to a room.
	TargetRoom
)

// String returns "direct" or "room".
func (t Target) String() string {
	switch t {
	case TargetDirect:
		return "direct"
	case TargetRoom:
		return "room"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// DelayedSender sends replies through a [Client], either immediately or after
// the trigger's configured delay.
type DelayedSender struct {
	client  Client
	delay   time.Duration
	sched   *Scheduler
	trigger string
	logger  *slog.Logger
	metrics *observe.Metrics
}

// NewDelayedSender returns a sender for the named trigger. A delay of zero
// sends synchronously.
func NewDelayedSender(client Client, delay time.Duration, sched *Scheduler, trigger string, logger *slog.Logger, m *observe.Metrics) *DelayedSender {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &DelayedSender{
		client:  client,
		delay:   delay,
		sched:   sched,
		trigger: trigger,
		logger:  logger,
		metrics: m,
	}
}

// Delay returns the configured delay.
func (s *DelayedSender) Delay() time.Duration { return s.delay }

// Send delivers text to id. Without a delay the send happens on the calling
// goroutine and its error is returned. With a delay the send is scheduled
// and only a scheduling failure is returned; a failed deferred send is logged.
// Deferred sends outlive ctx cancellation but keep its values.
func (s *DelayedSender) Send(ctx context.Context, target Target, id, text string) error {
	if s.delay <= 0 {
		err := s.deliver(ctx, target, id, text)
		s.record(ctx, target, "immediate", err)
		if err != nil {
			return fmt.Errorf("trigger: send %s %s: %w", target, id, err)
		}
		return nil
	}

	dctx := context.WithoutCancel(ctx)
	_, err := s.sched.Schedule(s.delay, func() {
		err := s.deliver(dctx, target, id, text)
		s.record(dctx, target, "delayed", err)
		if err != nil {
			s.logger.Error("delayed send failed",
				"target", target.String(), "id", id, "delay", s.delay, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("trigger: schedule send to %s: %w", id, err)
	}
	s.logger.Debug("reply scheduled", "target", target.String(), "id", id, "delay", s.delay)
	return nil
}

// SendDirect is shorthand for Send(ctx, TargetDirect, userID, text).
func (s *DelayedSender) SendDirect(ctx context.Context, userID, text string) error {
	return s.Send(ctx, TargetDirect, userID, text)
}

// SendRoom is shorthand for Send(ctx, TargetRoom, roomID, text).
func (s *DelayedSender) SendRoom(ctx context.Context, roomID, text string) error {
	return s.Send(ctx, TargetRoom, roomID, text)
}

func (s *DelayedSender) deliver(ctx context.Context, target Target, id, text string) error {
	switch target {
	case TargetDirect:
		return s.client.SendDirectMessage(ctx, id, text)
	case TargetRoom:
		return s.client.SendRoomMessage(ctx, id, text)
	default:
		return fmt.Errorf("unknown target %v", target)
	}
}

func (s *DelayedSender) record(ctx context.Context, target Target, mode string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordSend(ctx, s.trigger, target.String(), mode, status)
}
