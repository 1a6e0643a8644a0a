package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/chattrigger/internal/trigger"
)

// dryRun is the transport used when none is configured. It reports a logon
// for the lifetime of Run and logs every outbound call instead of sending it,
// which lets operators check a trigger set before pointing it at a network.
type dryRun struct {
	logger *slog.Logger

	mu        sync.RWMutex
	dispatch  trigger.Dispatcher
	connected bool
}

var (
	_ Transport              = (*dryRun)(nil)
	_ trigger.RoomManager    = (*dryRun)(nil)
	_ trigger.RoomController = (*dryRun)(nil)
	_ trigger.PresenceSetter = (*dryRun)(nil)
)

func newDryRun(logger *slog.Logger) *dryRun {
	return &dryRun{logger: logger}
}

func (d *dryRun) Attach(disp trigger.Dispatcher) {
	d.mu.Lock()
	d.dispatch = disp
	d.mu.Unlock()
}

func (d *dryRun) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *dryRun) Run(ctx context.Context) error {
	d.mu.Lock()
	disp := d.dispatch
	d.connected = true
	d.mu.Unlock()

	d.logger.Warn("no transport configured, outbound messages are only logged")
	if disp != nil {
		disp.LoggedOn(ctx)
	}
	<-ctx.Done()

	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	if disp != nil {
		disp.LoggedOff(context.WithoutCancel(ctx))
	}
	return nil
}

func (d *dryRun) SendDirectMessage(_ context.Context, userID, text string) error {
	d.logger.Info("dry run: direct message", "user", userID, "text", text)
	return nil
}

func (d *dryRun) SendRoomMessage(_ context.Context, roomID, text string) error {
	d.logger.Info("dry run: room message", "room", roomID, "text", text)
	return nil
}

func (d *dryRun) JoinRoom(_ context.Context, roomID string) error {
	d.logger.Info("dry run: join room", "room", roomID)
	return nil
}

func (d *dryRun) LeaveRoom(_ context.Context, roomID string) error {
	d.logger.Info("dry run: leave room", "room", roomID)
	return nil
}

func (d *dryRun) LockRoom(_ context.Context, roomID string, locked bool) error {
	d.logger.Info("dry run: lock room", "room", roomID, "locked", locked)
	return nil
}

func (d *dryRun) ModerateRoom(_ context.Context, roomID string, moderated bool) error {
	d.logger.Info("dry run: moderate room", "room", roomID, "moderated", moderated)
	return nil
}

func (d *dryRun) SetPlaying(_ context.Context, activity string) error {
	d.logger.Info("dry run: set playing", "activity", activity)
	return nil
}
