// Package scheduler builds the presence payload and pushes it to the
// connection, once when a session starts, then on a fixed cadence and on
// demand.
package scheduler

import (
	"log/slog"
	"time"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/discord"
	"tools.zach/dev/editorcord/internal/host"
	"tools.zach/dev/editorcord/internal/logger"
	"tools.zach/dev/editorcord/internal/presence"
)

// Sender delivers an activity. A nil activity clears the card.
// *connection.Manager implements it.
type Sender interface {
	Send(activity *discord.Activity)
}

// Scheduler is not safe for concurrent use; the engine drives it from its
// loop and selects on C.
type Scheduler struct {
	host   host.Host
	start  func() int64
	sender Sender
	log    *slog.Logger

	ticker   *time.Ticker
	interval time.Duration
	// hidden records whether the last send was a privacy clear.
	hidden bool
}

// New returns a stopped scheduler. start supplies the timer's current start
// timestamp at each build.
func New(h host.Host, start func() int64, sender Sender) *Scheduler {
	return &Scheduler{
		host:   h,
		start:  start,
		sender: sender,
		log:    logger.Component("scheduler"),
	}
}

// Running reports whether the periodic cadence is armed.
func (s *Scheduler) Running() bool { return s.ticker != nil }

// C delivers periodic ticks while running. It is nil while stopped so a
// select on it never fires.
func (s *Scheduler) C() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

// Start sends immediately and arms the cadence. Starting a running
// scheduler only sends.
func (s *Scheduler) Start() {
	s.Refresh()
	if s.ticker != nil {
		return
	}
	s.interval = intervalOf(s.host.Configuration())
	s.ticker = time.NewTicker(s.interval)
	s.log.Debug("cadence armed", "interval", s.interval)
}

// Stop cancels the cadence. It is idempotent.
func (s *Scheduler) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.log.Debug("cadence stopped")
}

// Reschedule picks up a changed update interval while running.
func (s *Scheduler) Reschedule() {
	if s.ticker == nil {
		return
	}
	if d := intervalOf(s.host.Configuration()); d != s.interval {
		s.interval = d
		s.ticker.Reset(d)
		s.log.Debug("cadence changed", "interval", d)
	}
}

// Tick handles one periodic tick.
func (s *Scheduler) Tick() {
	s.Refresh()
}

// Refresh builds a payload from fresh snapshots and sends it. Inside an
// ignored workspace folder the card is cleared instead.
func (s *Scheduler) Refresh() {
	cfg := s.host.Configuration()
	ctx := s.host.EditorContext()

	if cfg.IsIgnored(ctx.WorkspaceFolderPath) {
		if !s.hidden {
			s.log.Info("presence hidden for ignored folder")
			s.hidden = true
		}
		s.sender.Send(nil)
		return
	}
	if s.hidden {
		s.log.Info("presence restored")
		s.hidden = false
	}

	p := presence.Build(cfg, ctx, s.start())
	logger.Trace(s.log, "sending presence", "details", p.Details, "state", p.State)
	s.sender.Send(presence.ToActivity(p))
}

func intervalOf(cfg *config.Config) time.Duration {
	if n := cfg.Behavior.UpdateIntervalSeconds; n > 0 {
		return time.Duration(n) * time.Second
	}
	return 5 * time.Second
}
