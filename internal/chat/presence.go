package chat

import (
	"context"
	"time"
)

// PresenceOptions tunes the inactivity sweep.
type PresenceOptions struct {
	SweepInterval time.Duration
	IdleAfter     time.Duration
	AwayAfter     time.Duration
	ManualTTL     time.Duration
}

func (o PresenceOptions) withDefaults() PresenceOptions {
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.IdleAfter <= 0 {
		o.IdleAfter = 10 * time.Minute
	}
	if o.AwayAfter <= o.IdleAfter {
		o.AwayAfter = 3 * o.IdleAfter
	}
	if o.ManualTTL <= 0 {
		o.ManualTTL = 30 * time.Minute
	}
	return o
}

// Transition records one status change made by a sweep.
type Transition struct {
	SessionID string
	Username  string
	From      Status
	To        Status
}

// PresenceMonitor derives idle and away statuses from session activity.
type PresenceMonitor struct {
	registry *Registry
	opts     PresenceOptions
	now      func() time.Time
	onChange func([]Transition)
}

// NewPresenceMonitor returns a monitor over registry. onChange is called
// after any sweep that changed at least one status.
func NewPresenceMonitor(registry *Registry, opts PresenceOptions, now func() time.Time, onChange func([]Transition)) *PresenceMonitor {
	if now == nil {
		now = time.Now
	}
	return &PresenceMonitor{
		registry: registry,
		opts:     opts.withDefaults(),
		now:      now,
		onChange: onChange,
	}
}

// Sweep re-evaluates every authenticated session. It must run on the
// goroutine that owns the registry.
func (m *PresenceMonitor) Sweep() []Transition {
	now := m.now()
	var changes []Transition
	for _, s := range m.registry.All() {
		if !s.Authenticated() {
			continue
		}
		if s.ManualStatus {
			if now.Sub(s.ManualAt) < m.opts.ManualTTL {
				continue
			}
			s.ManualStatus = false
		}

		inactive := now.Sub(s.LastSeen)
		next := s.Status
		switch {
		case inactive > m.opts.AwayAfter && s.Status != StatusAway:
			next = StatusAway
		case inactive > m.opts.IdleAfter && s.Status == StatusOnline:
			next = StatusIdle
		}
		if next == s.Status {
			continue
		}
		changes = append(changes, Transition{
			SessionID: s.ID,
			Username:  s.Username(),
			From:      s.Status,
			To:        next,
		})
		s.Status = next
	}
	if len(changes) > 0 && m.onChange != nil {
		m.onChange(changes)
	}
	return changes
}

// Run schedules a sweep every SweepInterval until ctx is done or schedule
// reports that the owner has stopped.
func (m *PresenceMonitor) Run(ctx context.Context, schedule func(func()) bool) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !schedule(func() { m.Sweep() }) {
				return
			}
		}
	}
}
