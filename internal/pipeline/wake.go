package pipeline

import (
	"time"

	"github.com/Naptick/Naphome-Firmware-sub000/pkg/frontend"
)

// Tuned alert timings carried over from the shipped hardware.
const (
	DefaultCooldown      = 2 * time.Second
	DefaultAlertDuration = time.Second
)

// WakeState is the externally visible wake-word state, read by the renderer
// each tick. Mutated only by WakeMachine.
type WakeState struct {
	// Active reports whether the alert display is on.
	Active bool

	// ActiveUntil is when the alert display ends.
	ActiveUntil time.Time

	// CooldownUntil is the earliest instant a new detection is accepted.
	// Monotonically non-decreasing across accepted events.
	CooldownUntil time.Time
}

// WakeMachine drives the alert and cooldown timers around wake-word
// detections. Detections landing inside the cooldown window are dropped
// silently — deliberate anti-chatter, no queueing or merging.
//
// Not safe for concurrent use; the pipeline tick goroutine is its only
// caller.
type WakeMachine struct {
	cooldown time.Duration
	alert    time.Duration
	state    WakeState
}

// NewWakeMachine creates a machine with the given windows. Non-positive
// durations fall back to the hardware defaults.
func NewWakeMachine(cooldown, alert time.Duration) *WakeMachine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if alert <= 0 {
		alert = DefaultAlertDuration
	}
	return &WakeMachine{cooldown: cooldown, alert: alert}
}

// Observe handles one detection and reports whether it was accepted. An
// event at time t is accepted only when now is at or past the cooldown
// boundary; acceptance re-arms both timers from t.
func (m *WakeMachine) Observe(now time.Time, ev *frontend.WakeEvent) bool {
	if ev == nil {
		return false
	}
	if now.Before(m.state.CooldownUntil) {
		return false
	}
	t := ev.Timestamp
	if t.IsZero() {
		t = now
	}
	m.state.CooldownUntil = t.Add(m.cooldown)
	m.state.ActiveUntil = t.Add(m.alert)
	m.state.Active = true
	return true
}

// Expire clears the alert once its window has elapsed and reports whether it
// deactivated. The pipeline calls it at the end of each tick, so a tick
// landing exactly on the boundary still renders the alert and the next one
// resumes level-driven output.
func (m *WakeMachine) Expire(now time.Time) bool {
	if m.state.Active && !now.Before(m.state.ActiveUntil) {
		m.state.Active = false
		return true
	}
	return false
}

// State returns the current wake state.
func (m *WakeMachine) State() WakeState {
	return m.state
}
