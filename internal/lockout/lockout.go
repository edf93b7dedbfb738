// Package lockout implements the brute-force lockout policy as pure functions
// over the per-user attempt state.
package lockout

import "time"

// Значения по умолчанию
const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute
)

// State is the persisted lockout state of one account.
type State struct {
	LockedUntil    *time.Time
	FailedAttempts int
}

// Decision is the outcome of Evaluate.
type Decision struct {
	// Until момент снятия блокировки, заполнен только если Locked
	Until time.Time
	// State состояние после ленивой разблокировки
	State  State
	Locked bool
	// Unlocked is true when an expired lock was cleared by this evaluation
	Unlocked bool
}

// Policy holds the lockout parameters.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// NewPolicy creates a policy. Non-positive values fall back to the defaults.
func NewPolicy(threshold int, duration time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Policy{Threshold: threshold, Duration: duration}
}

// Evaluate decides whether a login attempt may proceed at now.
// A lock found in the past is cleared together with the failure counter.
func (p Policy) Evaluate(state State, now time.Time) Decision {
	if state.LockedUntil == nil {
		return Decision{State: state}
	}

	if now.Before(*state.LockedUntil) {
		return Decision{State: state, Locked: true, Until: *state.LockedUntil}
	}

	return Decision{State: State{}, Unlocked: true}
}

// RegisterFailure records a failed password check made at now.
func (p Policy) RegisterFailure(state State, now time.Time) State {
	next := State{FailedAttempts: state.FailedAttempts + 1}
	if next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

// RegisterSuccess resets the counter and clears any lock.
func (p Policy) RegisterSuccess(State) State {
	return State{}
}
