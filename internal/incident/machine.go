// Package incident applies check outcomes to monitor status and keeps the
// incident log in step with up/down transitions.
package incident

import "github.com/hamed0406/statuspulse/internal/domain"

type Effect int

const (
	EffectNone Effect = iota
	EffectOpen
	EffectResolve
)

func (e Effect) String() string {
	switch e {
	case EffectOpen:
		return "open"
	case EffectResolve:
		return "resolve"
	}
	return "none"
}

type Transition struct {
	From   domain.Status
	To     domain.Status
	Effect Effect
}

// Notify reports whether the transition should alert.
func (t Transition) Notify() bool { return t.Effect != EffectNone }

// Apply decides the next status and incident effect. The first observation
// after unknown never opens or resolves an incident.
func Apply(old domain.Status, up bool) Transition {
	t := Transition{From: old, To: domain.StatusFor(up)}
	if old == domain.StatusUnknown || old == t.To {
		return t
	}
	if t.To == domain.StatusDown {
		t.Effect = EffectOpen
	} else {
		t.Effect = EffectResolve
	}
	return t
}
