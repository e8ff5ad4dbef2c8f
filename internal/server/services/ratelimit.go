package services

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// RateLimits holds the issuance throttling policy for one-time codes.
type RateLimits struct {
	// MaxRequests is the issuance budget per (user, purpose) within
	// RequestsWindow.
	MaxRequests int

	// RequestsWindow is the sliding span over which issuances accumulate,
	// measured from the record's created_at.
	RequestsWindow time.Duration

	// BaseCooldown is the normal minimum spacing between issuances,
	// measured from the record's updated_at.
	BaseCooldown time.Duration

	// ExtendedCooldown replaces BaseCooldown once the budget is exhausted
	// within the window.
	ExtendedCooldown time.Duration
}

// limitDecision is the outcome of evaluating the policy against the
// existing active record for a (user, purpose) pair.
type limitDecision struct {
	Allowed bool

	// RequestCount and CooldownMinutes are the values to store on the
	// record when Allowed.
	RequestCount    int
	CooldownMinutes int

	// WindowRestart is set when the previous window has elapsed and the
	// budget restarts: created_at must be refreshed along with the counters.
	WindowRestart bool

	// EscalateCooldown is set on denial when the budget was exhausted
	// within the window: the record's cooldown must be raised to the
	// extended value so the next check uses the longer spacing.
	EscalateCooldown bool
}

// evaluateRateLimit applies the issuance policy to the existing record at
// instant now. Cooldown is measured against the record's updated_at and the
// request window against its created_at; both are taken from the record as
// stored, never from cached values.
func evaluateRateLimit(rec *models.Token, now time.Time, limits RateLimits) limitDecision {
	cooldown := time.Duration(rec.CooldownMinutes) * time.Minute
	if now.Sub(rec.UpdatedAt) < cooldown {
		return limitDecision{Allowed: false}
	}

	withinWindow := now.Sub(rec.CreatedAt) <= limits.RequestsWindow

	if withinWindow && rec.RequestCount >= limits.MaxRequests {
		return limitDecision{
			Allowed:          false,
			EscalateCooldown: true,
			CooldownMinutes:  int(limits.ExtendedCooldown.Minutes()),
		}
	}

	d := limitDecision{
		Allowed:         true,
		RequestCount:    rec.RequestCount + 1,
		CooldownMinutes: int(limits.BaseCooldown.Minutes()),
	}
	if !withinWindow {
		d.RequestCount = 1
		d.WindowRestart = true
	}
	return d
}
