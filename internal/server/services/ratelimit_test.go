package services

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

func testLimits() RateLimits {
	return RateLimits{
		MaxRequests:      5,
		RequestsWindow:   10 * time.Minute,
		BaseCooldown:     time.Minute,
		ExtendedCooldown: time.Hour,
	}
}

func TestEvaluateRateLimit(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limits := testLimits()

	tests := []struct {
		name string
		rec  models.Token
		now  time.Time
		want limitDecision
	}{
		{
			name: "inside cooldown denies",
			rec:  models.Token{RequestCount: 1, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base},
			now:  base.Add(30 * time.Second),
			want: limitDecision{Allowed: false},
		},
		{
			name: "cooldown boundary is inclusive of the full spacing",
			rec:  models.Token{RequestCount: 1, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base},
			now:  base.Add(time.Minute),
			want: limitDecision{Allowed: true, RequestCount: 2, CooldownMinutes: 1},
		},
		{
			name: "budget left allows and increments",
			rec:  models.Token{RequestCount: 2, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base.Add(2 * time.Minute)},
			now:  base.Add(4 * time.Minute),
			want: limitDecision{Allowed: true, RequestCount: 3, CooldownMinutes: 1},
		},
		{
			name: "budget exhausted within window escalates",
			rec:  models.Token{RequestCount: 5, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base.Add(5 * time.Minute)},
			now:  base.Add(7 * time.Minute),
			want: limitDecision{Allowed: false, EscalateCooldown: true, CooldownMinutes: 60},
		},
		{
			name: "escalated cooldown still spacing-checked first",
			rec:  models.Token{RequestCount: 5, CooldownMinutes: 60, CreatedAt: base, UpdatedAt: base.Add(7 * time.Minute)},
			now:  base.Add(30 * time.Minute),
			want: limitDecision{Allowed: false},
		},
		{
			name: "window elapsed restarts the budget",
			rec:  models.Token{RequestCount: 5, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base.Add(5 * time.Minute)},
			now:  base.Add(11 * time.Minute),
			want: limitDecision{Allowed: true, RequestCount: 1, CooldownMinutes: 1, WindowRestart: true},
		},
		{
			name: "exactly at window edge still counts as within",
			rec:  models.Token{RequestCount: 5, CooldownMinutes: 1, CreatedAt: base, UpdatedAt: base.Add(5 * time.Minute)},
			now:  base.Add(10 * time.Minute),
			want: limitDecision{Allowed: false, EscalateCooldown: true, CooldownMinutes: 60},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := evaluateRateLimit(&tc.rec, tc.now, limits)
			if got != tc.want {
				t.Fatalf("evaluateRateLimit() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
