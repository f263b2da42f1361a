package domain

import (
	"time"

	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// ExpirationGraceDays is the number of days after the due date during
// which an order is still not expired.
const ExpirationGraceDays = 4

// Default note written into obs_anulada when the sweep expires an order.
const (
	ExpiredReason = "Vencida"
	ExpiredDetail = "Orden vencida automáticamente por superar el plazo de ejecución"
)

// Window is an order's execution window, all values at the start of their
// day in the reference zone.
type Window struct {
	Start      time.Time
	Due        time.Time
	Expiration time.Time
}

// ComputeWindow derives the window from info["F inicial"] and
// info["Frec. Dias"]. Returns false when either value cannot be read.
func ComputeWindow(info Info, tz *tzclock.Service) (Window, bool) {
	if info == nil || tz == nil {
		return Window{}, false
	}
	start, ok := tz.ParseDate(info[InfoStartDate])
	if !ok {
		return Window{}, false
	}
	freq, ok := ParseNumber(info[InfoFrequencyDays])
	if !ok {
		return Window{}, false
	}
	days := int(freq)
	return Window{
		Start:      start,
		Due:        tz.AddDays(start, days),
		Expiration: tz.AddDays(start, days+ExpirationGraceDays),
	}, true
}

// IsExpiredOn reports whether today (start of day) is strictly after the
// expiration date.
func (w Window) IsExpiredOn(today time.Time) bool {
	return today.After(w.Expiration)
}

// IsDefaultExpiryNote reports whether obs is exactly the note the sweep
// writes when it expires an order.
func IsDefaultExpiryNote(obs []string) bool {
	return len(obs) == 2 && obs[0] == ExpiredReason && obs[1] == ExpiredDetail
}
