package notify

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// EventName identifies the kind of change.
type EventName string

// Event names, one per entity family.
const (
	UsersChanged  EventName = "users-changed"
	OrdersChanged EventName = "orders-changed"
)

// EventNameFor returns the event emitted when family changes.
func EventNameFor(family domain.Family) EventName {
	if family == domain.FamilyUsers {
		return UsersChanged
	}
	return OrdersChanged
}

// ChannelName returns the fixed broadcast channel name of family.
func ChannelName(family domain.Family) string {
	return "fieldstore-" + string(family) + "-channel"
}

// Event is one change notification.
type Event struct {
	ID        string        `json:"id"`
	Name      EventName     `json:"name"`
	Family    domain.Family `json:"family"`
	Reason    string        `json:"reason"`
	Timestamp string        `json:"timestamp"`
	// Origin identifies the emitting process.
	Origin string `json:"origin"`
}

// NewID returns a time-ordered event identifier.
func NewID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// idTime extracts the creation time encoded in an event identifier.
func idTime(id string) (time.Time, bool) {
	u, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}
