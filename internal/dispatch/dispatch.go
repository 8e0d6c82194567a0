package dispatch

import (
	"github.com/example/uniride/internal/models"
)

// Notifier delivers a ride event to one user. Delivery is best-effort
// everywhere: a user without a live channel just polls the feed.
type Notifier interface {
	Notify(userID string, ev models.RideEvent) error
}

// Fanout tries each notifier in order until one delivers.
type Fanout struct {
	Notifiers []Notifier
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{Notifiers: notifiers}
}

func (f *Fanout) Notify(userID string, ev models.RideEvent) error {
	var lastErr error
	for _, n := range f.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(userID, ev); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}
