package publishers

import (
	"strconv"
	"time"

	"github.com/samvad-hq/samvad-fetcher/internal/domain"
)

// Event is the payload published downstream for every fetched target.
type Event struct {
	TargetID    string          `json:"target_id"`
	TargetName  string          `json:"target_name"`
	Snapshot    domain.Snapshot `json:"snapshot"`
	PublishedAt time.Time       `json:"published_at"`
}

// NewEvent wraps a snapshot into an Event.
func NewEvent(snap domain.Snapshot) Event {
	return Event{
		TargetID:    snap.TargetID,
		TargetName:  snap.TargetName,
		Snapshot:    snap,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes are the string attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"target_id": e.TargetID,
		"status":    strconv.Itoa(e.Snapshot.Status),
	}
}
