package pack

import "time"

// Progress event types.
const (
	EventFilingStarted  = "filing_started"
	EventExhibitDecided = "exhibit_decided"
	EventPackFinished   = "pack_finished"
)

// Event is a progress notification emitted while a pack streams.
type Event struct {
	Type      string    `json:"type"`
	BuildID   string    `json:"build_id"`
	Ticker    string    `json:"ticker"`
	Accession string    `json:"accession,omitempty"`
	Form      string    `json:"form,omitempty"`
	Exhibit   string    `json:"exhibit,omitempty"`
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier receives progress events. Publish must not block the build.
type Notifier interface {
	Publish(Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}
