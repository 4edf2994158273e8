package domain

import "time"

type Announcement struct {
	Identity    string // stable key, e.g. the fragment of the post link
	Title       string
	Body        string
	Link        string
	PublishedAt time.Time
}

// MessageRef points at a posted chat message.
type MessageRef struct {
	Channel   string
	Timestamp string
}

func (r MessageRef) IsZero() bool {
	return r.Timestamp == ""
}

type StateRecord struct {
	Identity    string
	Fingerprint Fingerprint
	MessageRef  MessageRef
}
