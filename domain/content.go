package domain

import (
	"fmt"
	"time"
)

// Topic is a discussion thread under a category.
type Topic struct {
	TID       string
	CID       string
	UID       string // author: local uid or remote actor URI
	MainPID   string
	Title     string
	Slug      string
	Timestamp time.Time
}

func (t *Topic) ToString() string {
	return fmt.Sprintf("\n\tTID: %s \n\tCID: %s \n\tTitle: %s \n\tTimestamp: %s)", t.TID, t.CID, t.Title, t.Timestamp)
}

// Post is a single post inside a topic. Remote posts are keyed by their
// object URI, local ones by a sequence-issued numeric id.
type Post struct {
	PID       string
	TID       string
	UID       string
	Content   string
	Remote    bool
	Timestamp time.Time
	EditedAt  *time.Time
}

func (p *Post) ToString() string {
	return fmt.Sprintf("\n\tPID: %s \n\tTID: %s \n\tUID: %s \n\tTimestamp: %s)", p.PID, p.TID, p.UID, p.Timestamp)
}

// Room is a private conversation, keyed by its participant set so that
// re-delivery of the same conversation lands in the same room.
type Room struct {
	RoomID         int64
	OwnerUID       string
	ParticipantKey string
	CreatedAt      time.Time
}

// Notification is a pending user notification. The NID encodes the
// logical identity so that repeated triggers stay idempotent.
type Notification struct {
	NID       string
	UID       string
	TID       string
	FromUID   string
	Kind      string
	CreatedAt time.Time
}

// NoteAssertion is the result of asserting a remote content object.
// Public objects produce a topic id and the number of posts touched;
// private objects produce only a room id.
type NoteAssertion struct {
	TID    string
	Count  int
	RoomID int64
}
