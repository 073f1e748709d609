package domain

import (
	"fmt"
	"time"
)

// ActorKind is the closed set of federated actor classifications. Remote
// documents carry free-form type strings; everything we do not recognise
// collapses into KindUnknown.
type ActorKind uint

const (
	KindUnknown ActorKind = iota
	KindPerson
	KindGroup
	KindApplication
)

// ParseActorKind maps an ActivityStreams type string onto ActorKind.
func ParseActorKind(s string) ActorKind {
	switch s {
	case "Person":
		return KindPerson
	case "Group":
		return KindGroup
	case "Application":
		return KindApplication
	default:
		return KindUnknown
	}
}

func (k ActorKind) String() string {
	switch k {
	case KindPerson:
		return "Person"
	case KindGroup:
		return "Group"
	case KindApplication:
		return "Application"
	default:
		return "Unknown"
	}
}

// TrustLevel states how much verification an inbound object has to go
// through before it is materialized locally.
type TrustLevel uint

const (
	// TrustVerified is the default for federated inbound traffic: the
	// object is re-fetched from its origin and validated.
	TrustVerified TrustLevel = iota
	// TrustInternal is reserved for trusted internal flows (backfill,
	// migrations); origin checks are skipped.
	TrustInternal
)

// RemoteUser mirrors a remote Person or Application actor. The actor URI
// doubles as its local user id.
type RemoteUser struct {
	UID           string // equals ActorURI
	Username      string
	Handle        string // username@domain
	Domain        string
	ActorURI      string
	URL           string
	DisplayName   string
	Summary       string
	InboxURI      string
	OutboxURI     string
	PublicKeyPem  string
	AvatarURL     string
	LastFetchedAt time.Time
}

func (u *RemoteUser) ToString() string {
	return fmt.Sprintf("\n\tUID: %s \n\tHandle: %s \n\tInbox: %s \n\tLastFetchedAt: %s)", u.UID, u.Handle, u.InboxURI, u.LastFetchedAt)
}

// Account is a local user.
type Account struct {
	UID           string
	Username      string
	DisplayName   string
	Summary       string
	CreatedAt     time.Time
	WebPublicKey  string
	WebPrivateKey string
	AvatarURL     string
}

func (acc *Account) ToString() string {
	return fmt.Sprintf("\n\tUID: %s \n\tUsername: %s \n\tCreatedAt: %s)", acc.UID, acc.Username, acc.CreatedAt)
}

// Category is a local category or, when Remote is set, the mirror of a
// remote Group actor (a federated community). Remote categories are keyed
// by the actor URI; local ones by a sequence-issued numeric id.
type Category struct {
	CID             string
	Name            string
	Slug            string // for remote categories, preferredUsername@domain
	Description     string
	Remote          bool
	ActorURI        string
	InboxURI        string
	OutboxURI       string
	PublicKeyPem    string
	WebPublicKey    string // local categories sign their own activities
	WebPrivateKey   string
	BackgroundImage string
	TopicCount      int
	PostCount       int
	CreatedAt       time.Time
}

func (c *Category) ToString() string {
	return fmt.Sprintf("\n\tCID: %s \n\tName: %s \n\tRemote: %t \n\tTopics: %d \n\tPosts: %d)", c.CID, c.Name, c.Remote, c.TopicCount, c.PostCount)
}

// WatchState is a user's subscription level on a category.
type WatchState uint

const (
	WatchIgnoring WatchState = iota
	WatchTracking
	WatchWatching
)

// CategoryWatcher pairs a user with their watch state on some category.
type CategoryWatcher struct {
	UID   string
	State WatchState
}

// ActorAssertion is the per-URI result of an actor assertion batch.
// Exactly one of UID or CID is set for remote actors; Local marks
// loopback URIs and handles that were recognised but never persisted.
type ActorAssertion struct {
	URI   string
	Kind  ActorKind
	UID   string
	CID   string
	Slug  string
	Local bool
}
